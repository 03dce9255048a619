// Package driver runs one driver container per twin on the local Docker
// engine and forwards the container logs into the edge log.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

const (
	DefaultPingTimeout   = 10 * time.Second
	DefaultRemoveTimeout = 30 * time.Second
	DefaultPullTimeout   = 10 * time.Minute
	DefaultStartTimeout  = 60 * time.Second

	containerAppDir    = "/app"
	containerConfigDir = "/app/.cyberwave"

	labelTwinUUID = "com.cyberwave.twin.uuid"
)

const (
	envTwinUUID     = "CYBERWAVE_TWIN_UUID"
	envToken        = "CYBERWAVE_TOKEN"
	envAPIURL       = "CYBERWAVE_API_URL"
	envMQTTHost     = "CYBERWAVE_MQTT_HOST"
	envEnvironment  = "CYBERWAVE_ENVIRONMENT"
	envTwinJSONFile = "CYBERWAVE_TWIN_JSON_FILE"
)

// Config carries the edge settings every driver container inherits.
type Config struct {
	// ConfigDir is bind-mounted into each container and holds the twin
	// snapshots.
	ConfigDir string
	// APIURL and MQTTHost are passed through only when set.
	APIURL   string
	MQTTHost string
	// Tier is the operational environment name; ProductionTier is the
	// tier that needs no image retagging or env injection.
	Tier           string
	ProductionTier string
}

// Request describes the driver to run for one twin.
type Request struct {
	Image    string
	Params   []string
	TwinUUID string
	Token    string
	// EnvOverrides are namespaced settings from the credential store. They
	// never replace variables the manager sets itself.
	EnvOverrides map[string]string
}

// Manager pulls, replaces and starts driver containers.
type Manager struct {
	docker client.APIClient
	cfg    Config
	logs   *LogForwarder
	log    *slog.Logger

	pingTimeout   time.Duration
	removeTimeout time.Duration
	pullTimeout   time.Duration
	startTimeout  time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeouts overrides the per-operation timeouts. Zero keeps the default.
func WithTimeouts(ping, remove, pull, start time.Duration) Option {
	return func(m *Manager) {
		if ping > 0 {
			m.pingTimeout = ping
		}
		if remove > 0 {
			m.removeTimeout = remove
		}
		if pull > 0 {
			m.pullTimeout = pull
		}
		if start > 0 {
			m.startTimeout = start
		}
	}
}

// NewManager creates a Manager. docker may be nil when no engine client
// could be created; every Run then fails the availability check.
func NewManager(docker client.APIClient, cfg Config, opts ...Option) *Manager {
	if cfg.ProductionTier == "" {
		cfg.ProductionTier = "production"
	}
	m := &Manager{
		docker:        docker,
		cfg:           cfg,
		log:           slog.With("component", "driver"),
		pingTimeout:   DefaultPingTimeout,
		removeTimeout: DefaultRemoveTimeout,
		pullTimeout:   DefaultPullTimeout,
		startTimeout:  DefaultStartTimeout,
	}
	if docker != nil {
		m.logs = NewLogForwarder(docker)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Logs returns the log forwarder owned by the manager, nil without an engine.
func (m *Manager) Logs() *LogForwarder { return m.logs }

// Close stops log forwarding. Containers keep running.
func (m *Manager) Close() {
	if m.logs != nil {
		m.logs.Stop()
	}
}

// Run starts the driver container for req, replacing any container of the
// same name. It reports whether the container started; failures are
// logged, never returned.
func (m *Manager) Run(ctx context.Context, req Request) bool {
	name := ContainerName(req.TwinUUID)
	log := m.log.With("container", name, "twin_uuid", req.TwinUUID)

	if !m.available(ctx) {
		log.Error("Docker is not available.")
		return false
	}

	removeCtx, cancel := context.WithTimeout(ctx, m.removeTimeout)
	if err := forceRemove(removeCtx, m.docker, name); err != nil {
		log.Debug("Removing previous container failed.", "err", err)
	}
	cancel()

	img := ResolveImage(req.Image, m.cfg.Tier, m.cfg.ProductionTier)
	log.Info("Pulling driver image.", "image", img)
	pullCtx, cancel := context.WithTimeout(ctx, m.pullTimeout)
	err := pullImage(pullCtx, m.docker, img)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Driver image pull timed out.", "image", img, "timeout", m.pullTimeout)
		} else {
			log.Error("Failed to pull driver image.", "image", img, "err", err)
		}
		return false
	}

	cc, hc := m.containerConfig(img, req)
	if ignored := ApplyParams(req.Params, cc, hc); len(ignored) > 0 {
		log.Warn("Ignoring unsupported driver params.", "params", ignored)
	}

	log.Info("Starting driver container.", "image", img)
	startCtx, cancel := context.WithTimeout(ctx, m.startTimeout)
	err = createAndStart(startCtx, m.docker, name, cc, hc)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Driver container start timed out.", "image", img, "timeout", m.startTimeout)
		} else {
			log.Error("Failed to start driver container.", "image", img, "err", err)
		}
		return false
	}

	if m.logs.Start(name) {
		log.Debug("Forwarding container logs.")
	}
	return true
}

func (m *Manager) available(ctx context.Context) bool {
	if m.docker == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()
	if _, err := m.docker.Ping(pingCtx); err != nil {
		m.log.Debug("Docker ping failed.", "err", err)
		return false
	}
	return true
}

func (m *Manager) containerConfig(img string, req Request) (*container.Config, *container.HostConfig) {
	cc := &container.Config{
		Image:  img,
		Env:    m.env(req),
		Labels: map[string]string{labelTwinUUID: req.TwinUUID},
	}
	hc := &container.HostConfig{
		NetworkMode: "host",
		Privileged:  true,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
	}

	snapshot := filepath.Join(m.cfg.ConfigDir, req.TwinUUID+".json")
	if _, err := os.Stat(snapshot); err == nil {
		target := containerAppDir + "/" + req.TwinUUID + ".json"
		hc.Mounts = append(hc.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   snapshot,
			Target:   target,
			ReadOnly: true,
		})
		cc.Env = append(cc.Env, envTwinJSONFile+"="+target)
	}
	if m.cfg.ConfigDir != "" {
		hc.Mounts = append(hc.Mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: m.cfg.ConfigDir,
			Target: containerConfigDir,
		})
	}
	return cc, hc
}

// env builds the container environment. Explicit settings come first and
// are never overridden by persisted namespaced overrides.
func (m *Manager) env(req Request) []string {
	set := map[string]string{
		envTwinUUID: req.TwinUUID,
		envToken:    req.Token,
	}
	order := []string{envTwinUUID, envToken}
	add := func(k, v string) {
		if _, ok := set[k]; ok {
			return
		}
		set[k] = v
		order = append(order, k)
	}

	if m.cfg.APIURL != "" {
		add(envAPIURL, m.cfg.APIURL)
	}
	if m.cfg.MQTTHost != "" {
		add(envMQTTHost, m.cfg.MQTTHost)
	}
	if m.cfg.Tier != "" && !strings.EqualFold(m.cfg.Tier, m.cfg.ProductionTier) {
		add(envEnvironment, m.cfg.Tier)
	}
	for _, k := range slices.Sorted(maps.Keys(req.EnvOverrides)) {
		// The snapshot path follows the mount, never an override.
		if k == envTwinJSONFile {
			continue
		}
		add(k, req.EnvOverrides[k])
	}

	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+set[k])
	}
	return env
}
