package main

import (
	"log/slog"
	"os"

	"edgecore/cmd/edgecore/ui"
	"edgecore/config"
	"edgecore/internal/boot"
	"edgecore/internal/broker"
	"edgecore/internal/cloud"
	"edgecore/internal/devices"
	"edgecore/internal/driver"
	"edgecore/internal/identity"
	"edgecore/internal/link"
	"edgecore/internal/logging"
	"edgecore/internal/snapshot"

	"github.com/docker/docker/client"
)

// app holds the wiring shared by every command.
type app struct {
	paths    config.Paths
	store    *config.Store
	resolver *config.Resolver
	docker   *client.Client
	drivers  *driver.Manager
}

func newApp(configDir string, debug, noColor bool) (*app, error) {
	ui.ConfigureColor(noColor)

	paths := config.DefaultPaths()
	if configDir != "" {
		paths = config.Paths{Dir: configDir}
	}
	store := config.NewStore(paths.Credentials())
	creds, err := store.Load()
	if err != nil {
		slog.Debug("Credentials not loaded for settings resolution.", "path", store.Path(), "err", err)
	}
	resolver := config.NewResolver(creds)

	level := logging.FromHint(resolver.Resolve(config.EnvLogLevel, logging.LevelInfo))
	if debug {
		level = logging.LevelDebug
	}
	if err := logging.Configure(level); err != nil {
		return nil, err
	}

	a := &app{paths: paths, store: store, resolver: resolver}

	var docker client.APIClient
	if cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation()); err != nil {
		slog.Warn("Docker client unavailable, drivers cannot be started.", "err", err)
	} else {
		a.docker = cli
		docker = cli
	}
	a.drivers = driver.NewManager(docker, driver.Config{
		ConfigDir:      paths.Dir,
		APIURL:         resolver.Resolve(config.EnvAPIURL, ""),
		MQTTHost:       resolver.MQTTHost(),
		Tier:           resolver.Tier(),
		ProductionTier: config.ProductionTier,
	})
	return a, nil
}

func (a *app) orchestrator(opts ...boot.Option) *boot.Orchestrator {
	r := a.resolver
	deps := boot.Deps{
		Credentials: a.store,
		NewCloud: func(token string) boot.Cloud {
			return cloud.New(r.APIURL(), token)
		},
		NewBroker: func(token string) boot.BrokerProber {
			return broker.NewProber(broker.Config{
				Host:     r.MQTTHost(),
				Port:     broker.ParsePort(r.Resolve(config.EnvMQTTPort, config.DefaultMQTTPort)),
				Username: r.Resolve(config.EnvMQTTUsername, ""),
				Password: token,
			})
		},
		Fingerprint: identity.NewManager(a.paths.Fingerprint()),
		Link:        link.NewLoader(a.paths.Environment()),
		Snapshots:   snapshot.NewWriter(a.paths.Dir),
		Drivers:     a.drivers,
		Devices:     devices.NewStore(a.paths.Devices(), a.paths.Dir),
	}
	settings := boot.Settings{
		CredentialsPath: a.paths.Credentials(),
		EnvironmentPath: a.paths.Environment(),
		APIURL:          r.APIURL(),
		DisableAlerts:   envDisabled("CYBERWAVE_EDGE_DISABLE_ALERTS"),
	}
	return boot.New(deps, settings, opts...)
}

// Close stops log forwarding and releases the engine client. Driver
// containers keep running.
func (a *app) Close() {
	a.drivers.Close()
	if a.docker != nil {
		_ = a.docker.Close()
	}
}

func envDisabled(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
