// Package broker checks that the MQTT broker accepts this edge's
// credentials. It never subscribes or publishes.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultHost    = "mqtt.cyberwave.com"
	DefaultPort    = 1883
	TLSPort        = 8883
	DefaultTimeout = 10 * time.Second

	clientIDPrefix = "edgecore-probe-"
	disconnectMS   = 250
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("broker connect timed out")

type Config struct {
	Host     string
	Port     int
	Username string
	// Password is the API token.
	Password string
	Timeout  time.Duration
}

// Prober opens and immediately closes one MQTT session.
type Prober struct {
	cfg Config
	log *slog.Logger
}

func NewProber(cfg Config) *Prober {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Prober{cfg: cfg, log: slog.With("component", "broker-probe")}
}

// ParsePort parses a port setting, falling back to DefaultPort.
func ParsePort(s string) int {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p <= 0 || p > 65535 {
		return DefaultPort
	}
	return p
}

// BrokerURL returns the paho broker URL, using TLS on the standard secure port.
func (p *Prober) BrokerURL() string {
	scheme := "tcp"
	if p.cfg.Port == TLSPort {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
}

// Probe connects to the broker and disconnects. It returns nil only when the
// broker acknowledged the connection.
func (p *Prober) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("probe %s: %w", p.BrokerURL(), err)
	}
	opts := mqtt.NewClientOptions().
		AddBroker(p.BrokerURL()).
		SetClientID(clientIDPrefix + uuid.NewString()[:8]).
		SetUsername(p.cfg.Username).
		SetPassword(p.cfg.Password).
		SetConnectTimeout(p.cfg.Timeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(true)

	c := mqtt.NewClient(opts)
	p.log.Debug("Connecting to broker.", "broker", p.BrokerURL())

	tok := c.Connect()
	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
	case <-timer.C:
		c.Disconnect(disconnectMS)
		return fmt.Errorf("probe %s: %w", p.BrokerURL(), ErrTimeout)
	case <-ctx.Done():
		c.Disconnect(disconnectMS)
		return fmt.Errorf("probe %s: %w", p.BrokerURL(), ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("probe %s: %w", p.BrokerURL(), err)
	}

	c.Disconnect(disconnectMS)
	p.log.Debug("Broker connection acknowledged.", "broker", p.BrokerURL())
	return nil
}
