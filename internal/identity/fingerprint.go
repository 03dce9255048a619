// Package identity derives and persists the fingerprint that identifies
// this edge to the cloud. Twins are assigned to an edge by writing the
// fingerprint into their metadata, so the value must never drift: once
// fingerprint.json exists it is the source of truth.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moby/sys/atomicwriter"
)

// ErrPersist is returned when a freshly generated fingerprint cannot be saved.
var ErrPersist = errors.New("persist fingerprint")

// HostFacts are the host properties the fingerprint is derived from.
type HostFacts struct {
	Hostname string
	// System is the OS family as uname reports it, e.g. "Linux".
	System string
	// Machine is the hardware architecture, e.g. "x86_64".
	Machine string
	// Node is a 48-bit hardware identifier, normally a MAC address.
	Node uint64
}

// Generate derives a fingerprint from facts. It is a pure function.
func Generate(f HostFacts) string {
	raw := strings.Join([]string{f.Hostname, f.System, f.Machine, strconv.FormatUint(f.Node, 10)}, "|")
	sum := sha256.Sum256([]byte(raw))
	return strings.ToLower(f.System) + "-" + hex.EncodeToString(sum[:])[:16]
}

type fingerprintDoc struct {
	Fingerprint string `json:"fingerprint"`
}

// Manager loads the persisted fingerprint or creates it on first use.
type Manager struct {
	path  string
	facts func() HostFacts
	log   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithFacts overrides host fact collection.
func WithFacts(fn func() HostFacts) Option {
	return func(m *Manager) { m.facts = fn }
}

func NewManager(path string, opts ...Option) *Manager {
	m := &Manager{
		path:  path,
		facts: LocalFacts,
		log:   slog.With("component", "identity"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the persisted fingerprint. A missing, unreadable or empty
// file reports false.
func (m *Manager) Load() (string, bool) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.log.Warn("Failed to read fingerprint file.", "path", m.path, "err", err)
		}
		return "", false
	}
	var doc fingerprintDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		m.log.Warn("Failed to parse fingerprint file.", "path", m.path, "err", err)
		return "", false
	}
	fp := strings.TrimSpace(doc.Fingerprint)
	return fp, fp != ""
}

// GetOrCreate returns the persisted fingerprint, generating and saving a
// new one when none is readable.
func (m *Manager) GetOrCreate() (string, error) {
	if fp, ok := m.Load(); ok {
		return fp, nil
	}

	fp := Generate(m.facts())
	if err := m.save(fp); err != nil {
		return "", err
	}
	m.log.Info("Created edge fingerprint.", "fingerprint", fp, "path", m.path)
	return fp, nil
}

func (m *Manager) save(fp string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("%w: create config dir: %w", ErrPersist, err)
	}
	data, err := json.MarshalIndent(fingerprintDoc{Fingerprint: fp}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrPersist, err)
	}
	if err := atomicwriter.WriteFile(m.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersist, m.path, err)
	}
	return nil
}
