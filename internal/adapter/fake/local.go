package fake

import (
	"context"
	"maps"
	"sync"

	"edgecore/internal/boot"
	"edgecore/internal/devices"
	"edgecore/internal/link"

	"github.com/google/uuid"
)

var (
	_ boot.CredentialSource = (*Credentials)(nil)
	_ boot.Fingerprinter    = (*Fingerprinter)(nil)
	_ boot.LinkLoader       = (*Link)(nil)
	_ boot.SnapshotWriter   = (*Snapshots)(nil)
	_ boot.DeviceSource     = (*Devices)(nil)
)

// Credentials serves a fixed token. An empty Token means no credentials.
type Credentials struct {
	CallRecorder
	Token     string
	Overrides map[string]string
}

func (c *Credentials) LoadToken() (string, bool) {
	c.record("LoadToken")
	return c.Token, c.Token != ""
}

func (c *Credentials) LoadEnvOverrides() map[string]string {
	c.record("LoadEnvOverrides")
	return maps.Clone(c.Overrides)
}

// Fingerprinter returns Value. Persisted controls what Load sees.
type Fingerprinter struct {
	CallRecorder
	Value     string
	Persisted bool

	GetOrCreateErr func() error
}

func (f *Fingerprinter) GetOrCreate() (string, error) {
	f.record("GetOrCreate")
	if f.GetOrCreateErr != nil {
		if err := f.GetOrCreateErr(); err != nil {
			return "", err
		}
	}
	f.Persisted = true
	return f.Value, nil
}

func (f *Fingerprinter) Load() (string, bool) {
	f.record("Load")
	if !f.Persisted {
		return "", false
	}
	return f.Value, true
}

// Link serves a fixed environment link. A zero ID means not linked.
type Link struct {
	CallRecorder
	ID uuid.UUID

	LoadErr func(ctx context.Context) error
}

func (l *Link) Load(ctx context.Context) (uuid.UUID, error) {
	l.record("Load")
	if l.LoadErr != nil {
		if err := l.LoadErr(ctx); err != nil {
			return uuid.Nil, err
		}
	}
	return l.Peek()
}

func (l *Link) Peek() (uuid.UUID, error) {
	if l.ID == uuid.Nil {
		return uuid.Nil, link.ErrNotLinked
	}
	return l.ID, nil
}

// Snapshots keeps written snapshots in memory, keyed by twin uuid.
type Snapshots struct {
	CallRecorder

	mu      sync.Mutex
	Written map[string]map[string]any

	WriteErr func(twinUUID string) error
}

func (s *Snapshots) Write(twinUUID string, twinData, assetData map[string]any) error {
	s.record("Write", twinUUID)
	if s.WriteErr != nil {
		if err := s.WriteErr(twinUUID); err != nil {
			return err
		}
	}
	doc := maps.Clone(twinData)
	if doc == nil {
		doc = map[string]any{}
	}
	doc["asset"] = assetData

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Written == nil {
		s.Written = make(map[string]map[string]any)
	}
	s.Written[twinUUID] = doc
	return nil
}

// Devices serves fixed device lists.
type Devices struct {
	List          []devices.Device
	CameraList    []devices.Camera
	ConfiguredErr error
}

func (d *Devices) Configured() ([]devices.Device, error) {
	if d.ConfiguredErr != nil {
		return nil, d.ConfiguredErr
	}
	return d.List, nil
}

func (d *Devices) Cameras() []devices.Camera { return d.CameraList }
