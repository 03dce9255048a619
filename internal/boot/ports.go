package boot

import (
	"context"

	"edgecore/internal/cloud"
	"edgecore/internal/devices"
	"edgecore/internal/driver"
	"edgecore/internal/twin"

	"github.com/google/uuid"
)

// CredentialSource yields the stored token and persisted env overrides.
type CredentialSource interface {
	LoadToken() (string, bool)
	LoadEnvOverrides() map[string]string
}

// Cloud is the part of the cloud API the boot sequence calls.
type Cloud interface {
	ValidateToken(ctx context.Context) error
	RegisterEdge(ctx context.Context, fingerprint string) error
	ListTwins(ctx context.Context, environmentUUID string) ([]twin.Twin, error)
	GetAsset(ctx context.Context, assetUUID string) (twin.Asset, error)
	CreateAlert(ctx context.Context, alert cloud.Alert) error
}

// BrokerProber checks broker connectivity.
type BrokerProber interface {
	Probe(ctx context.Context) error
}

// Fingerprinter derives the edge identity. Load never persists.
type Fingerprinter interface {
	GetOrCreate() (string, error)
	Load() (string, bool)
}

// LinkLoader reads the environment link. Load retries, Peek reads once.
type LinkLoader interface {
	Load(ctx context.Context) (uuid.UUID, error)
	Peek() (uuid.UUID, error)
}

// SnapshotWriter persists the merged twin snapshot for a driver.
type SnapshotWriter interface {
	Write(twinUUID string, twinData, assetData map[string]any) error
}

// DriverRunner starts a driver container and reports whether it started.
type DriverRunner interface {
	Run(ctx context.Context, req driver.Request) bool
}

// DeviceSource reads the device files kept in the config directory.
type DeviceSource interface {
	Configured() ([]devices.Device, error)
	Cameras() []devices.Camera
}

// Deps groups the collaborators of the boot sequence. Cloud and broker
// clients need the token, so they are built once it has been loaded.
type Deps struct {
	Credentials CredentialSource
	NewCloud    func(token string) Cloud
	NewBroker   func(token string) BrokerProber
	Fingerprint Fingerprinter
	Link        LinkLoader
	Snapshots   SnapshotWriter
	Drivers     DriverRunner
	Devices     DeviceSource
	Selector    twin.Selector
}
