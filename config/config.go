// Package config handles the edge configuration directory: the credential
// store written by `cyberwave login` and the resolution of runtime settings
// across the process environment and persisted credentials.
//
// The directory defaults to /etc/cyberwave and follows the systemd unit,
// which sets CYBERWAVE_EDGE_CONFIG_DIR. Every file in it is an independent
// JSON document.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvConfigDir     = "CYBERWAVE_EDGE_CONFIG_DIR"
	DefaultConfigDir = "/etc/cyberwave"
)

const (
	credentialsFile = "credentials.json"
	devicesFile     = "devices.json"
	fingerprintFile = "fingerprint.json"
	environmentFile = "environment.json"
	camerasFile     = "cameras.json"
)

// Paths locates the files inside an edge configuration directory.
type Paths struct {
	Dir string
}

// DefaultPaths returns the paths rooted at $CYBERWAVE_EDGE_CONFIG_DIR,
// falling back to /etc/cyberwave.
func DefaultPaths() Paths {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return Paths{Dir: dir}
	}
	return Paths{Dir: DefaultConfigDir}
}

func (p Paths) Credentials() string { return filepath.Join(p.Dir, credentialsFile) }
func (p Paths) Devices() string     { return filepath.Join(p.Dir, devicesFile) }
func (p Paths) Fingerprint() string { return filepath.Join(p.Dir, fingerprintFile) }
func (p Paths) Environment() string { return filepath.Join(p.Dir, environmentFile) }
func (p Paths) Cameras() string     { return filepath.Join(p.Dir, camerasFile) }

// Twin returns the path of the persisted snapshot for a twin.
func (p Paths) Twin(twinUUID string) string {
	return filepath.Join(p.Dir, twinUUID+".json")
}
