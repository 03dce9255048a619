package devices

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/atomicwriter"
	"github.com/tidwall/jsonc"
)

const camerasFile = "cameras.json"

type cameraDoc struct {
	Card        string   `json:"card"`
	BusInfo     string   `json:"bus_info"`
	Paths       []string `json:"paths"`
	PrimaryPath *string  `json:"primary_path"`
	Index       *int     `json:"index"`
	Driver      *string  `json:"driver"`
	Serial      *string  `json:"serial"`
}

type camerasDoc struct {
	Devices []cameraDoc `json:"devices"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toDoc(c Camera) cameraDoc {
	d := cameraDoc{
		Card:        c.Card,
		BusInfo:     c.BusInfo,
		Paths:       c.Paths,
		PrimaryPath: optional(c.PrimaryPath()),
		Driver:      optional(c.Driver),
		Serial:      optional(c.Serial),
	}
	if d.Paths == nil {
		d.Paths = []string{}
	}
	if idx, ok := c.Index(); ok {
		d.Index = &idx
	}
	return d
}

func fromDoc(d cameraDoc) Camera {
	c := Camera{Card: d.Card, BusInfo: d.BusInfo, Paths: d.Paths}
	if d.Driver != nil {
		c.Driver = *d.Driver
	}
	if d.Serial != nil {
		c.Serial = *d.Serial
	}
	return c
}

// WriteCameras writes cameras.json into dir and returns its path.
func WriteCameras(dir string, cams []Camera) (string, error) {
	doc := camerasDoc{Devices: make([]cameraDoc, 0, len(cams))}
	for _, c := range cams {
		doc.Devices = append(doc.Devices, toDoc(c))
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal cameras: %w", err)
	}

	path := filepath.Join(dir, camerasFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := atomicwriter.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("Wrote cameras file.", "path", path, "count", len(cams))
	return path, nil
}

// LoadCameras reads cameras.json from dir. A missing or invalid file yields
// no cameras.
func LoadCameras(dir string) []Camera {
	path := filepath.Join(dir, camerasFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to read cameras file.", "path", path, "err", err)
		}
		return nil
	}
	var doc camerasDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("Failed to parse cameras file.", "path", path, "err", err)
		return nil
	}
	cams := make([]Camera, 0, len(doc.Devices))
	for _, d := range doc.Devices {
		cams = append(cams, fromDoc(d))
	}
	return cams
}

// Device is a hardware device configured for this edge in devices.json.
type Device struct {
	Slug     string         `json:"slug"`
	Name     string         `json:"name"`
	Port     string         `json:"port"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LoadConfigured reads devices.json. Comments and trailing commas are
// tolerated since the file is commonly edited by hand. A missing file is
// not an error.
func LoadConfigured(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read devices: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var devs []Device
	if err := json.Unmarshal(jsonc.ToJSON(data), &devs); err != nil {
		return nil, fmt.Errorf("parse devices %s: %w", path, err)
	}
	return devs, nil
}

// Store reads the device files of one config directory.
type Store struct {
	devicesPath string
	camerasDir  string
}

func NewStore(devicesPath, camerasDir string) Store {
	return Store{devicesPath: devicesPath, camerasDir: camerasDir}
}

func (s Store) Configured() ([]Device, error) { return LoadConfigured(s.devicesPath) }

func (s Store) Cameras() []Camera { return LoadCameras(s.camerasDir) }
