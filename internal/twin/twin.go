// Package twin models the remote twin and asset definitions this edge
// consumes, matches twins to the local fingerprint and resolves the driver
// each matched twin should run.
package twin

import (
	"errors"
	"fmt"
	"strings"
)

const (
	metaEdgeFingerprint = "edge_fingerprint"
	metaDrivers         = "drivers"
)

// Twin is a remote twin definition. Raw keeps every field as received so
// the on-disk snapshot carries the full document.
type Twin struct {
	UUID      string
	Name      string
	AssetUUID string
	Metadata  map[string]any
	Raw       map[string]any
}

// Asset is a remote asset definition.
type Asset struct {
	UUID     string
	Metadata map[string]any
	Raw      map[string]any
}

// ParseTwin converts a decoded JSON object into a Twin. Only uuid is
// required; metadata that is not an object is treated as empty.
func ParseTwin(raw map[string]any) (Twin, error) {
	id := stringField(raw, "uuid")
	if id == "" {
		return Twin{}, errors.New("twin has no uuid")
	}
	return Twin{
		UUID:      id,
		Name:      stringField(raw, "name"),
		AssetUUID: stringField(raw, "asset_uuid"),
		Metadata:  objectField(raw, "metadata"),
		Raw:       raw,
	}, nil
}

// ParseAsset converts a decoded JSON object into an Asset.
func ParseAsset(raw map[string]any) (Asset, error) {
	id := stringField(raw, "uuid")
	if id == "" {
		return Asset{}, errors.New("asset has no uuid")
	}
	return Asset{
		UUID:     id,
		Metadata: objectField(raw, "metadata"),
		Raw:      raw,
	}, nil
}

// EdgeFingerprint returns the fingerprint of the edge the twin is assigned to.
func (t Twin) EdgeFingerprint() string {
	fp, _ := t.Metadata[metaEdgeFingerprint].(string)
	return fp
}

// DisplayName returns the twin name, or its uuid when unnamed.
func (t Twin) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.UUID
}

func (t Twin) String() string {
	return fmt.Sprintf("%s (%s)", t.DisplayName(), t.UUID)
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

func objectField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// present reports whether v carries a value the way a loosely-typed
// document would consider truthy: nil, empty maps, empty slices and
// empty strings are absent.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case string:
		return x != ""
	case bool:
		return x
	default:
		return true
	}
}
