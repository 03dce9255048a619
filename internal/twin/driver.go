package twin

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTarget is the driver table entry selected when no hardware-aware
// selection is configured.
const DefaultTarget = "default"

var (
	ErrNoDrivers       = errors.New("no drivers specified")
	ErrNoDefaultDriver = errors.New("no default driver specified")
	ErrNoDockerImage   = errors.New("no docker_image specified")
)

// DescriptorError reports a misconfigured driver descriptor. It separates
// "the asset is wrong" from transient failures such as network errors.
type DescriptorError struct {
	Target string
	Err    error
}

func (e *DescriptorError) Error() string {
	if e.Target == "" {
		return "driver descriptor: " + e.Err.Error()
	}
	return fmt.Sprintf("driver descriptor %q: %v", e.Target, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }

// Driver is a resolved driver container to run for a twin.
type Driver struct {
	Target  string
	Image   string
	Version string
	Params  []string
}

// DriverTable maps a target key (default, platform names, ...) to a raw
// driver descriptor.
type DriverTable map[string]any

// ParseDriverTable checks that v is a driver table.
func ParseDriverTable(v any) (DriverTable, error) {
	if !present(v) {
		return nil, &DescriptorError{Err: ErrNoDrivers}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &DescriptorError{Err: fmt.Errorf("drivers must be an object, got %T", v)}
	}
	return DriverTable(m), nil
}

// Entry decodes the descriptor stored under target.
func (t DriverTable) Entry(target string) (Driver, error) {
	raw, ok := t[target]
	if !ok || !present(raw) {
		if target == DefaultTarget {
			return Driver{}, &DescriptorError{Target: target, Err: ErrNoDefaultDriver}
		}
		return Driver{}, &DescriptorError{Target: target, Err: fmt.Errorf("no %q driver specified", target)}
	}
	desc, ok := raw.(map[string]any)
	if !ok {
		return Driver{}, &DescriptorError{Target: target, Err: fmt.Errorf("descriptor must be an object, got %T", raw)}
	}

	img, ok := desc["docker_image"].(string)
	if !ok || strings.TrimSpace(img) == "" {
		return Driver{}, &DescriptorError{Target: target, Err: ErrNoDockerImage}
	}

	d := Driver{Target: target, Image: strings.TrimSpace(img)}
	d.Version, _ = desc["version"].(string)

	if rawParams, ok := desc["params"]; ok && rawParams != nil {
		list, ok := rawParams.([]any)
		if !ok {
			return Driver{}, &DescriptorError{Target: target, Err: fmt.Errorf("params must be a list, got %T", rawParams)}
		}
		d.Params = make([]string, 0, len(list))
		for i, p := range list {
			s, ok := p.(string)
			if !ok {
				return Driver{}, &DescriptorError{Target: target, Err: fmt.Errorf("params[%d] must be a string, got %T", i, p)}
			}
			d.Params = append(d.Params, s)
		}
	}
	return d, nil
}

// Selector picks the driver to run from a twin's driver table.
type Selector interface {
	Select(table DriverTable) (Driver, error)
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(table DriverTable) (Driver, error)

func (f SelectorFunc) Select(table DriverTable) (Driver, error) { return f(table) }

// DefaultSelector always selects the "default" entry. Hardware-aware
// selection plugs in as another Selector.
type DefaultSelector struct{}

func (DefaultSelector) Select(table DriverTable) (Driver, error) {
	return table.Entry(DefaultTarget)
}
