package devices

import (
	"path/filepath"
	"slices"
)

var serialPatterns = map[string][]string{
	"linux":  {"ttyACM*", "ttyUSB*"},
	"darwin": {"tty.usbmodem*", "tty.usbserial*"},
}

// ListSerialPorts returns the sorted serial device paths that may belong to
// robot controllers. Unsupported platforms return nothing.
func (s *Scanner) ListSerialPorts() []string {
	patterns, ok := serialPatterns[s.goos]
	if !ok {
		s.log.Warn("Serial port listing not supported.", "os", s.goos)
		return nil
	}
	var ports []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.devDir, p))
		if err != nil {
			continue
		}
		ports = append(ports, matches...)
	}
	slices.Sort(ports)
	return slices.Compact(ports)
}
