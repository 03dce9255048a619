package identity

import (
	"bytes"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
)

// LocalFacts collects HostFacts for the running host.
func LocalFacts() HostFacts {
	hostname, machine := unameFacts()
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	if machine == "" {
		machine = goarchMachine(runtime.GOARCH)
	}
	return HostFacts{
		Hostname: hostname,
		System:   systemName(runtime.GOOS),
		Machine:  machine,
		Node:     hardwareNode(),
	}
}

func systemName(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	default:
		if goos == "" {
			return ""
		}
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}

func goarchMachine(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		if runtime.GOOS == "linux" {
			return "aarch64"
		}
		return "arm64"
	case "386":
		return "i686"
	case "arm":
		return "armv7l"
	default:
		return goarch
	}
}

// hardwareNode returns the first non-loopback 48-bit MAC address, ordered
// by interface index, as an integer. Zero when none is found.
func hardwareNode() uint64 {
	ifaces, err := net.Interfaces()
	if err != nil {
		return 0
	}
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Index < ifaces[j].Index })
	return nodeFromInterfaces(ifaces)
}

func nodeFromInterfaces(ifaces []net.Interface) uint64 {
	zero := make(net.HardwareAddr, 6)
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) != 6 || bytes.Equal(iface.HardwareAddr, zero) {
			continue
		}
		var node uint64
		for _, b := range iface.HardwareAddr {
			node = node<<8 | uint64(b)
		}
		return node
	}
	return 0
}
