package driver

import (
	"fmt"
	"os"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-units"
)

// ApplyParams translates the docker-run style flags carried by a driver
// descriptor onto the container configuration. It returns the flags it
// could not apply; the caller logs them.
//
// Supported: -e/--env, -v/--volume, --device, --runtime, --gpus,
// --shm-size, --ipc, -u/--user, -w/--workdir, --entrypoint, --cap-add,
// --group-add, -l/--label. --privileged and --network are already implied.
func ApplyParams(params []string, cc *container.Config, hc *container.HostConfig) []string {
	var ignored []string
	for i := 0; i < len(params); i++ {
		flag, value, inline := strings.Cut(params[i], "=")
		if !strings.HasPrefix(flag, "-") {
			ignored = append(ignored, params[i])
			continue
		}

		switch flag {
		case "--privileged", "--rm", "-d", "--detach", "-i", "-t", "-it":
			continue
		}
		if !valueFlags[flag] {
			ignored = append(ignored, params[i])
			continue
		}

		if !inline {
			if i+1 >= len(params) {
				ignored = append(ignored, params[i])
				continue
			}
			i++
			value = params[i]
		}

		if err := applyFlag(flag, value, cc, hc); err != nil {
			ignored = append(ignored, fmt.Sprintf("%s %s (%v)", flag, value, err))
		}
	}
	return ignored
}

// valueFlags are the flags that take a value. Any other flag is recorded
// on its own so it never swallows the argument after it.
var valueFlags = map[string]bool{
	"-e": true, "--env": true,
	"-v": true, "--volume": true,
	"--device": true, "--runtime": true, "--gpus": true,
	"--shm-size": true, "--ipc": true,
	"-u": true, "--user": true,
	"-w": true, "--workdir": true,
	"--entrypoint": true, "--cap-add": true, "--group-add": true,
	"-l": true, "--label": true,
	"--network": true, "--net": true, "--restart": true, "--name": true,
}

func applyFlag(flag, value string, cc *container.Config, hc *container.HostConfig) error {
	switch flag {
	case "-e", "--env":
		if !strings.Contains(value, "=") {
			v, ok := os.LookupEnv(value)
			if !ok {
				return fmt.Errorf("variable not set on host")
			}
			value += "=" + v
		}
		cc.Env = append(cc.Env, value)
	case "-v", "--volume":
		if !strings.Contains(value, ":") {
			return fmt.Errorf("anonymous volumes are not supported")
		}
		hc.Binds = append(hc.Binds, value)
	case "--device":
		dm, err := parseDevice(value)
		if err != nil {
			return err
		}
		hc.Devices = append(hc.Devices, dm)
	case "--runtime":
		hc.Runtime = value
	case "--gpus":
		req, err := parseGPUs(value)
		if err != nil {
			return err
		}
		hc.DeviceRequests = append(hc.DeviceRequests, req)
	case "--shm-size":
		n, err := units.RAMInBytes(value)
		if err != nil {
			return err
		}
		hc.ShmSize = n
	case "--ipc":
		hc.IpcMode = container.IpcMode(value)
	case "-u", "--user":
		cc.User = value
	case "-w", "--workdir":
		cc.WorkingDir = value
	case "--entrypoint":
		cc.Entrypoint = []string{value}
	case "--cap-add":
		hc.CapAdd = append(hc.CapAdd, value)
	case "--group-add":
		hc.GroupAdd = append(hc.GroupAdd, value)
	case "-l", "--label":
		k, v, _ := strings.Cut(value, "=")
		if cc.Labels == nil {
			cc.Labels = map[string]string{}
		}
		cc.Labels[k] = v
	case "--network", "--net", "--restart", "--name":
		return fmt.Errorf("managed by edgecore")
	default:
		return fmt.Errorf("unsupported flag")
	}
	return nil
}

// parseDevice parses host[:container[:permissions]].
func parseDevice(value string) (container.DeviceMapping, error) {
	parts := strings.Split(value, ":")
	dm := container.DeviceMapping{CgroupPermissions: "rwm"}
	switch len(parts) {
	case 3:
		dm.CgroupPermissions = parts[2]
		fallthrough
	case 2:
		dm.PathInContainer = parts[1]
		fallthrough
	case 1:
		dm.PathOnHost = parts[0]
	default:
		return dm, fmt.Errorf("invalid device %q", value)
	}
	if dm.PathOnHost == "" {
		return dm, fmt.Errorf("invalid device %q", value)
	}
	if dm.PathInContainer == "" {
		dm.PathInContainer = dm.PathOnHost
	}
	return dm, nil
}

// parseGPUs supports "all" and a device count.
func parseGPUs(value string) (container.DeviceRequest, error) {
	req := container.DeviceRequest{Capabilities: [][]string{{"gpu"}}}
	if value == "all" {
		req.Count = -1
		return req, nil
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
		return req, fmt.Errorf("invalid gpu request %q", value)
	}
	req.Count = n
	return req, nil
}
