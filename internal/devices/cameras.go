// Package devices enumerates the cameras and serial ports attached to the
// edge and reads the device files kept in the config directory.
package devices

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	v4l2Tool        = "v4l2-ctl"
	listTimeout     = 10 * time.Second
	infoTimeout     = 5 * time.Second
	maxInfoParallel = 4
)

// ErrUnsupported is returned when camera discovery is not available on
// this platform.
var ErrUnsupported = errors.New("camera discovery not supported on this platform")

// Camera is a video capture device grouping the /dev/video* nodes it exposes.
type Camera struct {
	Card    string
	BusInfo string
	Paths   []string
	Driver  string
	Serial  string
}

// PrimaryPath is the first video node, usually the capture node.
func (c Camera) PrimaryPath() string {
	if len(c.Paths) == 0 {
		return ""
	}
	return c.Paths[0]
}

var videoIndexRe = regexp.MustCompile(`/dev/video(\d+)`)

// Index returns the numeric index of the primary path, e.g. 2 for /dev/video2.
func (c Camera) Index() (int, bool) {
	m := videoIndexRe.FindStringSubmatch(c.PrimaryPath())
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

var cardHeaderRe = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\):\s*$`)

// ParseV4L2List parses `v4l2-ctl --list-devices` output. Cards without any
// /dev/video node (media-only controllers) are dropped.
func ParseV4L2List(output string) []Camera {
	var (
		cams []*Camera
		cur  *Camera
	)
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			continue
		}
		if line[0] == '\t' || line[0] == ' ' {
			path := strings.TrimSpace(line)
			if cur != nil && strings.HasPrefix(path, "/dev/video") {
				cur.Paths = append(cur.Paths, path)
			}
			continue
		}
		if m := cardHeaderRe.FindStringSubmatch(line); m != nil {
			cur = &Camera{Card: strings.TrimSpace(m[1]), BusInfo: strings.TrimSpace(m[2])}
		} else {
			cur = &Camera{Card: strings.TrimSpace(strings.TrimRight(line, ":"))}
		}
		cams = append(cams, cur)
	}

	out := make([]Camera, 0, len(cams))
	for _, c := range cams {
		if len(c.Paths) > 0 {
			out = append(out, *c)
		}
	}
	return out
}

var infoKeys = map[string]string{
	"driver_name":   "driver",
	"driver":        "driver",
	"card_type":     "card",
	"card":          "card",
	"bus_info":      "bus_info",
	"serial":        "serial",
	"serial_number": "serial",
}

// ParseV4L2Info extracts driver, card, bus_info and serial from
// `v4l2-ctl --device=X --all` output. Later lines win.
func ParseV4L2Info(output string) map[string]string {
	info := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		v := strings.TrimSpace(value)
		if alias, ok := infoKeys[k]; ok && v != "" {
			info[alias] = v
		}
	}
	return info
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Scanner discovers devices on the local host.
type Scanner struct {
	run      CommandRunner
	lookPath func(string) (string, error)
	goos     string
	devDir   string
	log      *slog.Logger
}

type ScannerOption func(*Scanner)

// WithCommandRunner replaces command execution, for tests.
func WithCommandRunner(run CommandRunner, lookPath func(string) (string, error)) ScannerOption {
	return func(s *Scanner) {
		s.run = run
		s.lookPath = lookPath
	}
}

// WithPlatform overrides the detected OS and device directory.
func WithPlatform(goos, devDir string) ScannerOption {
	return func(s *Scanner) {
		s.goos = goos
		s.devDir = devDir
	}
}

func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		run:      execRunner,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
		devDir:   "/dev",
		log:      slog.With("component", "devices"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverCameras lists cameras through v4l2-ctl. Only Linux is supported.
// A failing listing that still printed devices is used as is, since
// v4l2-ctl exits non-zero when any single node is inaccessible.
func (s *Scanner) DiscoverCameras(ctx context.Context) ([]Camera, error) {
	if s.goos != "linux" {
		return nil, fmt.Errorf("discover cameras on %s: %w", s.goos, ErrUnsupported)
	}
	if _, err := s.lookPath(v4l2Tool); err != nil {
		return nil, fmt.Errorf("discover cameras: %s not found (install v4l-utils): %w", v4l2Tool, err)
	}

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	out, err := s.run(listCtx, v4l2Tool, "--list-devices")
	if err != nil {
		if len(out) == 0 {
			return nil, fmt.Errorf("list v4l2 devices: %w", err)
		}
		s.log.Warn("v4l2-ctl reported errors, using partial output.", "err", err)
	}

	cams := ParseV4L2List(string(out))
	s.enrich(ctx, cams)
	s.log.Info("Discovered cameras.", "count", len(cams))
	return cams, nil
}

// enrich fills driver and serial from per-device info. Each goroutine owns
// one slice element. Failures leave the fields empty.
func (s *Scanner) enrich(ctx context.Context, cams []Camera) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInfoParallel)
	for i := range cams {
		path := cams[i].PrimaryPath()
		g.Go(func() error {
			infoCtx, cancel := context.WithTimeout(gctx, infoTimeout)
			defer cancel()
			out, err := s.run(infoCtx, v4l2Tool, "--device="+path, "--all")
			if err != nil {
				s.log.Debug("Failed to read v4l2 device info.", "path", path, "err", err)
				return nil
			}
			info := ParseV4L2Info(string(out))
			if v := info["driver"]; v != "" {
				cams[i].Driver = v
			}
			if v := info["serial"]; v != "" {
				cams[i].Serial = v
			}
			return nil
		})
	}
	_ = g.Wait()
}
