package identity

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testFacts = HostFacts{Hostname: "edge-01", System: "Linux", Machine: "x86_64", Node: 0x0242ac110002}

func TestGenerateIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Generate(testFacts)
	b := Generate(testFacts)
	if a != b {
		t.Fatalf("Generate() not deterministic: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "linux-") || len(a) != len("linux-")+16 {
		t.Fatalf("Generate() = %q, want linux-<16 hex>", a)
	}

	other := testFacts
	other.Hostname = "edge-02"
	if Generate(other) == a {
		t.Fatal("Generate() ignored hostname")
	}
}

func TestGetOrCreatePersistsAndReuses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "etc", "fingerprint.json")
	calls := 0
	m := NewManager(path, WithFacts(func() HostFacts {
		calls++
		return testFacts
	}))

	first, err := m.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted fingerprint: %v", err)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Fatalf("persisted file missing trailing newline: %q", data)
	}

	// Different facts must not change the persisted value.
	m2 := NewManager(path, WithFacts(func() HostFacts {
		calls++
		return HostFacts{Hostname: "renamed", System: "Linux"}
	}))
	second, err := m2.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate() second error = %v", err)
	}
	if second != first {
		t.Fatalf("fingerprint changed: %q -> %q", first, second)
	}
	if calls != 1 {
		t.Fatalf("facts collected %d times, want 1", calls)
	}
}

func TestGetOrCreateRecomputesUnreadableFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fingerprint.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path, WithFacts(func() HostFacts { return testFacts }))

	fp, err := m.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if fp != Generate(testFacts) {
		t.Fatalf("GetOrCreate() = %q, want %q", fp, Generate(testFacts))
	}
	if loaded, ok := m.Load(); !ok || loaded != fp {
		t.Fatalf("Load() = %q, %v after rewrite", loaded, ok)
	}
}

func TestGetOrCreateFailsWhenPersistFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	// Parent "directory" is a regular file, so MkdirAll fails.
	m := NewManager(filepath.Join(blocker, "fingerprint.json"), WithFacts(func() HostFacts { return testFacts }))

	_, err := m.GetOrCreate()
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("GetOrCreate() error = %v, want ErrPersist", err)
	}
}

func TestNodeFromInterfacesSkipsLoopbackAndZero(t *testing.T) {
	t.Parallel()

	ifaces := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagLoopback, HardwareAddr: net.HardwareAddr{0, 0, 0, 0, 0, 1}},
		{Index: 2, Name: "dummy", HardwareAddr: net.HardwareAddr{0, 0, 0, 0, 0, 0}},
		{Index: 3, Name: "eth0", HardwareAddr: net.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}},
	}
	if got := nodeFromInterfaces(ifaces); got != 0x0242ac110002 {
		t.Fatalf("nodeFromInterfaces() = %#x", got)
	}
	if got := nodeFromInterfaces(nil); got != 0 {
		t.Fatalf("nodeFromInterfaces(nil) = %d, want 0", got)
	}
}

func TestSystemName(t *testing.T) {
	t.Parallel()

	for goos, want := range map[string]string{"linux": "Linux", "darwin": "Darwin", "plan9": "Plan9"} {
		if got := systemName(goos); got != want {
			t.Errorf("systemName(%q) = %q, want %q", goos, got, want)
		}
	}
}
