package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestEnvTruthyValues(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "one", value: "1", want: true},
		{name: "true", value: "true", want: true},
		{name: "yes", value: "YES", want: true},
		{name: "on", value: " on ", want: true},
		{name: "zero", value: "0", want: false},
		{name: "false", value: "false", want: false},
		{name: "empty", value: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("EDGECORE_TEST_TRUTHY", tc.value)
			if got := envTruthy("EDGECORE_TEST_TRUTHY"); got != tc.want {
				t.Fatalf("envTruthy() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestColorDisabledByFlagAndEnv(t *testing.T) {
	if colorEnabled(true) {
		t.Fatal("colorEnabled(true) = true")
	}
	t.Setenv("NO_COLOR", "1")
	if colorEnabled(false) {
		t.Fatal("colorEnabled() = true with NO_COLOR set")
	}
}

func TestStepLineAndKeyValues(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	got := StepLine("Checking environment", 24, "OK", "5a0c1e3f")
	if got != "  Checking environment …   OK (5a0c1e3f)" {
		t.Fatalf("StepLine() = %q", got)
	}

	kv := KeyValues("  ", KV("Token", "valid"), KV("Environment", "none"))
	lines := strings.Split(strings.TrimRight(kv, "\n"), "\n")
	if len(lines) != 2 || lines[0] != "  Token:       valid" || lines[1] != "  Environment: none" {
		t.Fatalf("KeyValues() = %q", kv)
	}
}
