package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"edgecore/internal/boot"
	"edgecore/internal/devices"
	"edgecore/internal/twin"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

func TestPrintOutcome(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	tests := []struct {
		name    string
		outcome boot.Outcome
		want    []string
	}{
		{
			name:    "ok with detail",
			outcome: boot.Outcome{Phase: boot.PhaseLoadEnvironmentLink, Result: boot.ResultOK, Detail: "5a0c1e3f"},
			want:    []string{"  Checking environment …   OK (5a0c1e3f)"},
		},
		{
			name: "hard failure with hint",
			outcome: boot.Outcome{
				Phase:  boot.PhaseValidateToken,
				Result: boot.ResultHardFail,
				Detail: "token validation failed against https://api.example.test",
				Err:    errors.New("status 401"),
				Hint:   "Run 'cyberwave login' to refresh your credentials.",
			},
			want: []string{
				"  Validating token …       FAIL",
				"    token validation failed against https://api.example.test: status 401",
				"    Run 'cyberwave login' to refresh your credentials.",
			},
		},
		{
			name:    "none",
			outcome: boot.Outcome{Phase: boot.PhaseLoadEnvironmentLink, Result: boot.ResultNone, Detail: "no linked environment found in /etc/cyberwave/environment.json"},
			want: []string{
				"  Checking environment …   NONE",
				"    no linked environment found in /etc/cyberwave/environment.json",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printOutcome(&buf, tt.outcome)
			got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Fatalf("printOutcome() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestPrintDrivers(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	arm, _ := twin.ParseTwin(map[string]any{"uuid": "t1", "name": "arm"})
	cam, _ := twin.ParseTwin(map[string]any{"uuid": "t2"})
	var buf bytes.Buffer
	printDrivers(&buf, []boot.DriverResult{
		{Twin: arm, Image: "cyberwave/so101:1.0", Started: true},
		{Twin: cam, Err: twin.ErrNoDefaultDriver},
	})

	out := buf.String()
	for _, want := range []string{"arm → cyberwave/so101:1.0 OK", "t2 → - FAIL", twin.ErrNoDefaultDriver.Error()} {
		if !strings.Contains(out, want) {
			t.Errorf("printDrivers() missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	out := renderStatus(boot.StatusReport{
		CredentialsFound: true,
		Token:            boot.CheckPassed,
		Broker:           boot.CheckFailed,
		Devices:          []devices.Device{{Slug: "so101", Name: "Arm", Port: "/dev/ttyACM0"}},
	})
	for _, want := range []string{
		"Credentials: found",
		"Token:       valid",
		"MQTT:        unreachable",
		"Fingerprint: not generated yet",
		"Environment: not linked",
		"Devices:     1 configured",
		"    Arm (so101) @ /dev/ttyACM0",
		"Cameras:     none",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("renderStatus() missing %q in:\n%s", want, out)
		}
	}
}

func TestExecuteClosesAppOnFailure(t *testing.T) {
	for _, runErr := range []error{nil, errBootFailed} {
		closed := 0
		root := &cobra.Command{
			Use:           "edgecore",
			SilenceErrors: true,
			SilenceUsage:  true,
			RunE:          func(*cobra.Command, []string) error { return runErr },
		}
		root.SetArgs([]string{})

		err := execute(root, func() { closed++ })
		if !errors.Is(err, runErr) {
			t.Fatalf("execute() error = %v, want %v", err, runErr)
		}
		if closed != 1 {
			t.Fatalf("execute() with run error %v closed app %d times, want 1", runErr, closed)
		}
	}
}
