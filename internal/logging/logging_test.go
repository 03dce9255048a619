package logging

import "testing"

func TestFromHint(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		hint string
		want string
	}{
		{hint: "", want: LevelInfo},
		{hint: "DEBUG", want: LevelDebug},
		{hint: " warn ", want: LevelWarn},
		{hint: "warning", want: LevelWarn},
		{hint: "critical", want: LevelError},
		{hint: "error", want: LevelError},
		{hint: "verbose", want: LevelInfo},
	}

	for _, tc := range testCases {
		if got := FromHint(tc.hint); got != tc.want {
			t.Errorf("FromHint(%q) = %q, want %q", tc.hint, got, tc.want)
		}
	}
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	if err := Configure("loud"); err == nil {
		t.Fatal("Configure() error = nil, want invalid level error")
	}
}
