package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Configure installs a process-wide slog default logger writing text
// records to stderr, where journald picks them up under the service unit.
//
// Supported levels: debug, info, warn, error.
func Configure(level string) error {
	parsed, err := parseLevel(level)
	if err != nil {
		return err
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	slog.SetDefault(slog.New(h))
	return nil
}

// FromHint maps a persisted log-level hint onto a supported level.
// Unknown or empty hints fall back to info; "warning" and "critical"
// are accepted as aliases since older credential files carry them.
func FromHint(hint string) string {
	switch h := strings.ToLower(strings.TrimSpace(hint)); h {
	case LevelDebug, LevelWarn, LevelError:
		return h
	case "warning":
		return LevelWarn
	case "critical", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}
