package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// LevelTrace sits below debug for very chatty process output.
const LevelTrace = slog.LevelDebug - 4

// ParseLogLevel maps trace|debug|info|warn|error to a slog level.
// Anything else is info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a tint logger writing to w at the given level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      ParseLogLevel(level),
			TimeFormat: "15:04:05",
		}),
	)
}
