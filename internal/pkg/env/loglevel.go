package env

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLogLevel returns the level named by LOG_LEVEL. Besides the slog
// names ("debug", "INFO", "warn+2", ...) it accepts "warning". Empty or
// unknown values yield fallback.
func ParseLogLevel(fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(Get("LOG_LEVEL", ""))
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if raw == "" || level.UnmarshalText([]byte(raw)) != nil {
		return fallback
	}
	return level
}

// NewLogger builds the logger of a command. The level comes from LOG_LEVEL,
// or is debug when verbose is set; LOG_FORMAT=json switches from text to
// JSON output.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := ParseLogLevel(slog.LevelInfo)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(Get("LOG_FORMAT", "text"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
