// Package logging builds the slog handlers used across go-obd-telemetry.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// NewHandler returns a JSON handler, or a text handler when format is
// "text". Verbose forces debug level, and debug adds source locations.
func NewHandler(w io.Writer, format, level string, verbose bool) slog.Handler {
	if w == nil {
		w = io.Discard
	}

	lvl := parseLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// New is NewHandler wrapped in a logger, without verbose mode.
func New(w io.Writer, format, level string) *slog.Logger {
	return slog.New(NewHandler(w, format, level, false))
}

// parseLevel accepts slog's own names ("info", "WARN+2") plus "warning".
// Anything else is info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SetDefault installs logger for packages that log through slog.Default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
