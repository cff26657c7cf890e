package util

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logger *slog.Logger

// LogOptions selects the handler and level of the global logger.
type LogOptions struct {
	Level     string // debug|info|warn|error
	Format    string // json|text
	AddSource bool
}

// InitLogger initializes the global structured logger writing to stdout.
func InitLogger(opts LogOptions) {
	logger = NewLogger(os.Stdout, opts)
	slog.SetDefault(logger)
}

// NewLogger builds a logger for w without touching the global one.
func NewLogger(w io.Writer, opts LogOptions) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		AddSource: opts.AddSource,
		Level:     ParseLevel(opts.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(w, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// GetLogger returns the initialized global logger.
func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger(LogOptions{Level: "info", Format: "json", AddSource: true})
	}
	return logger
}

// DiscardLogger returns a logger that drops everything. Used by tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
