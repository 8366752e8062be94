// Package observability provides structured logging and distributed
// tracing for the Conductor runtime.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is the type for context keys used to correlate log records.
type ContextKey string

const (
	// NetworkIDKey is the context key for the active network id.
	NetworkIDKey ContextKey = "network_id"
	// AgentIDKey is the context key for the active agent id.
	AgentIDKey ContextKey = "agent_id"
)

// LogConfig configures the logging backend.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string
	// Format selects "json" (production) or "text" (development).
	Format string
	// Output is the writer for log output; defaults to os.Stderr.
	Output io.Writer
	// AddSource includes file and line number in log records.
	AddSource bool
}

// NewLogger builds a *slog.Logger from cfg, applying sensible defaults when
// fields are left zero-valued.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

// WithContext returns a logger decorated with well-known correlation fields
// pulled from ctx, if present.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if v, ok := ctx.Value(NetworkIDKey).(string); ok && v != "" {
		logger = logger.With("network_id", v)
	}
	if v, ok := ctx.Value(AgentIDKey).(string); ok && v != "" {
		logger = logger.With("agent_id", v)
	}
	return logger
}
