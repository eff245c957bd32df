// Package logging provides a configured zerolog logger with:
// - TTY detection for human-readable vs JSON output
// - LOG_FORMAT env var override (console/json)
// - LOG_LEVEL env var (debug/info/warn/error)
// - context-based task id propagation for log correlation
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

// TaskIDKey is the context key carrying the current extraction's task id.
const TaskIDKey ContextKey = "log_task_id"

// WithTaskID adds a task id to the context for logging.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, TaskIDKey, taskID)
}

// GetTaskID extracts the task id from context, if any.
func GetTaskID(ctx context.Context) string {
	if v := ctx.Value(TaskIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FromContext returns a logger with task_id from context added as a field.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	if taskID := GetTaskID(ctx); taskID != "" {
		return logger.With().Str("task_id", taskID).Logger()
	}
	return logger
}

// New creates a configured zerolog.Logger.
//
// Format is determined by LOG_FORMAT (console/json) or TTY detection when
// unset. Level is determined by LOG_LEVEL (debug/info/warn/error, default info).
func New() zerolog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	zerolog.SetGlobalLevel(level)

	format := os.Getenv("LOG_FORMAT")
	if format == "console" || (format == "" && isatty(os.Stdout)) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
