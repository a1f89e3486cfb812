// Package logger wraps log/slog with the process-wide configuration used by
// every forcemap binary: a level picked from config, JSON output in
// production, and request-scoped loggers that carry the request ID.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is the type for context keys owned by this package.
type ContextKey string

// RequestIDKey carries the request ID set by the requestid middleware.
const RequestIDKey ContextKey = "request_id"

var defaultLogger *slog.Logger

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Init configures the process logger and installs it as the slog default.
func Init(levelStr string) {
	defaultLogger = slog.New(newHandler(os.Stdout, parseLevel(levelStr)))
	slog.SetDefault(defaultLogger)
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("ENV") == "production" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel maps a config string to a slog level, defaulting to info.
func parseLevel(levelStr string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(levelStr))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Get returns the process logger, initializing it at info level if Init was
// never called (tests, one-off tools).
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info")
	}
	return defaultLogger
}

// WithRequestID returns a logger annotated with the request ID in ctx, or the
// plain process logger when the context carries none.
func WithRequestID(ctx context.Context) *slog.Logger {
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		return Get().With("request_id", reqID)
	}
	return Get()
}

// WithComponent returns a logger labeled with a component name, used by
// long-running pieces like the relayout job.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

// The *Context variants log through WithRequestID so handler code gets the
// request ID for free.

func DebugContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Debug(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Info(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Warn(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithRequestID(ctx).Error(msg, args...)
}
