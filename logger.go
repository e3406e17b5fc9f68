package migrator

import (
	"context"
	"log/slog"
)

// Logger is the observability hook used throughout the engine.
// A nil Logger is legal everywhere and disables logging.
type Logger interface {
	// Debug logs fine-grained progress with alternating key/value pairs.
	Debug(ctx context.Context, msg string, keysAndValues ...any)

	// Info logs notable lifecycle events with alternating key/value pairs.
	Info(ctx context.Context, msg string, keysAndValues ...any)

	// Error logs failures with alternating key/value pairs.
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a Logger backed by the given slog logger.
// Passing nil uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

func (l *slogLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	l.logger.DebugContext(ctx, msg, keysAndValues...)
}

func (l *slogLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	l.logger.InfoContext(ctx, msg, keysAndValues...)
}

func (l *slogLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	l.logger.ErrorContext(ctx, msg, keysAndValues...)
}
