package log

import (
	"context"
	"log/slog"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return newLogger(slog.Default(), "unknown")
}

// WithContext stores logger in ctx for FromContext
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogBackfill logs the outcome of one orchestration pass
func (sl *StructuredLogger) LogBackfill(ctx context.Context, regionCode5 string, stale, refreshed, failed int, err error) {
	fields := NewFields().
		WithOperation(OpBackfill).
		WithError(err).
		ToSlice()
	fields = append(fields, FieldRegionCode, regionCode5, "stale", stale, "refreshed", refreshed, "failed", failed)

	if err != nil || failed > 0 {
		sl.logger.WarnContext(ctx, "Backfill finished with failures", fields...)
		return
	}
	sl.logger.InfoContext(ctx, "Backfill finished", fields...)
}

// LogError logs an error with structured context. An empty component keeps
// the logger's own.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation)

	logger := sl.logger
	if component != "" && component != logger.component {
		logger = logger.WithComponent(component)
	}
	logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
