// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetLogger replaces the logger used by store loggers created afterwards.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key for a request correlation id.
const CorrelationID LogContextKey = "correlation_id"

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableStoreLogging bool
}

// Config holds the current logging configuration.
var Config = LoggingConfig{
	EnableStoreLogging: true,
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// StoreLogger provides structured logging for document store operations.
type StoreLogger struct {
	document string
	logger   *Logger
}

// NewStoreLogger creates a new StoreLogger for the named document.
func NewStoreLogger(document string) *StoreLogger {
	return &StoreLogger{
		document: document,
		logger:   GlobalLogger,
	}
}

func (l *StoreLogger) attrs(ctx context.Context, operation string, fields map[string]any) []any {
	attrs := []any{
		slog.String("document", l.document),
		slog.String("operation", operation),
	}
	if id := ExtractCorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// LogRead logs a document read.
func (l *StoreLogger) LogRead(ctx context.Context, fields map[string]any) {
	if !Config.EnableStoreLogging {
		return
	}
	l.logger.DebugContext(ctx, "store read", l.attrs(ctx, "read", fields)...)
}

// LogWrite logs a document write.
func (l *StoreLogger) LogWrite(ctx context.Context, fields map[string]any) {
	if !Config.EnableStoreLogging {
		return
	}
	l.logger.InfoContext(ctx, "store write", l.attrs(ctx, "write", fields)...)
}

// LogWarn logs a recoverable store condition, such as a corrupt document read leniently.
func (l *StoreLogger) LogWarn(ctx context.Context, msg string, err error) {
	if !Config.EnableStoreLogging {
		return
	}
	attrs := l.attrs(ctx, "read", nil)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.WarnContext(ctx, msg, attrs...)
}

// LogError logs a store error.
func (l *StoreLogger) LogError(ctx context.Context, err error, operation string) {
	if !Config.EnableStoreLogging {
		return
	}
	attrs := l.attrs(ctx, operation, nil)
	attrs = append(attrs, slog.String("error", err.Error()))
	l.logger.ErrorContext(ctx, "store error", attrs...)
}
