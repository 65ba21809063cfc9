// Package logger builds the service's structured slog logger and carries
// request correlation ids through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// CorrelationIDKey is the context key for the request correlation id
const CorrelationIDKey ContextKey = "correlation_id"

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string
	// Format is json or text
	Format string
	// Output is stdout, stderr or a file path
	Output    string
	AddSource bool
}

// DefaultConfig returns the logger configuration from the environment
func DefaultConfig() Config {
	return Config{
		Level:     getEnv("LOG_LEVEL", "info"),
		Format:    getEnv("LOG_FORMAT", "json"),
		Output:    getEnv("LOG_OUTPUT", "stdout"),
		AddSource: strings.EqualFold(os.Getenv("LOG_ADD_SOURCE"), "true"),
	}
}

// New creates a structured logger based on configuration
func New(cfg Config) *slog.Logger {
	return slog.New(newHandler(cfg, openOutput(cfg.Output)))
}

// NewWithWriter builds a logger writing to w; used by tests
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	return slog.New(newHandler(cfg, w))
}

func newHandler(cfg Config, output io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(output, opts)
	}
	return slog.NewJSONHandler(output, opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func openOutput(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return os.Stdout
	}
	return file
}

// sensitiveKeys are attribute key fragments whose values never reach the log
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"authorization",
	"cookie",
	"session_id",
	"remember",
	"signing_key",
}

// redact masks attributes whose key contains a sensitive fragment
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// WithCorrelationID returns a logger tagged with the correlation id in ctx
func WithCorrelationID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id := GetCorrelationID(ctx)
	if id == "" {
		return logger
	}
	return logger.With(slog.String("correlation_id", id))
}

// GetCorrelationID extracts the correlation id from ctx
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// SetCorrelationID adds a correlation id to ctx
func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
