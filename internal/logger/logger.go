// Package logger builds the process-wide zerolog logger and carries
// request-scoped loggers and correlation IDs through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config selects level, encoding and destination.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json (default) or console
	Output     string `mapstructure:"output"` // stdout (default), file, both
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxFiles   int    `mapstructure:"max_files"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type contextKey string

const (
	loggerKey        contextKey = "logger"
	correlationIDKey contextKey = "correlation_id"
)

// New creates a JSON logger on stdout at the given level. An invalid level
// falls back to info.
func New(level string) zerolog.Logger {
	return zerolog.New(os.Stdout).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewFromConfig creates a logger for a named service. Output "file" writes
// to a rotating file, "both" writes to stdout and the file.
func NewFromConfig(cfg Config, service string) zerolog.Logger {
	var stdout io.Writer = os.Stdout
	if cfg.Format == "console" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var writer io.Writer
	switch cfg.Output {
	case "file":
		writer = NewFileWriter(fileConfig(cfg))
	case "both":
		writer = zerolog.MultiLevelWriter(stdout, NewFileWriter(fileConfig(cfg)))
	default:
		writer = stdout
	}

	ctx := zerolog.New(writer).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func fileConfig(cfg Config) FileConfig {
	return FileConfig{
		Path:       cfg.FilePath,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxFiles:   cfg.MaxFiles,
		MaxAgeDays: cfg.MaxAgeDays,
	}
}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithCorrelationID stores a correlation ID in the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext returns the correlation ID, or "" if none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the context's logger with its correlation ID attached,
// or an info-level stdout logger if none was stored.
func FromContext(ctx context.Context) zerolog.Logger {
	var log zerolog.Logger

	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		log = l
	} else {
		log = New("info")
	}

	if id := CorrelationIDFromContext(ctx); id != "" {
		log = log.With().Str("correlation_id", id).Logger()
	}

	return log
}

// NewCorrelationID generates a new UUID-based correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
