// Package observability provides OpenTelemetry-based tracing, metrics,
// and structured logging for the migration pipeline.
package observability

import (
	"io"
	"log/slog"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "gitport"
)

// Config holds observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// LogJSON enables JSON-formatted log output.
	LogJSON bool
}

// DefaultConfig returns a Config with sensible defaults for
// zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		LogLevel:    slog.LevelInfo,
	}
}

// NewLogger builds the process logger per config.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
