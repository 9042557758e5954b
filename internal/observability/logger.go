// Package observability provides the service logger built on zerolog.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string // trace|debug|info|warn|error
	Format  string // json or console
	Service string
	Output  io.Writer
}

// NewLogger builds the root logger. Console format is human-oriented for
// local runs; JSON is the default for deployments.
func NewLogger(cfg LogConfig) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(parseLevel(cfg.Level)).With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
	return logger
}

// Component returns a child logger tagged with a pipeline component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
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
