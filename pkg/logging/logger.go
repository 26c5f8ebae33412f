// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Format     string // "json" or "console"
	Output     string // "stdout", "stderr", or file path
	TimeFormat string
	NoColor    bool
}

// DefaultLogConfig returns default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339Nano,
	}
}

// New creates a logger with the given configuration.
func New(serviceName, version string, config LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = config.TimeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer

	// Determine output destination
	switch config.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Apply console formatting if requested
	if config.Format == "console" || config.Format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    config.NoColor,
		}
	}

	return zerolog.New(output).
		Level(parseLogLevel(config.Level)).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
}

// parseLogLevel converts a string log level to zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithDeviceContext adds device context to the logger.
func WithDeviceContext(logger zerolog.Logger, deviceID string) zerolog.Logger {
	return logger.With().Str("device_id", deviceID).Logger()
}
