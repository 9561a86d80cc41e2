// Package telemetry builds the structured loggers shared by Tales
// services. Output is JSON lines, one event per line, tagged with the
// service name.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a production zap logger for a service. Level is one
// of debug, info, warn, error; empty means info.
func NewLogger(service, level string) (*zap.Logger, error) {
	parsed := zapcore.InfoLevel
	if level != "" {
		var err error
		parsed, err = zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("telemetry: unknown log level %q", level)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("telemetry: building logger: %w", err)
	}
	return logger.With(zap.String("service", service)), nil
}

// NewNopLogger returns a logger that discards everything, for tests.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
