package geobase

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is stamped on every entry written by loggers from NewZapLoggerWithOptions
const ServiceName = "geobase"

// LogOptions configures the zap logger used by the geobase commands
type LogOptions struct {
	// Level is a zap level name such as "debug" or "warn". Empty means info.
	Level string

	// Development selects colored console output instead of JSON
	Development bool
}

// ZapLogger writes geobase log entries through a zap sugared logger
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// NewZapLoggerWithOptions builds a zap logger from opts.
// An unknown level name is ErrInvalidConfig.
func NewZapLoggerWithOptions(opts LogOptions) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, WithContext(fmt.Errorf("%w: %w", ErrInvalidConfig, err), map[string]interface{}{
				"level": opts.Level,
			})
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := cfg.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return NewZapLogger(logger), nil
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) { l.sugar.Debugw(msg, fields...) }
func (l *ZapLogger) Info(msg string, fields ...interface{})  { l.sugar.Infow(msg, fields...) }
func (l *ZapLogger) Warn(msg string, fields ...interface{})  { l.sugar.Warnw(msg, fields...) }
func (l *ZapLogger) Error(msg string, fields ...interface{}) { l.sugar.Errorw(msg, fields...) }

// With returns a child logger carrying fields on every entry
func (l *ZapLogger) With(fields ...interface{}) *ZapLogger {
	return &ZapLogger{sugar: l.sugar.With(fields...)}
}

// Desugar returns the structured zap logger, for the HTTP middleware
func (l *ZapLogger) Desugar() *zap.Logger {
	return l.sugar.Desugar()
}

// Sync flushes buffered entries; call it before the process exits
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}
