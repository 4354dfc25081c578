package logsink

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap forwards events to a zap logger.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps logger. A nil logger is replaced by zap.NewNop.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

// NewConsoleLogger builds the human-readable zap logger used by the command.
// Debug enables debug-level output.
func NewConsoleLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func (z *Zap) Append(msg string, sev Severity) {
	switch sev {
	case Warning:
		z.logger.Warn(msg)
	case Error:
		z.logger.Error(msg)
	default:
		z.logger.Info(msg)
	}
}

// Debugf logs at debug level. Debug output stays out of the Sink event
// stream and only reaches the console.
func (z *Zap) Debugf(format string, args ...any) {
	z.logger.Sugar().Debugf(format, args...)
}

// Logger returns the wrapped zap logger.
func (z *Zap) Logger() *zap.Logger {
	return z.logger
}
