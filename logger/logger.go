// Package logger builds the process logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	timestampKey = "time"
	levelKey     = "level"
	callerKey    = "caller"
	messageKey   = "msg"
)

// ParseLevel returns the zap level named by level. An empty level is info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logger: invalid log level %q", level)
	}
}

// New returns a JSON logger writing to stderr at the given level.
func New(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = timestampKey
	cfg.EncoderConfig.LevelKey = levelKey
	cfg.EncoderConfig.CallerKey = callerKey
	cfg.EncoderConfig.MessageKey = messageKey
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// NewWithCore returns a logger writing JSON to ws. Used by tests to capture output.
func NewWithCore(level string, ws zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = timestampKey
	encCfg.LevelKey = levelKey
	encCfg.CallerKey = callerKey
	encCfg.MessageKey = messageKey
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, lvl)), nil
}
