package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger set by InitLogger. Components take a
// *zap.Logger explicitly; Log is for the command entrypoint.
var Log = zap.NewNop()

// New builds a zap logger for env. "production" writes JSON to stdout at
// info, anything else the colored development console at debug. A
// non-empty level ("debug", "warn", ...) overrides the env default.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stdout"}
		cfg.Sampling = nil
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// InitLogger replaces Log with a logger built for env and level.
func InitLogger(env, level string) error {
	l, err := New(env, level)
	if err != nil {
		return err
	}
	Log = l
	Log.Info("Logger initialized", zap.String("env", env), zap.Stringer("level", zapcore.LevelOf(l.Core())))
	return nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
