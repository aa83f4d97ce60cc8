package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init configures the process-wide logger. Call it once from main before
// anything else logs.
func Init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("SHIPD_DEBUG") != "" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	log = l
}

func l() *zap.Logger {
	if log == nil {
		Init()
	}
	return log
}

func Debug(msg string, fields ...zap.Field) { l().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { l().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { l().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { l().Error(msg, fields...) }

func Fatal(msg string, fields ...zap.Field) { l().Fatal(msg, fields...) }

func Infof(format string, args ...interface{}) { l().Info(fmt.Sprintf(format, args...)) }

func Warnf(format string, args ...interface{}) { l().Warn(fmt.Sprintf(format, args...)) }

func Errorf(format string, args ...interface{}) { l().Error(fmt.Sprintf(format, args...)) }

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
