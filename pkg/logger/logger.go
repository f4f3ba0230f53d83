package logger

import (
	"os"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls the zap logger and log file rotation.
type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`
	Filename   string `env:"LOG_FILENAME"`
	MaxSize    int    `env:"LOG_MAX_SIZE"` // megabytes
	MaxAge     int    `env:"LOG_MAX_AGE"`  // days
	MaxBackups int    `env:"LOG_MAX_BACKUPS"`
}

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init builds the process logger. When Filename is empty logs go to stderr
// only; otherwise they are duplicated into a rotated file.
func Init(cfg LogConfig) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	sinks := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level),
	}
	if cfg.Filename != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
		}
		sinks = append(sinks, zapcore.NewCore(enc, zapcore.AddSync(rotated), level))
	}

	mu.Lock()
	global = zap.New(zapcore.NewTee(sinks...), zap.AddCaller())
	mu.Unlock()
	return nil
}

// L returns the process logger. Safe to call before Init; returns a nop
// logger in that case so library code never nil-checks.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = global.Sync()
}
