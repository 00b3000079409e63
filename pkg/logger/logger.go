// Package logger configures the process-wide zap logger.
//
// In development mode logs go to stdout with a colored console encoder; in
// production mode they are JSON-encoded and written to a rotated file (plus
// stdout). Components receive a *zap.Logger and default to L().
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Filename   string // log file path; empty means stdout only
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// Init builds the global logger. mode is "dev" or "prod".
func Init(cfg Config, mode string) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return err
		}
	}

	var core zapcore.Core
	if mode == "dev" || mode == "development" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level)
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc := zapcore.NewJSONEncoder(encCfg)

		syncers := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}
		if cfg.Filename != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
				return err
			}
			syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.Filename,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
			}))
		}
		core = zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(syncers...), level)
	}

	mu.Lock()
	global = zap.New(core, zap.AddCaller())
	mu.Unlock()
	return nil
}

// L returns the global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = global.Sync()
}
