// Package logger provides component-scoped structured logging backed by zap.
//
// Call sites name the component they log for and attach fields as a map:
//
//	logger.InfoCF("listener", "Connected", map[string]interface{}{"attempt": 2})
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and output encoding.
type Config struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" env:"FORMAT" validate:"omitempty,oneof=json text"`
}

var current atomic.Pointer[zap.Logger]

func init() {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), zapcore.InfoLevel)
	current.Store(zap.New(core))
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init rebuilds the process logger from cfg.
func Init(cfg Config) error {
	var zcfg zap.Config
	if cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	zcfg.DisableStacktrace = true

	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	current.Store(l)
	return nil
}

// L returns the process logger.
func L() *zap.Logger { return current.Load() }

// Named returns a logger for one component.
func Named(component string) *zap.Logger { return current.Load().Named(component) }

// Replace swaps the process logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) (restore func()) {
	prev := current.Swap(l)
	return func() { current.Store(prev) }
}

// Sync flushes buffered entries.
func Sync() { _ = current.Load().Sync() }

func DebugC(component, msg string) { logC(zapcore.DebugLevel, component, msg, nil) }
func InfoC(component, msg string)  { logC(zapcore.InfoLevel, component, msg, nil) }
func WarnC(component, msg string)  { logC(zapcore.WarnLevel, component, msg, nil) }
func ErrorC(component, msg string) { logC(zapcore.ErrorLevel, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]interface{}) {
	logC(zapcore.DebugLevel, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	logC(zapcore.InfoLevel, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	logC(zapcore.WarnLevel, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	logC(zapcore.ErrorLevel, component, msg, fields)
}

func logC(level zapcore.Level, component, msg string, fields map[string]interface{}) {
	l := current.Load()
	ce := l.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(toZapFields(component, fields)...)
}

func toZapFields(component string, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
