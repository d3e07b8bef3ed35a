// Package logger provides structured JSON logging and run metrics for camp-watch.
//
// Logs are written through zap with a JSON encoder so that cron or CI output can be
// parsed later. An optional rotating file sink (lumberjack) receives the same entries.
//
// Example usage:
//
//	logger.Info("fetched page", logger.Fields{
//	    "site": "hillbilly",
//	    "url":  url,
//	})
//
//	logger.Error("dispatch failed", logger.Fields{"site": name}, err)
//
//	logger.IncrCounter("records.extracted")
//	logger.RecordTiming("fetch.hillbilly", time.Since(start))
package logger

import (
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel converts user input such as "debug" or "WARN" to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger provides structured logging
type Logger struct {
	z *zap.Logger
}

var defaultLogger = New(LevelInfo, os.Stderr)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.MessageKey = "message"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func newCore(w zapcore.WriteSyncer, level Level) zapcore.Core {
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), w, level.zapLevel())
}

// New creates a logger writing JSON lines to w. Messages below level are discarded.
func New(level Level, w io.Writer) *Logger {
	return &Logger{z: zap.New(newCore(zapcore.Lock(zapcore.AddSync(w)), level))}
}

// NewWithFile creates a logger writing to w and to a rotated file at path.
// The returned closer must be closed before exit so the file is flushed.
func NewWithFile(level Level, w io.Writer, path string) (*Logger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:  path,
		MaxSize:   20,
		MaxAge:    30,
		LocalTime: true,
		Compress:  true,
	}
	core := zapcore.NewTee(
		newCore(zapcore.Lock(zapcore.AddSync(w)), level),
		newCore(zapcore.AddSync(rotator), level),
	)
	return &Logger{z: zap.New(core)}, rotator
}

// SetDefault sets the package-level logger used by Debug, Info, Warn and Error.
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

func toZap(fields Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{z: l.z.With(toZap(fields)...)}
}

// Debug logs detailed diagnostic information.
func (l *Logger) Debug(message string, fields Fields) {
	l.z.Debug(message, toZap(fields)...)
}

// Info logs general operational information.
func (l *Logger) Info(message string, fields Fields) {
	l.z.Info(message, toZap(fields)...)
}

// Warn logs a problem that did not stop the run.
func (l *Logger) Warn(message string, fields Fields) {
	l.z.Warn(message, toZap(fields)...)
}

// Error logs a failure together with the error that caused it.
func (l *Logger) Error(message string, fields Fields, err error) {
	zf := toZap(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	l.z.Error(message, zf...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}
