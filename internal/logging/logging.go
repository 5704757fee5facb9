/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Structured Logging
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Environment variable to control log level
const envLogLevel = "OPF_LOG_LEVEL"

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	logger   *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	if level, ok := ParseLevel(os.Getenv(envLogLevel)); ok {
		levelVar.Set(level.slogLevel())
	}
	logger = newLogger(os.Stderr)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// ParseLevel converts a level name into a LogLevel.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug-level message with structured fields
func Debug(message string, keyvals ...interface{}) {
	current().Debug(message, keyvals...)
}

// Info logs an info-level message with structured fields
func Info(message string, keyvals ...interface{}) {
	current().Info(message, keyvals...)
}

// Warn logs a warning-level message with structured fields
func Warn(message string, keyvals ...interface{}) {
	current().Warn(message, keyvals...)
}

// Error logs an error-level message with structured fields
func Error(message string, keyvals ...interface{}) {
	current().Error(message, keyvals...)
}

// With returns a logger that adds the given fields to every record. Components
// that hold their own logger (scheduler, scraper) take one of these.
func With(keyvals ...interface{}) *slog.Logger {
	return current().With(keyvals...)
}

// SetLevel sets the minimum log level to output
func SetLevel(level LogLevel) {
	levelVar.Set(level.slogLevel())
}

// GetLevel returns the current minimum log level
func GetLevel() LogLevel {
	switch l := levelVar.Level(); {
	case l <= slog.LevelDebug:
		return LevelDebug
	case l <= slog.LevelInfo:
		return LevelInfo
	case l <= slog.LevelWarn:
		return LevelWarn
	default:
		return LevelError
	}
}

// SetOutput redirects all log records to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}
