/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Database Logging
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel is the verbosity of the database query log, independent of the
// application log level.
type LogLevel int

const (
	LogLevelNone  LogLevel = iota // silent
	LogLevelInfo                  // connections, queries, failures
	LogLevelDebug                 // pool settings, introspection, argument counts
	LogLevelTrace                 // full query text and bound arguments
)

const levelTrace = slog.LevelDebug - 4

var (
	logMu    sync.RWMutex
	logLevel = ParseLogLevel(os.Getenv("OPF_DB_LOG_LEVEL"))
	dbLogger = newDBLogger(os.Stderr)
)

func newDBLogger(w io.Writer) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelTrace})
	return slog.New(h).With("component", "database")
}

// ParseLogLevel maps none|info|debug|trace to a level; anything else is none.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	case "trace":
		return LogLevelTrace
	default:
		return LogLevelNone
	}
}

// SetLogLevel sets the database log level.
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	logLevel = level
	logMu.Unlock()
}

// GetLogLevel returns the database log level.
func GetLogLevel() LogLevel {
	logMu.RLock()
	defer logMu.RUnlock()
	return logLevel
}

// SetLogOutput redirects database log records to w.
func SetLogOutput(w io.Writer) {
	l := newDBLogger(w)
	logMu.Lock()
	dbLogger = l
	logMu.Unlock()
}

func emit(at LogLevel, msg string, keyvals ...any) {
	logMu.RLock()
	level, l := logLevel, dbLogger
	logMu.RUnlock()
	if level < at {
		return
	}
	sl := slog.LevelInfo
	switch at {
	case LogLevelDebug:
		sl = slog.LevelDebug
	case LogLevelTrace:
		sl = levelTrace
	}
	l.Log(context.Background(), sl, msg, keyvals...)
}

// LogConnection records a connection attempt with the password masked.
func LogConnection(connStr string, duration time.Duration, err error) {
	if err != nil {
		emit(LogLevelInfo, "Connection failed", "connection", SanitizeConnStr(connStr),
			"duration", duration, "error", err.Error())
		return
	}
	emit(LogLevelInfo, "Connection succeeded", "connection", SanitizeConnStr(connStr), "duration", duration)
}

// LogConnectionDetails records the pool settings in use.
func LogConnectionDetails(connStr string, poolConfig map[string]any) {
	attrs := make([]any, 0, len(poolConfig)*2+2)
	attrs = append(attrs, "connection", SanitizeConnStr(connStr))
	for k, v := range poolConfig {
		attrs = append(attrs, k, v)
	}
	emit(LogLevelDebug, "Connection details", attrs...)
}

// LogIntrospection records a column lookup on the member table.
func LogIntrospection(table string, columnCount int, duration time.Duration, err error) {
	if err != nil {
		emit(LogLevelInfo, "Introspection failed", "table", table, "duration", duration, "error", err.Error())
		return
	}
	emit(LogLevelDebug, "Introspection done", "table", table, "column_count", columnCount, "duration", duration)
}

// LogQuery records a query. Bound arguments only appear at trace level since
// they carry search terms and email addresses.
func LogQuery(query string, args []any, duration time.Duration, rowCount int, err error) {
	preview := truncate(strings.Join(strings.Fields(query), " "), 100)
	if err != nil {
		emit(LogLevelInfo, "Query failed", "query", preview, "duration", duration, "error", err.Error())
	} else {
		emit(LogLevelInfo, "Query succeeded", "query", preview, "row_count", rowCount, "duration", duration)
	}
	emit(LogLevelDebug, "Query arguments", "arg_count", len(args))
	emit(LogLevelTrace, "Query trace", "query", strings.TrimSpace(query), "args", args)
}

// LogPoolStats records connection pool usage.
func LogPoolStats(connStr string, acquiredConns, idleConns, maxConns int32) {
	emit(LogLevelDebug, "Pool stats", "connection", SanitizeConnStr(connStr),
		"acquired", acquiredConns, "idle", idleConns, "max", maxConns)
}

// SanitizeConnStr masks the password in a postgres:// URL
func SanitizeConnStr(connStr string) string {
	schemeIdx := strings.Index(connStr, "://")
	if schemeIdx == -1 {
		return connStr
	}

	scheme := connStr[:schemeIdx+3]
	rest := connStr[schemeIdx+3:]

	// The host separator is the last @ before the path or query
	end := len(rest)
	if i := strings.IndexAny(rest, "/?"); i != -1 {
		end = i
	}
	hostSepIdx := strings.LastIndex(rest[:end], "@")
	if hostSepIdx == -1 {
		return connStr
	}

	credentials := rest[:hostSepIdx]
	colonIdx := strings.Index(credentials, ":")
	if colonIdx == -1 {
		return connStr
	}

	return scheme + credentials[:colonIdx] + ":***@" + rest[hostSepIdx+1:]
}

// truncate truncates a string to maxLen characters, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
