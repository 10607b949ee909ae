// Package shared provides logging and other process-wide plumbing
// shared by the bridge, runtime and journal packages.
package shared

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel represents logging severity
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

// String returns the lowercase level name
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarning:
		return "warning"
	case LogLevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLogLevel maps a config string to a level. Unknown names map to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarning
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogCallback receives every log line that passes the level threshold.
// An embedding host installs one to route bridge output into its own console.
type LogCallback func(level LogLevel, tag, message string)

var (
	logCallback   LogCallback
	logCallbackMu sync.RWMutex

	minLevel  atomic.Int32
	debugMode atomic.Bool
)

// SetLogCallback installs the log sink. nil restores the slog default.
func SetLogCallback(cb LogCallback) {
	logCallbackMu.Lock()
	logCallback = cb
	logCallbackMu.Unlock()
}

// SetLogLevel sets the minimum level that is emitted
func SetLogLevel(level LogLevel) {
	minLevel.Store(int32(level))
}

// SetDebug toggles DebugLog output
func SetDebug(enabled bool) {
	debugMode.Store(enabled)
}

// IsDebug reports whether debug logging is enabled
func IsDebug() bool {
	return debugMode.Load()
}

// Log emits a message at the given level
func Log(level LogLevel, tag, message string) {
	if int32(level) < minLevel.Load() {
		return
	}

	logCallbackMu.RLock()
	cb := logCallback
	logCallbackMu.RUnlock()

	if cb != nil {
		cb(level, tag, message)
		return
	}

	slog.Log(context.Background(), slogLevel(level), message, "tag", tag)
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarning:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDebug logs a formatted debug message
func LogDebug(tag, format string, args ...interface{}) {
	Log(LogLevelDebug, tag, fmt.Sprintf(format, args...))
}

// LogInfo logs a formatted info message
func LogInfo(tag, format string, args ...interface{}) {
	Log(LogLevelInfo, tag, fmt.Sprintf(format, args...))
}

// LogWarning logs a formatted warning message
func LogWarning(tag, format string, args ...interface{}) {
	Log(LogLevelWarning, tag, fmt.Sprintf(format, args...))
}

// LogError logs a formatted error message
func LogError(tag, format string, args ...interface{}) {
	Log(LogLevelError, tag, fmt.Sprintf(format, args...))
}

// DebugLog prints only when debug mode is on, regardless of the level threshold
func DebugLog(format string, args ...interface{}) {
	if !debugMode.Load() {
		return
	}

	logCallbackMu.RLock()
	cb := logCallback
	logCallbackMu.RUnlock()

	msg := fmt.Sprintf(format, args...)
	if cb != nil {
		cb(LogLevelDebug, "Debug", msg)
		return
	}
	slog.Info(msg, "tag", "Debug")
}
