package hostbridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corrreia/hostbridge/internal/shared"
)

// Logger is a tagged logger for host code
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type logger struct {
	tag    string
	fields map[string]interface{}
	suffix string
}

// GetLogger returns a logger that prefixes every line with tag
func GetLogger(tag string) Logger {
	return &logger{tag: tag}
}

func (l *logger) Debug(format string, args ...interface{}) {
	shared.Log(shared.LogLevelDebug, l.tag, l.format(format, args...))
}

func (l *logger) Info(format string, args ...interface{}) {
	shared.Log(shared.LogLevelInfo, l.tag, l.format(format, args...))
}

func (l *logger) Warning(format string, args ...interface{}) {
	shared.Log(shared.LogLevelWarning, l.tag, l.format(format, args...))
}

func (l *logger) Error(format string, args ...interface{}) {
	shared.Log(shared.LogLevelError, l.tag, l.format(format, args...))
}

func (l *logger) format(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...) + l.suffix
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &logger{tag: l.tag, fields: merged, suffix: formatFields(merged)}
}

// formatFields renders fields as " k=v" pairs in key order
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}
