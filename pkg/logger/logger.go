// Package logger provides a simple logging interface for the application.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level represents a log level type.
type Level = string

const (
	// DEBUG is the log level for debugging messages.
	DEBUG Level = "DEBUG"
	// INFO is the log level for informational messages.
	INFO Level = "INFO"
	// WARN is the log level for warning messages.
	WARN Level = "WARN"
	// ERROR is the log level for error messages.
	ERROR Level = "ERROR"
)

// levels maps each supported level to its logrus counterpart.
var levels = map[Level]logrus.Level{
	DEBUG: logrus.DebugLevel,
	INFO:  logrus.InfoLevel,
	WARN:  logrus.WarnLevel,
	ERROR: logrus.ErrorLevel,
}

// Logger logs messages at different levels (DEBUG, INFO, WARN, ERROR).
// Output is formatted with full timestamps by logrus.
type Logger struct {
	entry *logrus.Entry
}

// New creates and returns a new Logger writing to stdout with a given log level.
// Unknown levels fall back to INFO.
func New(level Level) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput creates a Logger that writes to out.
func NewWithOutput(level Level, out io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	base.SetLevel(ParseLevel(level))

	return &Logger{entry: logrus.NewEntry(base)}
}

// ParseLevel converts a textual level into a logrus level, case-insensitively.
func ParseLevel(level Level) logrus.Level {
	if lvl, ok := levels[strings.ToUpper(strings.TrimSpace(level))]; ok {
		return lvl
	}
	if strings.EqualFold(level, "warning") {
		return logrus.WarnLevel
	}
	return logrus.InfoLevel
}

// With returns a Logger that attaches the given field to every message.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Debug logs a message with the DEBUG level.
func (l *Logger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

// Info logs a message with the INFO level.
func (l *Logger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

// Warn logs a message with the WARN level.
func (l *Logger) Warn(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

// Error logs a message with the ERROR level. It is the highest priority log level.
func (l *Logger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}
