package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents logging severity. LevelNone silences everything.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "NONE"}

// String returns the level's name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelNone {
		return fmt.Sprintf("UNKNOWN(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a level name, case-insensitively, to a Level.
// Unknown names fall back to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger is the logging interface used across the pipeline. Methods
// take a printf format and arguments.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// DefaultLogger writes leveled lines to a writer. Writes are
// serialized so concurrent pipeline stages do not interleave lines.
type DefaultLogger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	now   func() time.Time
}

// NewDefaultLogger creates a logger writing to stderr.
func NewDefaultLogger(level Level) *DefaultLogger {
	return NewCustomLogger(os.Stderr, level)
}

// NewCustomLogger creates a logger with custom output.
func NewCustomLogger(out io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{out: out, level: level, now: time.Now}
}

func (l *DefaultLogger) logf(level Level, format string, v ...any) {
	if level < l.level {
		return
	}
	stamp := l.now().Format("2006/01/02 15:04:05")
	line := fmt.Sprintf("[medrag] %s [%s] %s\n", stamp, level, fmt.Sprintf(format, v...))
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, line)
}

func (l *DefaultLogger) Debug(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *DefaultLogger) Info(format string, v ...any)  { l.logf(LevelInfo, format, v...) }
func (l *DefaultLogger) Warn(format string, v ...any)  { l.logf(LevelWarn, format, v...) }
func (l *DefaultLogger) Error(format string, v ...any) { l.logf(LevelError, format, v...) }

// NoOpLogger discards everything. Pass it to constructors to silence
// a component under test.
type NoOpLogger struct{}

func (NoOpLogger) Debug(format string, v ...any) {}
func (NoOpLogger) Info(format string, v ...any)  {}
func (NoOpLogger) Warn(format string, v ...any)  {}
func (NoOpLogger) Error(format string, v ...any) {}

// Package-level logger so libraries can log without a Logger
// threaded through every constructor.
var defaultLogger Logger = NewDefaultLogger(LevelInfo)

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// GetDefaultLogger returns the current package-level logger.
func GetDefaultLogger() Logger {
	return defaultLogger
}

// SetLogLevel replaces the package-level logger with a stderr logger
// at the given level.
func SetLogLevel(level Level) {
	defaultLogger = NewDefaultLogger(level)
}

// Debug logs a debug message using the package-level logger.
func Debug(format string, v ...any) {
	defaultLogger.Debug(format, v...)
}

// Info logs an informational message using the package-level logger.
func Info(format string, v ...any) {
	defaultLogger.Info(format, v...)
}

// Warn logs a warning message using the package-level logger.
func Warn(format string, v ...any) {
	defaultLogger.Warn(format, v...)
}

// Error logs an error message using the package-level logger.
func Error(format string, v ...any) {
	defaultLogger.Error(format, v...)
}
