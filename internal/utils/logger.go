// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

// Fields carries structured key/value context for a log line
type Fields map[string]interface{}

// Logger is a levelled logger writing to stdout and an optional log file.
// Loggers derived with With share the same sink.
type Logger struct {
	sink      *logSink
	component string
	fields    Fields
}

type logSink struct {
	mu      sync.Mutex
	out     io.Writer
	file    *os.File
	level   LogLevel
	enabled bool
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the process-wide logger
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = NewLogger(os.Stdout, INFO)
	})
	return globalLogger
}

// NewLogger creates a standalone logger; tests pass a buffer as out
func NewLogger(out io.Writer, level LogLevel) *Logger {
	return &Logger{
		sink: &logSink{
			out:     out,
			level:   level,
			enabled: true,
		},
	}
}

// InitLogger attaches a log file to the global logger
func InitLogger(logFile string) error {
	return GetLogger().AttachFile(logFile)
}

// AttachFile opens logFile for appending and mirrors all output to it
func (l *Logger) AttachFile(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		l.sink.file.Close()
	}
	l.sink.file = file
	return nil
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Enable enables or disables logging
func (l *Logger) Enable(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.enabled = enabled
}

// With returns a logger tagged with component and carrying fields on every line
func (l *Logger) With(component string, fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if component == "" {
		component = l.component
	}
	return &Logger{sink: l.sink, component: component, fields: merged}
}

func (l *Logger) log(level LogLevel, message string, fields Fields) {
	l.sink.mu.Lock()
	skip := !l.sink.enabled || level < l.sink.level
	l.sink.mu.Unlock()
	if skip {
		return
	}

	file, line := "???", 0
	if _, f, ln, ok := runtime.Caller(2); ok {
		file, line = filepath.Base(f), ln
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s:%d",
		levelToString(level),
		time.Now().Format("2006-01-02 15:04:05.000"),
		file,
		line)
	if l.component != "" {
		fmt.Fprintf(&b, " [%s]", l.component)
	}
	b.WriteString(" - ")
	b.WriteString(message)

	all := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		all[k] = v
	}
	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, all[k])
		}
	}
	b.WriteByte('\n')

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		l.sink.file.WriteString(b.String())
	}
	if l.sink.out != nil {
		io.WriteString(l.sink.out, b.String())
	}
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields Fields) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields Fields) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields Fields) {
	l.log(WARNING, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields Fields) {
	l.log(ERROR, message, fields)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(INFO, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WARNING, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ERROR, fmt.Sprintf(format, args...), nil)
}
