package console

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger writes human-readable records to stderr via charmbracelet/log.
// It satisfies logger.Backend.
type Logger struct {
	inner *log.Logger
}

// Params configures a console Logger.
type Params struct {
	// Debug lowers the level gate from INFO to DEBUG.
	Debug bool
	// Prefix labels every record, e.g. "worker" or "api".
	Prefix string
}

// New creates a console logger on stderr with timestamps enabled.
func New(params Params) *Logger {
	level := log.InfoLevel
	if params.Debug {
		level = log.DebugLevel
	}
	inner := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          params.Prefix,
	})
	return &Logger{inner: inner}
}

func (l *Logger) Debug(message string, keyvals ...any) {
	l.inner.Debug(message, keyvals...)
}

func (l *Logger) Info(message string, keyvals ...any) {
	l.inner.Info(message, keyvals...)
}

func (l *Logger) Warn(message string, keyvals ...any) {
	l.inner.Warn(message, keyvals...)
}

func (l *Logger) Error(message string, keyvals ...any) {
	l.inner.Error(message, keyvals...)
}

// Fatal logs the record and exits the process with status 1.
func (l *Logger) Fatal(message string, keyvals ...any) {
	l.inner.Fatal(message, keyvals...)
}
