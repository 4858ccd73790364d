package logger

// Backend is a logging sink. The package-level functions fan every record
// out to all configured backends.
type Backend interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

var backends []Backend

// Init installs the process-wide logging backends. Call once at startup,
// before any other package logs. Logging before Init is a silent no-op so
// library code never has to guard its log calls.
func Init(b ...Backend) {
	backends = b
}

func each(fn func(Backend)) {
	for _, b := range backends {
		fn(b)
	}
}

// Debug writes a DEBUG record to all backends.
func Debug(message string, keyvals ...any) {
	each(func(b Backend) { b.Debug(message, keyvals...) })
}

// Info writes an INFO record to all backends.
func Info(message string, keyvals ...any) {
	each(func(b Backend) { b.Info(message, keyvals...) })
}

// Warn writes a WARN record to all backends.
func Warn(message string, keyvals ...any) {
	each(func(b Backend) { b.Warn(message, keyvals...) })
}

// Error writes an ERROR record to all backends.
func Error(message string, keyvals ...any) {
	each(func(b Backend) { b.Error(message, keyvals...) })
}

// Fatal writes a FATAL record to all backends; the backend is expected to
// terminate the process.
func Fatal(message string, keyvals ...any) {
	each(func(b Backend) { b.Fatal(message, keyvals...) })
}
