package domain

// Logger is the minimal leveled logging contract accepted throughout the
// module. Args are alternating key/value pairs in the log/slog convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything. It is the default
// wherever no logger is injected.
func NopLogger() Logger { return nopLogger{} }
