package telemetry

import "log"

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Discard drops every line.
var Discard Logger = LoggerFunc(func(string, ...any) {})

// Or returns logger, or the standard logger when it is nil.
func Or(logger Logger) Logger {
	if logger == nil {
		return WrapLogger(log.Default())
	}
	return logger
}

// WithPrefix prepends "[prefix] " to every line, mirroring the per-team
// tags of the session logs.
func WithPrefix(logger Logger, prefix string) Logger {
	logger = Or(logger)
	if prefix == "" {
		return logger
	}
	tag := "[" + prefix + "] "
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf(tag+format, args...)
	})
}
