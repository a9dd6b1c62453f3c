// Package common provides shared constants, types, and utilities
// used across the management parser.
package common

// Model is implemented by every record type that can be built from the
// raw text of a management reply: a single line or a block of lines.
type Model interface {
	// ParseRaw populates the record from raw management output.
	ParseRaw(raw string) error
}

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...interface{})
	// Info logs an informational message.
	Info(msg string, args ...interface{})
	// Warn logs a warning message.
	Warn(msg string, args ...interface{})
	// Error logs an error message.
	Error(msg string, args ...interface{})
}
