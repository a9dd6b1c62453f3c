// Package common provides shared constants, types, and utilities
// used across the management parser.
package common

import "errors"

// Sentinel errors for management output parsing.
// These can be checked with errors.Is() for proper error handling.
var (
	// Primitive errors.
	ErrFormat                = errors.New("invalid format")
	ErrMalformedNotification = errors.New("malformed notification")

	// Record errors.
	ErrParse = errors.New("unexpected management output")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// Archive errors.
	ErrArchive         = errors.New("archive error")
	ErrSessionNotFound = errors.New("session not found")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
