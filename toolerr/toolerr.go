// Package toolerr provides a structured error type for agent/operation
// failures. Error preserves message and causal context while implementing
// the standard error interface, so it survives serialization into
// envelope.Result.Error while still supporting errors.Is/As.
package toolerr

import (
	"errors"
	"fmt"
)

// Error represents a structured operation failure. Errors may be nested via
// Cause to retain diagnostics across retries.
type Error struct {
	Message string
	Cause   *Error
}

// New constructs an Error with the given message.
func New(message string) *Error {
	if message == "" {
		message = "operation error"
	}
	return &Error{Message: message}
}

// Wrap constructs an Error that wraps an underlying error, converting it
// into an Error chain so metadata survives serialization while still
// supporting errors.Is/As through Unwrap.
func Wrap(message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Message: message, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into an Error chain.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Errorf formats according to a format specifier and returns it as an Error.
func Errorf(format string, args ...any) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
