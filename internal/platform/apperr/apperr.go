// Package apperr provides the structured error type shared by the game core
// and the transport layer.
//
// Codes split errors into the expected, user-facing outcomes (wrong phase,
// rules violation, bad credential) and invariant violations, which indicate
// a corrupted room and are never recoverable by the caller.
package apperr

import "errors"

// Error is the domain error type with a machine-readable code.
type Error struct {
	Code    Code   // machine-readable error code
	Message string // human-readable detail, safe to return to clients
	Cause   error  // wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code from an error, or CodeUnknown when the error is
// not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
