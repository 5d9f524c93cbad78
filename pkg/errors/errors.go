// Package errors provides structured error handling for tap-leaflink.
//
// Every failure the tap surfaces carries an ErrorType so that callers can
// tell a bad configuration apart from an HTTP failure or a broken pagination
// chain, and isolate failures per stream accordingly.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents configuration errors, raised before any request
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeAuthentication represents rejected credentials (401/403)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeConnection represents transport failures (dial, TLS, timeout)
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeHTTP represents non-2xx responses
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeData represents malformed response bodies or records
	ErrorTypeData ErrorType = "data"
	// ErrorTypePagination represents a next link that cannot be followed
	ErrorTypePagination ErrorType = "pagination"
	// ErrorTypeState represents state load/save failures
	ErrorTypeState ErrorType = "state"
	// ErrorTypeSink represents failures writing records or state downstream
	ErrorTypeSink ErrorType = "sink"
	// ErrorTypeInternal represents programming errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context.
// Details of a wrapped *Error are carried over so they survive re-wrapping.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}

	var existing *Error
	if errors.As(err, &existing) && len(existing.Details) > 0 {
		wrapped.Details = make(map[string]interface{}, len(existing.Details))
		for k, v := range existing.Details {
			wrapped.Details[k] = v
		}
	}

	return wrapped
}

// IsType checks if the error, or any error it wraps, is of the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost structured error, or
// ErrorTypeInternal when err carries no type.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Detail returns a detail value recorded on the outermost structured error.
func Detail(err error, key string) (interface{}, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
