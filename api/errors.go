// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for mountmon.

package api

import "fmt"

// Common errors used across the library. Timeouts, exhausted drains and
// missing secondary records are reported as boolean results, never as
// errors; these sentinels cover genuine failures only.
var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotSupported    = fmt.Errorf("operation not supported")
	ErrNotFound        = fmt.Errorf("resource not found")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	// ErrCodeOK is the zero value; no failure.
	ErrCodeOK ErrorCode = iota
	// ErrCodeInternal flags a consistency failure inside the engine, for
	// example a readiness event whose tag matches no registered entry.
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
