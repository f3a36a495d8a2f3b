// Package errors provides structured error types for ossinventory.
//
// Every failure the pipeline can produce carries a machine-readable [Code].
// The codes split into two families:
//
//   - Fatal codes (INVALID_INPUT, INVALID_MANIFEST, OUTPUT_FAILED) abort a run
//     because there is either nothing to process or nowhere to persist results.
//   - Per-dependency codes (RESOLUTION_FAILED, DESERIALIZATION_FAILED,
//     FETCH_FAILED, CANCELLED) are recorded against a single dependency and
//     never stop its siblings.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "manifest path is required")
//	if errors.IsFatal(err) {
//	    return err
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetch, origErr, "download %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Per-dependency failures
	ErrCodeResolution      Code = "RESOLUTION_FAILED"
	ErrCodeDeserialization Code = "DESERIALIZATION_FAILED"
	ErrCodeFetch           Code = "FETCH_FAILED"
	ErrCodeCancelled       Code = "CANCELLED"

	// Output errors
	ErrCodeOutput Code = "OUTPUT_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// Only the outermost *Error is consulted.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err must terminate a run: input that cannot be read
// or output that cannot be written.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidManifest, ErrCodeInvalidConfig, ErrCodeOutput:
		return true
	}
	return false
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
