// Package errors provides structured error types for depscout.
//
// Every failure that crosses a package boundary toward the CLI or the HTTP
// API carries a [Code] so callers can branch on it without string matching.
//
// # Error Codes
//
//   - INVALID_*: caller input rejected before any file is read
//   - NO_DETECTORS: nothing would run and the caller required at least one
//   - DETECTOR_*: a single detector unit failed; never fatal for a scan
//   - CANCELED: the whole scan was cancelled
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFilter, "unknown category %q", c)
//	if errors.Is(err, errors.ErrCodeInvalidFilter) {
//	    // reject the request
//	}
//
//	err := errors.Wrap(errors.ErrCodeDetectorFailed, cause, "%s on %s", id, loc)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"
	ErrCodeInvalidFilter    Code = "INVALID_FILTER"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeInvalidFormat    Code = "INVALID_FORMAT"
	ErrCodeInvalidComponent Code = "INVALID_COMPONENT"

	// Scan outcome errors
	ErrCodeNoDetectors     Code = "NO_DETECTORS"
	ErrCodeDetectorFailed  Code = "DETECTOR_FAILED"
	ErrCodeDetectorTimeout Code = "DETECTOR_TIMEOUT"
	ErrCodeCanceled        Code = "CANCELED"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeStorage  Code = "STORAGE_ERROR"

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

// UserMessage returns the message without the code prefix for *Error values
// and the plain error string otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Fatal reports whether err aborts a scan. Failures of individual detector
// units are recorded in the report instead.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	switch GetCode(err) {
	case ErrCodeDetectorFailed, ErrCodeDetectorTimeout:
		return false
	}
	return true
}
