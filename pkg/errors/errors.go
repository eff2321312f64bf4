// Package errors defines the coded errors used across strict-dedupe and the
// Warning value that per-file failures are collected into.
//
// Per-file problems (ScanError, HashError, PlanConflictError) never abort a
// run; they are converted to warnings and reported next to the plan.
// Configuration problems are returned as errors before any scanning starts.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

const (
	ErrUnknown  ErrorCode = "UNKNOWN"
	ErrInternal ErrorCode = "INTERNAL"

	// ErrScan marks a path that could not be listed or stat'd.
	ErrScan ErrorCode = "SCAN"
	// ErrHash marks a file that could not be read fully while hashing.
	ErrHash ErrorCode = "HASH"
	// ErrPlanConflict marks a filename group with no free suffix left.
	ErrPlanConflict ErrorCode = "PLAN_CONFLICT"
	// ErrConfig marks invalid roots, destination, or settings.
	ErrConfig ErrorCode = "CONFIG"

	ErrApplyConflict ErrorCode = "APPLY_CONFLICT"
	ErrSourceMissing ErrorCode = "SOURCE_MISSING"
)

// DedupeError represents a structured error with code and details
type DedupeError struct {
	Code    ErrorCode
	Message string
	Path    string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *DedupeError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap implements the errors.Unwrap interface
func (e *DedupeError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a DedupeError with the same code.
func (e *DedupeError) Is(target error) bool {
	var targetErr *DedupeError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new DedupeError with the given code and message
func New(code ErrorCode, message string) *DedupeError {
	return &DedupeError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new DedupeError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DedupeError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a DedupeError. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *DedupeError {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DedupeError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithPath sets the filesystem path the error refers to.
func (e *DedupeError) WithPath(path string) *DedupeError {
	e.Path = path
	return e
}

// WithDetail adds a detail to the error
func (e *DedupeError) WithDetail(key string, value interface{}) *DedupeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ScanError reports a path that could not be listed or stat'd.
func ScanError(path string, err error) *DedupeError {
	return Wrap(err, ErrScan, "cannot scan").WithPath(path)
}

// HashError reports a file that could not be read fully during hashing.
func HashError(path string, err error) *DedupeError {
	return Wrap(err, ErrHash, "cannot hash").WithPath(path)
}

// PlanConflictError reports a filename group for which no free suffix exists.
func PlanConflictError(path string, limit int) *DedupeError {
	return Newf(ErrPlanConflict, "no free suffix below %d", limit).
		WithPath(path).
		WithDetail("limit", limit)
}

// ConfigurationError reports an invalid setting detected before scanning.
func ConfigurationError(format string, args ...interface{}) *DedupeError {
	return Newf(ErrConfig, format, args...)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var dedupeErr *DedupeError
	if errors.As(err, &dedupeErr) {
		return dedupeErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a DedupeError
func GetErrorCode(err error) ErrorCode {
	var dedupeErr *DedupeError
	if errors.As(err, &dedupeErr) {
		return dedupeErr.Code
	}
	return ErrUnknown
}

// Warning is the serialisable record of a non-fatal, per-path failure.
type Warning struct {
	Code    ErrorCode `json:"code" yaml:"code"`
	Path    string    `json:"path" yaml:"path"`
	Message string    `json:"message" yaml:"message"`
}

// String renders the warning for logs and terminal output.
func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Code, w.Path, w.Message)
}

// AsWarning converts err into a Warning. Errors that are not DedupeErrors are
// reported as INTERNAL.
func AsWarning(err error) Warning {
	var dedupeErr *DedupeError
	if !errors.As(err, &dedupeErr) {
		return Warning{Code: ErrInternal, Message: err.Error()}
	}
	msg := dedupeErr.Message
	if dedupeErr.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, dedupeErr.Wrapped)
	}
	return Warning{Code: dedupeErr.Code, Path: dedupeErr.Path, Message: msg}
}
