// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Malformed or out-of-range input; reject the item, no side effect
//   - Lifecycle errors (200-299): Illegal position state transitions (e.g. double close)
//   - Concurrency errors (300-399): Per-key lock contention exceeding the retry budget
//   - Capacity errors (400-499): Portfolio slot budget exhausted; non-fatal, candidate skipped
//   - Data integrity errors (500-599): Audit violations on aggregate records; fatal per pattern key
//   - Store errors (600-699): Persistence layer failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeRecordNotFound, "no record for pattern %s", key)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to execute query", originalErr)
//
//	// Check error category
//	if errors.IsValidationError(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// inRange reports whether the error's code falls within [lo, hi].
func inRange(err error, lo, hi ErrorCode) bool {
	code := GetCode(err)

	return code >= lo && code <= hi
}

// IsValidationError reports whether err carries a validation error code.
// Validation failures reject a single item with no side effect; the batch continues.
func IsValidationError(err error) bool {
	return inRange(err, 100, 199)
}

// IsInvalidStateError reports whether err carries a lifecycle error code,
// such as closing an already-closed position.
func IsInvalidStateError(err error) bool {
	return inRange(err, 200, 299)
}

// IsConcurrencyConflict reports whether err carries a concurrency error code.
// Conflicting close events are requeued once and never silently dropped.
func IsConcurrencyConflict(err error) bool {
	return inRange(err, 300, 399)
}

// IsCapacityError reports whether err carries a capacity error code.
// Capacity failures are non-fatal; the candidate is skipped this cycle.
func IsCapacityError(err error) bool {
	return inRange(err, 400, 499)
}

// IsDataInconsistencyError reports whether err carries a data integrity error code.
// Integrity violations are fatal for the affected pattern key only.
func IsDataInconsistencyError(err error) bool {
	return inRange(err, 500, 599)
}
