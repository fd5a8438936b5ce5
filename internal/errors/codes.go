// Package errors provides the coded error taxonomy shared by the storage
// and retrieval engine. Codes classify failures by how callers should react,
// not by where they happened.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a specific error class.
type Code string

const (
	// CodeInvalidArgument indicates invalid input (empty content, self-relation).
	// Rejected before any store mutation; recoverable by caller correction.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeNotFound indicates a memo, tag or attachment is absent.
	CodeNotFound Code = "NOT_FOUND"
	// CodeProviderFailure indicates the embedding provider call failed.
	// Aborts the enclosing write; not retried automatically.
	CodeProviderFailure Code = "PROVIDER_FAILURE"
	// CodeStoreFailure indicates a connection or query error on a backing store.
	CodeStoreFailure Code = "STORE_FAILURE"
	// CodeMigrationFailure indicates a migration failed to apply. The process
	// must not begin serving traffic with an unmigrated schema.
	CodeMigrationFailure Code = "MIGRATION_FAILURE"
	// CodeBackupFailure indicates a backup attempt failed. Never affects
	// request-serving availability.
	CodeBackupFailure Code = "BACKUP_FAILURE"
	// CodeTimeout indicates the operation exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"
)

// Error is a structured error carrying a classification code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates cause with a code and message. Returns nil if cause is nil.
func Wrap(cause error, code Code, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err, or "" if err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err (or any error in its chain) carries code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsInvalidArgument reports whether err is a validation error.
func IsInvalidArgument(err error) bool {
	return HasCode(err, CodeInvalidArgument)
}
