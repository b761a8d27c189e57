// Package errors provides the coded domain errors returned by the storage core.
//
// Usage:
//
//	// In services - return typed errors
//	if !entry.AcquisitionType.IsLocal() {
//	    return errors.NotEditablef("book %s was not authored locally", bookID)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrStorageUnavailable) {
//	    return emptyLibrary
//	}
//
//	// Or use the Code directly for switch statements
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeTransactionAborted:
//	        retry()
//	    case errors.CodeQuotaExceeded:
//	        showEvictionDialog(domainErr.Details)
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the storage core.
const (
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeTransactionAborted Code = "TRANSACTION_ABORTED"
	CodeNotEditable        Code = "NOT_EDITABLE"
	CodeEmptyContent       Code = "EMPTY_CONTENT"
	CodeInvalidID          Code = "INVALID_ID"
	CodeNotFound           Code = "NOT_FOUND"
	CodeValidation         Code = "VALIDATION"
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeInternal           Code = "INTERNAL"
)

// Retryable reports whether an operation failing with this code may succeed
// if the whole logical operation is issued again.
func (c Code) Retryable() bool {
	return c == CodeTransactionAborted
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable, Message: "persistent storage unavailable"}
	ErrTransactionAborted = &Error{Code: CodeTransactionAborted, Message: "transaction aborted"}
	ErrNotEditable        = &Error{Code: CodeNotEditable, Message: "book is not editable"}
	ErrEmptyContent       = &Error{Code: CodeEmptyContent, Message: "content cannot be empty"}
	ErrInvalidID          = &Error{Code: CodeInvalidID, Message: "invalid book id"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrQuotaExceeded      = &Error{Code: CodeQuotaExceeded, Message: "storage budget exceeded"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// StorageUnavailable creates a storage unavailable error.
func StorageUnavailable(msg string) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: msg}
}

// TransactionAborted wraps a failed commit.
func TransactionAborted(err error, msg string) *Error {
	return &Error{Code: CodeTransactionAborted, Message: msg, cause: err}
}

// NotEditable creates a not editable error.
func NotEditable(msg string) *Error {
	return &Error{Code: CodeNotEditable, Message: msg}
}

// NotEditablef creates a not editable error with formatted message.
func NotEditablef(format string, args ...any) *Error {
	return &Error{Code: CodeNotEditable, Message: fmt.Sprintf(format, args...)}
}

// EmptyContent creates an empty content error.
func EmptyContent(msg string) *Error {
	return &Error{Code: CodeEmptyContent, Message: msg}
}

// InvalidID creates an invalid id error.
func InvalidID(msg string) *Error {
	return &Error{Code: CodeInvalidID, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// QuotaExceeded creates a quota error carrying the eviction plan that was
// computed for the rejected write.
func QuotaExceeded(msg string, plan any) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: msg, Details: plan}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
