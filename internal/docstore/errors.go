package docstore

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a backing store error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	sentinel *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// Is matches errors derived from the same sentinel. Errors built as
// literals match only themselves.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.root() == t.root()
}

func (e *Error) root() *Error {
	if e.sentinel != nil {
		return e.sentinel
	}
	return e
}

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err, sentinel: e.root()}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err, sentinel: e.root()}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "document not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "document already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}

	ErrRevisionConflict = &Error{
		Code:    http.StatusConflict,
		Message: "document revision mismatch",
	}

	ErrInvalidQuery = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid query",
	}

	ErrClosed = &Error{
		Code:    http.StatusServiceUnavailable,
		Message: "document store closed",
	}
)

// RevisionConflictError reports a failed revision precondition.
type RevisionConflictError struct {
	DocumentID string
	Expected   string
	Current    string
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("document %q has revision %q, expected %q", e.DocumentID, e.Current, e.Expected)
}

// Is lets callers match with errors.Is(err, ErrRevisionConflict).
func (e *RevisionConflictError) Is(target error) bool {
	return target == ErrRevisionConflict
}

// HTTPCode returns 409.
func (e *RevisionConflictError) HTTPCode() int { return http.StatusConflict }
