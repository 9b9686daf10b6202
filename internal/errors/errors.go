// Package errors provides coded domain errors and the normalization used to
// attach failures to tag store transitions.
//
// Usage:
//
//	// In services - return typed errors
//	if taken {
//	    return errors.NameConflict(name)
//	}
//
//	// At an operation boundary - convert anything into a transition payload
//	store.Dispatch(tagstore.CreateError{Name: name, Error: errors.Normalize(err)})
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/upnorway/sanity-plugin-media/internal/domain"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Default failure shape used when an error carries no message or status.
const (
	InternalErrorMessage = "Internal error"
	InternalErrorStatus  = http.StatusInternalServerError
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodeValidation       Code = "VALIDATION"
	CodeConflict         Code = "CONFLICT"
	CodeRevisionConflict Code = "REVISION_CONFLICT"
	CodeBackingStore     Code = "BACKING_STORE"
	CodeInternal         Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeRevisionConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
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

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists    = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict         = &Error{Code: CodeConflict, Message: "conflict"}
	ErrRevisionConflict = &Error{Code: CodeRevisionConflict, Message: "revision conflict"}
	ErrBackingStore     = &Error{Code: CodeBackingStore, Message: "backing store error"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// NameConflict reports that a tag name is already in use.
func NameConflict(name string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: "Tag already exists", Details: map[string]string{"name": name}}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// statusCoder is implemented by backing store errors.
type statusCoder interface {
	error
	HTTPCode() int
}

// Normalize converts any error into the {message, statusCode} shape carried
// by error transitions. Missing messages become "Internal error" and missing
// statuses become 500.
func Normalize(err error) domain.HTTPError {
	if err == nil {
		return domain.HTTPError{Message: InternalErrorMessage, StatusCode: InternalErrorStatus}
	}

	var message string
	var status int

	var httpErr *domain.HTTPError
	var domainErr *Error
	var coded statusCoder
	switch {
	case errors.As(err, &httpErr):
		message, status = httpErr.Message, httpErr.StatusCode
	case errors.As(err, &domainErr):
		message, status = domainErr.Message, domainErr.HTTPStatus()
	case errors.As(err, &coded):
		message, status = coded.Error(), coded.HTTPCode()
	default:
		message = err.Error()
	}

	if message == "" {
		message = InternalErrorMessage
	}
	if status == 0 {
		status = InternalErrorStatus
	}
	return domain.HTTPError{Message: message, StatusCode: status}
}

// NormalizePtr is Normalize returning a pointer for optional error fields.
func NormalizePtr(err error) *domain.HTTPError {
	e := Normalize(err)
	return &e
}
