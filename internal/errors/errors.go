// Package errors provides the typed error taxonomy used at every package
// boundary in this service (see SPEC_FULL.md §7).
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for HTTP-status mapping and logging.
type ErrorType string

const (
	TypeNotFound     ErrorType = "not_found"
	TypeUnauthorized ErrorType = "unauthorized"
	TypeBadRequest   ErrorType = "bad_request"
	TypeConflict     ErrorType = "conflict"
	TypeTransient    ErrorType = "transient"
	TypeFatal        ErrorType = "fatal"
)

// StatusCode returns the HTTP status this error type maps to. TypeFatal has
// no HTTP mapping of its own; StatusCode returns 0 for it, and writeError
// answers such an error with 500.
func (t ErrorType) StatusCode() int {
	switch t {
	case TypeNotFound:
		return http.StatusNotFound
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeBadRequest:
		return http.StatusBadRequest
	case TypeConflict:
		return http.StatusConflict
	case TypeTransient:
		return http.StatusServiceUnavailable
	case TypeFatal:
		return 0
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type every package boundary in this service returns
// instead of a bare error, so the HTTP layer can map failures to status codes
// without string matching.
type AppError struct {
	Type    ErrorType
	Message string
	Details map[string]any
	Cause   error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, Cause: cause}
}

func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return &AppError{Type: t, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *AppError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches a free-form detail string under "detail" and returns
// the same error so call sites can chain it inline.
func (e *AppError) WithDetails(detail string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details["detail"] = detail
	return e
}

func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// As reports whether err is (or wraps) an *AppError and returns it.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func NotFound(resource string) *AppError {
	return New(TypeNotFound, resource+" not found")
}

func Unauthorized(message string) *AppError {
	return New(TypeUnauthorized, message)
}

func BadRequest(message string) *AppError {
	return New(TypeBadRequest, message)
}

func ConflictMount(path string) *AppError {
	return New(TypeConflict, "data root not mounted").WithDetailsf("path=%s", path)
}

func Transient(cause error, op string) *AppError {
	return Wrapf(cause, TypeTransient, "transient failure during %s", op)
}

func Fatal(cause error, message string) *AppError {
	return Wrap(cause, TypeFatal, message)
}
