// Package apperr defines the failure kinds every carelink operation reports.
// Services wrap one of the sentinel errors with a caller-facing message and
// the HTTP layer maps the kind to a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrConflict    = errors.New("conflict")
	ErrInvalid     = errors.New("invalid")
	ErrUnavailable = errors.New("unavailable")
)

// Error carries a kind plus the message shown to API clients.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Is lets errors.Is(err, apperr.ErrNotFound) match wrapped kinds.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error  { return newf(ErrNotFound, format, args...) }
func Forbidden(format string, args ...any) error { return newf(ErrForbidden, format, args...) }
func Conflict(format string, args ...any) error  { return newf(ErrConflict, format, args...) }
func Invalid(format string, args ...any) error   { return newf(ErrInvalid, format, args...) }

// Unavailable wraps the transport failure of an external collaborator.
func Unavailable(cause error, format string, args ...any) error {
	e := newf(ErrUnavailable, format, args...)
	e.Cause = cause
	return e
}

// HTTPStatus maps an error kind to its HTTP status. Untyped errors are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to hand to a client. Untyped errors
// never leak their internals.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}
