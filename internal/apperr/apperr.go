// Package apperr defines the error taxonomy shared by the usecases and the HTTP boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers that need to react to it.
type Kind string

const (
	KindInvalidRequest         Kind = "invalid_request"
	KindAuthenticationRequired Kind = "authentication_required"
	KindUnauthorized           Kind = "unauthorized"
	KindNotFound               Kind = "not_found"
	KindConflict               Kind = "conflict"
	KindInternal               Kind = "internal"
)

// Error carries a Kind, a client-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidRequest reports malformed or missing client input.
func InvalidRequest(msg string, err error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg, Err: err}
}

// AuthenticationRequired reports a missing or unverifiable bearer token.
func AuthenticationRequired(msg string, err error) *Error {
	return &Error{Kind: KindAuthenticationRequired, Message: msg, Err: err}
}

// Unauthorized reports an authenticated caller acting on a resource it does not own.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// NotFound reports a missing resource.
func NotFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: err}
}

// Conflict reports a write that lost against concurrent state.
func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

// Internal wraps an infrastructure failure. The message is safe to show clients.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err. Errors outside the taxonomy and
// internal errors never expose their text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal && appErr.Message != "" {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps a Kind onto the status code used at the HTTP boundary.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
