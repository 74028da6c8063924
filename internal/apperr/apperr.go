// Package apperr defines the error taxonomy shared by the ledger, the
// account handlers and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindAuth              Kind = "auth"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Error is a classified error carrying a message that is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the kind sentinels below, so errors.Is(err, ErrConflict) works
// for any conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrAuth              = &Error{Kind: KindAuth}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInternal          = &Error{Kind: KindInternal}
)

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a missing or malformed input field.
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// NotFound reports an identifier that does not resolve.
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict reports a slot collision or a uniqueness violation.
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// InvalidTransition reports a state change the appointment lifecycle forbids.
func InvalidTransition(format string, args ...interface{}) *Error {
	return newf(KindInvalidTransition, format, args...)
}

// Auth reports bad or missing credentials.
func Auth(format string, args ...interface{}) *Error {
	return newf(KindAuth, format, args...)
}

// Forbidden reports an authenticated caller acting outside its role.
func Forbidden(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

// Internal wraps an unexpected failure. The message is generic; the cause is
// kept for logging only.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-safe message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
