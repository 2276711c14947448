// Package domainerrors defines the typed error taxonomy shared by every service.
//
// Services return *Error values (optionally wrapping a cause) instead of raw
// errors so the transport layer can map them to responses without inspecting
// messages. Store-level facts (not found, conflict) live in pkg/platform/sentinel
// and are translated into these codes by the owning service.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure. Values are stable and appear on the wire.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeRateLimited        Code = "rate_limited"
	CodeAlreadyCompleted   Code = "already_completed"
	CodeAlreadyResponded   Code = "already_responded"
	CodeInactiveAccount    Code = "inactive_account"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error is a domain error carrying a code, a client-safe message, and an
// optional wrapped cause that is never shown to clients.
type Error struct {
	Code    Code
	Message string
	Err     error

	// RetryAfterMinutes is set for CodeRateLimited.
	RetryAfterMinutes int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a domain code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// RateLimited builds a CodeRateLimited error with the minutes until the
// caller may retry. Minutes are clamped to at least one.
func RateLimited(message string, minutes int) *Error {
	if minutes < 1 {
		minutes = 1
	}
	return &Error{Code: CodeRateLimited, Message: message, RetryAfterMinutes: minutes}
}

// As returns the outermost domain error in the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal for
// anything else.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	de, ok := As(err)
	return ok && de.Code == code
}
