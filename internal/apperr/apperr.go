// Package apperr carries the user-facing error taxonomy: validation,
// not-found, conflict and access failures that handlers turn into HTTP
// responses without logging them as server faults.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindRateLimited
)

type Error struct {
	Kind    Kind
	Message string
	// Redirect is the screen a client should navigate to on access failures.
	Redirect string
}

func (e *Error) Error() string { return e.Message }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg, redirect string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Redirect: redirect}
}

func Forbidden(msg, redirect string) *Error {
	return &Error{Kind: KindForbidden, Message: msg, Redirect: redirect}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// As reports whether err wraps an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}
