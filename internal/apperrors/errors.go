// Package apperrors defines the error taxonomy shared by the stores, the
// services and the HTTP layer.
package apperrors

import (
	"errors"
	"strings"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindNotFound      Kind = "NOT_FOUND"
	KindConflict      Kind = "CONFLICT"
	KindAuth          Kind = "UNAUTHORIZED"
	KindAuthorization Kind = "FORBIDDEN"
	KindUnavailable   Kind = "SERVICE_UNAVAILABLE"
)

// Business rule messages surfaced to callers.
const (
	MsgUserHasActiveLoan = "user has unreturned loan"
	MsgBookUnavailable   = "book unavailable"
	MsgBookBorrowed      = "book currently borrowed"
	MsgCategoryHasBooks  = "category has books"
	MsgEmailTaken        = "email already registered"
	MsgCategoryNameTaken = "category name already exists"
	MsgCopiesInUse       = "total copies below active loans"
)

// Violation describes one rejected input field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is an expected, recoverable failure with a human readable reason.
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	Err        error
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input. An empty violation list is allowed.
func Validation(message string, violations ...Violation) *Error {
	return &Error{Kind: KindValidation, Message: message, Violations: violations}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func Authorization(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// Unavailable marks a storage connectivity fault. It is the only kind a
// caller may reasonably retry.
func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not an application error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
