package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
)

// ErrorKind classifies failures so callers can decide on retries and wording.
type ErrorKind string

const (
	KindNotConfigured     ErrorKind = "not_configured"
	KindValidation        ErrorKind = "validation"
	KindPaymentDeclined   ErrorKind = "payment_declined"
	KindPaymentIncomplete ErrorKind = "payment_incomplete"
	KindUnavailable       ErrorKind = "unavailable"
	KindPartialFailure    ErrorKind = "partial_failure"
	KindNotFound          ErrorKind = "not_found"
	KindInternal          ErrorKind = "internal"
)

// Error is the structured error surfaced by gateway, store and checkout calls.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retriable reports whether the user may retry the same step unchanged.
// Declined payments need a new checkout; configuration problems need an operator.
func (e *Error) Retriable() bool {
	switch e.Kind {
	case KindUnavailable, KindPaymentIncomplete:
		return true
	default:
		return false
	}
}

// NewError builds an *Error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation is shorthand for a validation error without a cause.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err, mapping bare sentinels where possible.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}
