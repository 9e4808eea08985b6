// Package apperr defines the error classes surfaced to API callers.
package apperr

import (
	"errors"
	"net/http"
)

// Class groups errors by how a caller should react to them.
type Class string

// Error classes.
const (
	Client          Class = "client"
	Validation      Class = "validation"
	NotFound        Class = "not_found"
	TransientLedger Class = "transient_ledger"
	FatalLedger     Class = "fatal_ledger"
	Conflict        Class = "conflict"
	RateLimited     Class = "rate_limited"
	Internal        Class = "internal"
)

// Error is a classified error with a stable machine-readable code.
type Error struct {
	Class   Class
	Code    string
	Message string
	Err     error
}

// New creates a classified error.
func New(class Class, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(class Class, code string, err error) *Error {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	return &Error{Class: class, Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != e.Err.Error() {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of the first classified error in the chain.
// Unclassified errors are Internal.
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Class
	}
	return Internal
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "internal_error"
}

// HTTPStatus maps a class to the response status code.
func HTTPStatus(c Class) int {
	switch c {
	case Client:
		return http.StatusBadRequest
	case Validation:
		return http.StatusUnprocessableEntity
	case NotFound:
		return http.StatusNotFound
	case TransientLedger:
		return http.StatusServiceUnavailable
	case FatalLedger:
		return http.StatusBadGateway
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether resubmitting the identical request is safe and may succeed.
// Fatal ledger errors are never retryable: the outcome of the transfer is unknown.
func Retryable(c Class) bool {
	switch c {
	case TransientLedger, Conflict, RateLimited:
		return true
	}
	return false
}
