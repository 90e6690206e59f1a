// Package apperr is the error taxonomy shared by the server and the player.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindIO
	KindMediaResource
	KindRangeNotSatisfiable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindMediaResource:
		return "media_resource"
	case KindRangeNotSatisfiable:
		return "range_not_satisfiable"
	default:
		return "unknown"
	}
}

// Error carries a Kind, a message safe to show to clients, and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

// IO wraps a storage failure that is not a plain "missing".
func IO(err error, format string, args ...interface{}) *Error {
	return newError(KindIO, err, format, args...)
}

func MediaResource(err error, format string, args ...interface{}) *Error {
	return newError(KindMediaResource, err, format, args...)
}

func RangeNotSatisfiable(format string, args ...interface{}) *Error {
	return newError(KindRangeNotSatisfiable, nil, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the status code written at the request boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message. Unclassified errors get a generic text
// so internal details never leak.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindIO && e.Kind != KindUnknown {
		return e.Msg
	}
	return fallback
}
