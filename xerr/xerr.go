// Package xerr defines a closed set of behavioral error kinds shared across
// the core's packages: typed, wrapped errors that callers switch on by
// Kind, never by matching an error string.
package xerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of behavioral error categories.
type Kind string

const (
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindUpstreamDecodeError Kind = "UPSTREAM_DECODE_ERROR"
	KindSymbolUnresolved    Kind = "SYMBOL_UNRESOLVED"
	KindInvalidSnapshot     Kind = "INVALID_SNAPSHOT"
	KindAuthError           Kind = "AUTH_ERROR"
	KindConflict            Kind = "CONFLICT"
	KindInternal            Kind = "INTERNAL"
)

// Error carries a Kind plus an advisory HTTP-like status for upstream
// failures (429/451/502/503/504, or 0 for non-HTTP/network-class failures).
type Error struct {
	Kind       Kind
	Status     int
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// New builds a typed error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, underlying error) *Error {
	return &Error{Kind: kind, Message: message, Underlying: underlying}
}

// UpstreamUnavailable builds the UpstreamUnavailable kind with an advisory
// status code (429, 451, 502, 503, 504, or 0 for transport-level failures).
func UpstreamUnavailable(status int, message string, underlying error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Status: status, Message: message, Underlying: underlying}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
