// Package apperror defines the closed error taxonomy shared by every
// component of the job broker, and the single HTTP-status mapping derived
// from it. Internal packages return *apperror.Error (or wrap one); the api
// package is the only place that translates a Kind into a wire response.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories. Every internal error belongs to
// exactly one.
type Kind string

const (
	// Connectivity marks a Store that could not be reached at all.
	Connectivity Kind = "connectivity"
	// Conflict marks a mutation that lost a race to another caller; callers
	// at atomic-latch sites swallow this, treating it as "someone else won".
	Conflict Kind = "conflict"
	// NotFound marks a lookup that found nothing.
	NotFound Kind = "not_found"
	// InvalidMoves marks an ingest request with an illegal move sequence.
	InvalidMoves Kind = "invalid_moves"
	// MalformedBody marks a request body that failed to decode as JSON.
	MalformedBody Kind = "malformed_body"
	// MalformedHeader marks a request whose auth header/envelope could not
	// be parsed.
	MalformedHeader Kind = "malformed_header"
	// Unauthenticated marks a request that carried no usable credential.
	Unauthenticated Kind = "unauthenticated"
	// Forbidden marks a request whose credential is unknown or lacks the
	// needed permission.
	Forbidden Kind = "forbidden"
	// IncompleteAnalysis marks a report whose downstream payload could not
	// be fully assembled.
	IncompleteAnalysis Kind = "incomplete_analysis"
	// DownstreamDispatchFailed marks a report whose latch was already set
	// but whose downstream POST failed.
	DownstreamDispatchFailed Kind = "downstream_dispatch_failed"
	// Internal is the catch-all for anything that doesn't fit elsewhere.
	Internal Kind = "internal"
)

// Error is the concrete error type every internal package should return.
// Use errors.As to recover the Kind at a boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var appErr *Error

	if errors.As(err, &appErr) {
		return appErr.Kind == k
	}

	return false
}

// KindOf extracts the Kind of err, defaulting to Internal if err is not an
// *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return Internal
}
