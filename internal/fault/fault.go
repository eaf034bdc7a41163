// Package fault carries the engine's error taxonomy. Every engine failure
// is one of four kinds so the HTTP edge can map it to a status code and
// callers can tell "fix your input" apart from "enter the missing reading
// and retry".
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind string

const (
	// KindValidation is malformed or missing required input. Rejected
	// before any mutation.
	KindValidation Kind = "validation"
	// KindConflict is a state conflict: duplicate cycle, re-settling a
	// settled cycle, deleting a parent that still owns children.
	KindConflict Kind = "conflict"
	// KindIncomplete is missing external state, such as a metered charge
	// with no reading for its period. The caller should collect the
	// missing data and retry.
	KindIncomplete Kind = "incomplete"
	// KindNotFound is a lookup miss.
	KindNotFound Kind = "not_found"
)

// Error is a classified engine failure. The message is written to be
// usable directly in a user-facing string.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a validation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a conflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Incomplete builds an incomplete-input error.
func Incomplete(format string, args ...any) error {
	return &Error{Kind: KindIncomplete, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or "" when err carries no taxonomy.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
