// Package errors defines the error taxonomy of the chat core.
//
// Every public operation fails with exactly one of four kinds:
// validation (bad input, rejected before any backend call), conflict
// (stale revision on save), invariant (a local rule would be broken)
// or backend (the record gateway failed; original cause is preserved).
package errors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota
	KindConflict
	KindInvariant
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvariant:
		return "invariant"
	case KindBackend:
		return "backend"
	}
	return "unknown"
}

// ChatError pairs a taxonomy kind with an underlying cause.
type ChatError struct {
	Kind Kind
	Err  error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) error {
	return &ChatError{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

func Invariant(format string, args ...any) error {
	return &ChatError{Kind: KindInvariant, Err: fmt.Errorf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &ChatError{Kind: KindConflict, Err: fmt.Errorf(format, args...)}
}

// Backend wraps a gateway failure without rewording it. The original
// diagnostic stays reachable through errors.Unwrap.
func Backend(err error) error {
	if err == nil {
		return nil
	}
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return err
	}
	return &ChatError{Kind: KindBackend, Err: err}
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return chatErr.Kind == kind
	}
	return false
}

var (
	ErrNotFound          = fmt.Errorf("record not found")
	ErrEmptyParticipants = fmt.Errorf("participant set is empty")
	ErrLastParticipant   = fmt.Errorf("cannot remove the last participant")
	ErrStaleRevision     = fmt.Errorf("stale record revision")
	ErrNoContent         = fmt.Errorf("message has no content")
)
