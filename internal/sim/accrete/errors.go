package accrete

import (
	"errors"
	"fmt"
)

// Kind classifies recoverable generation failures.
type Kind string

const (
	KindInvalidParameter  Kind = "INVALID_PARAMETER"
	KindDidNotConverge    Kind = "DID_NOT_CONVERGE"
	KindStalledGeneration Kind = "STALLED_GENERATION"
)

var (
	ErrInvalidParameter  = &Error{Kind: KindInvalidParameter}
	ErrDidNotConverge    = &Error{Kind: KindDidNotConverge}
	ErrStalledGeneration = &Error{Kind: KindStalledGeneration}
)

// Error is returned by Generate. errors.Is matches on Kind, so callers can
// test against the Err* values above.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err, or "" when err is not a generation error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
