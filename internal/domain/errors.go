package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the routing core.
type ErrorKind string

const (
	KindValidation            ErrorKind = "VALIDATION_ERROR"
	KindPrecedenceViolation   ErrorKind = "PRECEDENCE_VIOLATION"
	KindServiceDegraded       ErrorKind = "SERVICE_DEGRADED"
	KindOptimizerFailure      ErrorKind = "OPTIMIZER_FAILURE"
	KindReoptimizationFailure ErrorKind = "REOPTIMIZATION_FAILURE"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrPrecedenceViolation   = &Error{Kind: KindPrecedenceViolation}
	ErrServiceDegraded       = &Error{Kind: KindServiceDegraded}
	ErrOptimizerFailure      = &Error{Kind: KindOptimizerFailure}
	ErrReoptimizationFailure = &Error{Kind: KindReoptimizationFailure}
)

type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
