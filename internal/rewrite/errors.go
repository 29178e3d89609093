package rewrite

import (
	"errors"
	"fmt"
)

var (
	ErrUpstream   = errors.New("upstream")
	ErrParse      = errors.New("parse")
	ErrValidation = errors.New("validation")
)

// Error carries one of the rewrite error kinds. None of them escape
// Rewriter.Rewrite; they are recorded on the Outcome.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func upstreamf(err error, format string, args ...any) error {
	return &Error{Kind: ErrUpstream, Msg: fmt.Sprintf(format, args...), Err: err}
}

func parsef(err error, format string, args ...any) error {
	return &Error{Kind: ErrParse, Msg: fmt.Sprintf(format, args...), Err: err}
}

func validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}
