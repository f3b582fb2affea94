// README: Error taxonomy shared by every module and mapped to responses at the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindUnauthorized      Kind = "unauthorized"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindAlreadyProcessed  Kind = "already_processed"
	KindValidation        Kind = "validation_error"
	KindDriverUnavailable Kind = "driver_unavailable"
	KindPaymentDeclined   Kind = "payment_declined"
)

// Error is a classified domain failure. Msg is caller facing; Err keeps the cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare kind sentinels below, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrAlreadyProcessed  = &Error{Kind: KindAlreadyProcessed}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrDriverUnavailable = &Error{Kind: KindDriverUnavailable}
	ErrPaymentDeclined   = &Error{Kind: KindPaymentDeclined}
)

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(format string, args ...any) error {
	return New(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) error {
	return New(KindInvalidState, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return New(KindUnauthorized, format, args...)
}

// Validation reports a malformed field.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Msg: field + ": " + msg}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
