package domain

import (
	"errors"
	"fmt"

	"lending/internal/money"
)

type Kind string

const (
	KindInvalidState      Kind = "InvalidState"
	KindInvalidInput      Kind = "InvalidInput"
	KindInsufficientFunds Kind = "InsufficientFunds"
	KindNotFound          Kind = "NotFound"
	KindPolicyViolation   Kind = "PolicyViolation"
)

// Error is the single error type raised by the lending core. Two errors match
// under errors.Is when their kinds are equal and the target carries no reason,
// so the Err* values below work as kind sentinels.
type Error struct {
	Kind   Kind
	Reason string
}

var (
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPolicyViolation   = &Error{Kind: KindPolicyViolation}
)

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Reason
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...any) *Error {
	return NewError(KindInvalidState, format, args...)
}

func invalidInput(format string, args ...any) *Error {
	return NewError(KindInvalidInput, format, args...)
}

// KindOf reports the kind of a domain error anywhere in err's chain. Money
// arithmetic failures surface as InvalidInput.
func KindOf(err error) (Kind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	switch {
	case errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrNegativeAmount),
		errors.Is(err, money.ErrMissingCurrency),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrTooManyDecimals):
		return KindInvalidInput, true
	}
	return "", false
}

// ReasonOf returns the human readable reason carried by err.
func ReasonOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Reason != "" {
		return domainErr.Reason
	}
	return err.Error()
}
