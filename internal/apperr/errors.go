// Package apperr holds the error taxonomy shared by the core services, the
// job workers and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindForbidden           Kind = "FORBIDDEN"
	KindInvalidState        Kind = "INVALID_STATE"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
	KindBudgetExceeded      Kind = "BUDGET_EXCEEDED"
	KindSuspiciousViews     Kind = "SUSPICIOUS_VIEWS"
	KindCampaignFull        Kind = "CAMPAIGN_FULL"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindRetryable           Kind = "RETRYABLE"
	KindInternal            Kind = "INTERNAL"
)

// Error carries a Kind so callers can branch with errors.Is against the
// sentinels below regardless of the message.
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

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict            = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrForbidden           = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrInvalidState        = &Error{Kind: KindInvalidState, Msg: "invalid state"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Msg: "insufficient balance"}
	ErrBudgetExceeded      = &Error{Kind: KindBudgetExceeded, Msg: "budget exceeded"}
	ErrSuspiciousViews     = &Error{Kind: KindSuspiciousViews, Msg: "suspicious views"}
	ErrCampaignFull        = &Error{Kind: KindCampaignFull, Msg: "campaign full"}
	ErrValidation          = &Error{Kind: KindValidation, Msg: "validation error"}
	ErrRetryable           = &Error{Kind: KindRetryable, Msg: "retryable"}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
