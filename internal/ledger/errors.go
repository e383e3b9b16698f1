package ledger

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable class of a ledger error.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindAlreadyExecuted      Kind = "already_executed"
	KindInsufficientShares   Kind = "insufficient_shares"
	KindPaymentNotConfigured Kind = "payment_not_configured"
	KindPaymentProvider      Kind = "payment_provider"
	KindIntegrity            Kind = "integrity"
	KindInternal             Kind = "internal"
)

// Error carries a Kind for callers and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind and Message so sentinels compare with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrSellerHoldingNotFound   = &Error{Kind: KindNotFound, Message: "Seller holding not found"}
	ErrInsufficientShares      = &Error{Kind: KindInsufficientShares, Message: "Insufficient shares for transfer"}
	ErrTransferNotFound        = &Error{Kind: KindNotFound, Message: "Transfer not found"}
	ErrTransferAlreadyExecuted = &Error{Kind: KindAlreadyExecuted, Message: "Transfer has already been executed"}
	ErrTransferNotExecutable   = &Error{Kind: KindConflict, Message: "Transfer is no longer executable"}
	ErrInvalidTransition       = &Error{Kind: KindConflict, Message: "Invalid transfer status transition"}
	ErrHoldingNotFound         = &Error{Kind: KindNotFound, Message: "Holding not found"}
	ErrHoldingNotHeld          = &Error{Kind: KindConflict, Message: "Holding is not in HELD status"}
	ErrNothingToRelease        = &Error{Kind: KindConflict, Message: "Holding has no held shares to release"}
	ErrIssuanceNotFound        = &Error{Kind: KindNotFound, Message: "Issuance request not found"}
	ErrPaymentNotConfigured    = &Error{Kind: KindPaymentNotConfigured, Message: "Payment processing not configured"}
	ErrAuditImmutable          = &Error{Kind: KindIntegrity, Message: "Audit log entries are immutable"}
	ErrAuditUnguarded          = &Error{Kind: KindIntegrity, Message: "Audit log entries can only be created by the audit recorder"}
	ErrCertificateCancelled    = &Error{Kind: KindIntegrity, Message: "Cancelled certificates cannot be reactivated"}
)

// Validation builds a validation error with a caller-facing message.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error with a caller-facing message.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a kind; the message is what callers see.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}
