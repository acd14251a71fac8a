// Package errs defines the error taxonomy shared by the storage, service and
// HTTP layers.
//
// Storage backends signal with the plain sentinels (ErrNotFound, ...). The
// transaction service turns every failure into an *Error carrying one of the
// Kind constants, so callers can switch on Kind without type assertions on
// concrete error types.
package errs

import (
	"errors"
	"fmt"

	"github.com/govalues/money"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// Kind is the machine-readable discriminator of a ledger error.
type Kind string

const (
	KindAccountNotFound              Kind = "ACCOUNT_NOT_FOUND"
	KindInsufficientFunds            Kind = "INSUFFICIENT_FUNDS"
	KindCreditLimitExceeded          Kind = "CREDIT_LIMIT_EXCEEDED"
	KindOverpaymentNotAllowed        Kind = "OVERPAYMENT_NOT_ALLOWED"
	KindDailyWithdrawalLimitExceeded Kind = "DAILY_WITHDRAWAL_LIMIT_EXCEEDED"
	KindValidation                   Kind = "VALIDATION_ERROR"
	KindPersistence                  Kind = "PERSISTENCE_FAILURE"
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{
	KindAccountNotFound,
	KindInsufficientFunds,
	KindCreditLimitExceeded,
	KindOverpaymentNotAllowed,
	KindDailyWithdrawalLimitExceeded,
	KindValidation,
	KindPersistence,
}

// Kind-only values for errors.Is matching.
var (
	ErrAccountNotFound              = &Error{Kind: KindAccountNotFound}
	ErrInsufficientFunds            = &Error{Kind: KindInsufficientFunds}
	ErrCreditLimitExceeded          = &Error{Kind: KindCreditLimitExceeded}
	ErrOverpaymentNotAllowed        = &Error{Kind: KindOverpaymentNotAllowed}
	ErrDailyWithdrawalLimitExceeded = &Error{Kind: KindDailyWithdrawalLimitExceeded}
	ErrValidation                   = &Error{Kind: KindValidation}
	ErrPersistence                  = &Error{Kind: KindPersistence}
)

// Error is a ledger failure: a kind, a human-readable message and, for the
// limit rules, the amount the caller could still move.
type Error struct {
	Kind    Kind
	Message string
	// RemainingLimit is set for KindDailyWithdrawalLimitExceeded.
	RemainingLimit *money.Amount
	// RemainingAvailableCredit is set for KindCreditLimitExceeded.
	RemainingAvailableCredit *money.Amount
	// Err is the underlying cause, mostly for KindPersistence.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AccountNotFound reports that no account exists for ref.
func AccountNotFound(ref string) *Error {
	return &Error{Kind: KindAccountNotFound, Message: fmt.Sprintf("Account %q not found.", ref)}
}

// InsufficientFunds rejects a withdrawal that would overdraw a non-credit account.
func InsufficientFunds() *Error {
	return &Error{Kind: KindInsufficientFunds, Message: "Insufficient funds."}
}

// CreditLimitExceeded carries the credit still available before the movement.
func CreditLimitExceeded(remaining money.Amount) *Error {
	return &Error{
		Kind:                     KindCreditLimitExceeded,
		Message:                  fmt.Sprintf("Credit limit exceeded. You can withdraw up to $%s.", remaining.Decimal().String()),
		RemainingAvailableCredit: &remaining,
	}
}

// OverpaymentNotAllowed rejects a deposit that would leave a credit account positive.
func OverpaymentNotAllowed() *Error {
	return &Error{Kind: KindOverpaymentNotAllowed, Message: "Overpayment of limit is not allowed for credit accounts."}
}

// DailyWithdrawalLimitExceeded carries what is left of today's allowance.
func DailyWithdrawalLimitExceeded(ceiling, remaining money.Amount) *Error {
	return &Error{
		Kind:           KindDailyWithdrawalLimitExceeded,
		Message:        fmt.Sprintf("Daily withdrawal limit of $%s exceeded. You can only withdraw $%s.", ceiling.Decimal().String(), remaining.Decimal().String()),
		RemainingLimit: &remaining,
	}
}

// Validation reports malformed input that reached the core.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Persistence wraps a storage failure during op.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op + " failed", Err: err}
}
