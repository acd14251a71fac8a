// Package balance holds the pure balance rules applied to a proposed movement.
// None of the functions touch storage; they only compare amounts.
package balance

import (
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// CheckOverdraft rejects a projected balance below zero, unless the account is
// a credit account whose limit still covers it. current is the balance before
// the movement and only feeds the remaining-credit figure in the error.
func CheckOverdraft(isCredit bool, projected, creditLimit, current money.Amount) error {
	if !projected.IsNeg() {
		return nil
	}
	if !isCredit {
		return errs.InsufficientFunds()
	}
	available, err := projected.Add(creditLimit)
	if err != nil {
		return errs.Validation(err.Error())
	}
	if !available.IsNeg() {
		return nil
	}
	remaining, err := creditLimit.Add(current)
	if err != nil {
		return errs.Validation(err.Error())
	}
	return errs.CreditLimitExceeded(ledger.Round(remaining))
}

// CheckCreditOverpayment rejects a credit account ending with a positive balance.
func CheckCreditOverpayment(isCredit bool, projected money.Amount) error {
	if isCredit && projected.IsPos() {
		return errs.OverpaymentNotAllowed()
	}
	return nil
}

// CheckDailyWithdrawalLimit rejects a withdrawal that would push today's total
// above ceiling.
func CheckDailyWithdrawalLimit(prior, amount, ceiling money.Amount) error {
	total, err := prior.Add(amount)
	if err != nil {
		return errs.Validation(err.Error())
	}
	over, err := total.Cmp(ceiling)
	if err != nil {
		return errs.Validation(err.Error())
	}
	if over <= 0 {
		return nil
	}
	remaining, err := ceiling.Sub(prior)
	if err != nil {
		return errs.Validation(err.Error())
	}
	return errs.DailyWithdrawalLimitExceeded(ledger.Round(ceiling), ledger.Round(remaining))
}

// StartOfDay returns midnight of t's calendar day in loc (UTC when nil).
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
