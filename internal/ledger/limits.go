package ledger

import (
	"fmt"

	"github.com/govalues/money"
)

// Limits groups the monetary thresholds applied to movements.
// DailyWithdrawal is enforced by the transaction service; the rest are
// request-shape rules applied by the HTTP layer.
type Limits struct {
	DailyWithdrawal     money.Amount
	MaxWithdrawal       money.Amount
	WithdrawalIncrement money.Amount
	MinDeposit          money.Amount
	MaxDeposit          money.Amount
}

// DefaultLimits returns the standard thresholds in the given currency.
func DefaultLimits(currency string) Limits {
	return Limits{
		DailyWithdrawal:     money.MustNewAmount(currency, 400, 0),
		MaxWithdrawal:       money.MustNewAmount(currency, 200, 0),
		WithdrawalIncrement: money.MustNewAmount(currency, 5, 0),
		MinDeposit:          money.MustNewAmount(currency, 1, 2),
		MaxDeposit:          money.MustNewAmount(currency, 1000, 0),
	}
}

// Round normalizes a to exactly the currency's minor-unit precision, so 5 and
// 5.000 both become 5.00.
func Round(a money.Amount) money.Amount {
	units, ok := a.MinorUnits()
	if !ok {
		return a
	}
	out, err := money.NewAmountFromMinorUnits(a.Curr().Code(), units)
	if err != nil {
		return a
	}
	return out
}

// Resolve fills zero fields with the defaults for currency and rejects a
// non-zero field in another currency or with sub-cent precision.
func (l Limits) Resolve(currency string) (Limits, error) {
	def := DefaultLimits(currency)
	fields := []struct {
		name string
		dst  *money.Amount
		def  money.Amount
	}{
		{"daily withdrawal limit", &l.DailyWithdrawal, def.DailyWithdrawal},
		{"max withdrawal", &l.MaxWithdrawal, def.MaxWithdrawal},
		{"withdrawal increment", &l.WithdrawalIncrement, def.WithdrawalIncrement},
		{"min deposit", &l.MinDeposit, def.MinDeposit},
		{"max deposit", &l.MaxDeposit, def.MaxDeposit},
	}
	for _, f := range fields {
		a, err := ResolveAmount(f.name, *f.dst, f.def, currency)
		if err != nil {
			return Limits{}, err
		}
		*f.dst = a
	}
	if c, err := l.MinDeposit.Cmp(l.MaxDeposit); err != nil || c > 0 {
		return Limits{}, fmt.Errorf("min deposit %s exceeds max deposit %s", l.MinDeposit, l.MaxDeposit)
	}
	return l, nil
}

// ResolveAmount returns def for a zero a, otherwise a rounded to cents after
// checking it is positive, in currency and exact to the cent.
func ResolveAmount(name string, a, def money.Amount, currency string) (money.Amount, error) {
	if a.IsZero() {
		return def, nil
	}
	if code := a.Curr().Code(); code != currency {
		return money.Amount{}, fmt.Errorf("%s is in %s, want %s", name, code, currency)
	}
	if !a.IsPos() {
		return money.Amount{}, fmt.Errorf("%s must be positive, got %s", name, a)
	}
	r := Round(a)
	if c, err := a.Cmp(r); err != nil || c != 0 {
		return money.Amount{}, fmt.Errorf("%s must have at most two decimal places, got %s", name, a)
	}
	return r, nil
}
