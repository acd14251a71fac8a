package balance

import (
	"errors"
	"testing"
	"time"

	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/bankledger/internal/errs"
)

func usd(s string) money.Amount { return money.MustParseAmount("USD", s) }

func TestCheckOverdraft(t *testing.T) {
	cases := []struct {
		name      string
		isCredit  bool
		projected string
		limit     string
		current   string
		kind      errs.Kind
	}{
		{name: "checking stays positive", projected: "10.00", limit: "0", current: "50.00"},
		{name: "checking hits zero", projected: "0.00", limit: "0", current: "50.00"},
		{name: "checking overdrawn", projected: "-50.00", limit: "0", current: "100.00", kind: errs.KindInsufficientFunds},
		{name: "credit within limit", isCredit: true, projected: "-150.00", limit: "200.00", current: "-50.00"},
		{name: "credit exactly at limit", isCredit: true, projected: "-200.00", limit: "200.00", current: "-50.00"},
		{name: "credit over limit", isCredit: true, projected: "-220.00", limit: "200.00", current: "-50.00", kind: errs.KindCreditLimitExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckOverdraft(tc.isCredit, usd(tc.projected), usd(tc.limit), usd(tc.current))
			if tc.kind == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.kind, errs.KindOf(err))
		})
	}
}

func TestCheckOverdraft_RemainingCredit(t *testing.T) {
	err := CheckOverdraft(true, usd("-220.00"), usd("200.00"), usd("-50.00"))
	var le *errs.Error
	require.True(t, errors.As(err, &le))
	require.NotNil(t, le.RemainingAvailableCredit)
	assert.Equal(t, "150.00", le.RemainingAvailableCredit.Decimal().String())
	assert.Nil(t, le.RemainingLimit)
}

func TestCheckCreditOverpayment(t *testing.T) {
	assert.NoError(t, CheckCreditOverpayment(true, usd("0.00")))
	assert.NoError(t, CheckCreditOverpayment(true, usd("-5.00")))
	assert.NoError(t, CheckCreditOverpayment(false, usd("500.00")))
	err := CheckCreditOverpayment(true, usd("10.00"))
	assert.True(t, errors.Is(err, errs.ErrOverpaymentNotAllowed))
}

func TestCheckDailyWithdrawalLimit(t *testing.T) {
	ceiling := usd("400.00")
	assert.NoError(t, CheckDailyWithdrawalLimit(usd("0.00"), usd("200.00"), ceiling))
	assert.NoError(t, CheckDailyWithdrawalLimit(usd("200.00"), usd("200.00"), ceiling))

	err := CheckDailyWithdrawalLimit(usd("380.00"), usd("30.00"), ceiling)
	var le *errs.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, errs.KindDailyWithdrawalLimitExceeded, le.Kind)
	require.NotNil(t, le.RemainingLimit)
	assert.Equal(t, "20.00", le.RemainingLimit.Decimal().String())
	assert.Contains(t, le.Message, "$20.00")
}

func TestCheckDailyWithdrawalLimit_CurrencyMismatch(t *testing.T) {
	err := CheckDailyWithdrawalLimit(usd("0.00"), money.MustParseAmount("EUR", "5.00"), usd("400.00"))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), StartOfDay(ts, nil))

	tokyo := time.FixedZone("JST", 9*3600)
	got := StartOfDay(ts, tokyo)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, tokyo), got)
	assert.True(t, got.Before(ts))
}
