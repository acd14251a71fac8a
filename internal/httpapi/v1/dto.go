package v1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// movementRequest is the body of PUT /transactions/{accountNumber}/{op}.
// Amount stays untyped so shape errors can be told apart.
type movementRequest struct {
	Amount any `json:"amount"`
}

// movementInput is the validated request stored in the context.
type movementInput struct {
	AccountNumber string
	Amount        money.Amount
}

type listTransactionsQuery struct {
	AccountNumber string
	Limit         int
}

type accountResponse struct {
	AccountNumber    string             `json:"account_number"`
	Name             string             `json:"name"`
	Balance          json.Number        `json:"balance"`
	BalanceMinor     int64              `json:"balance_minor"`
	Type             ledger.AccountType `json:"type"`
	CreditLimit      json.Number        `json:"credit_limit"`
	CreditLimitMinor int64              `json:"credit_limit_minor"`
	Currency         string             `json:"currency"`
}

type transactionResponse struct {
	ID          uuid.UUID              `json:"id"`
	Type        ledger.TransactionType `json:"type"`
	Amount      json.Number            `json:"amount"`
	AmountMinor int64                  `json:"amount_minor"`
	Timestamp   time.Time              `json:"timestamp"`
}

type listTransactionsResponse struct {
	AccountNumber string                `json:"account_number"`
	Items         []transactionResponse `json:"items"`
}

func decimal(a money.Amount) json.Number { return json.Number(ledger.Round(a).Decimal().String()) }

func minor(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}

func toAccountResponse(a ledger.Account) accountResponse {
	limit := a.EffectiveCreditLimit()
	return accountResponse{
		AccountNumber:    a.Number,
		Name:             a.Name,
		Balance:          decimal(a.Balance),
		BalanceMinor:     minor(a.Balance),
		Type:             a.Type,
		CreditLimit:      decimal(limit),
		CreditLimitMinor: minor(limit),
		Currency:         a.Balance.Curr().Code(),
	}
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      decimal(t.Amount),
		AmountMinor: minor(t.Amount),
		Timestamp:   t.Timestamp.UTC(),
	}
}
