package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// DefaultCurrency is the ledger currency used when none is configured.
const DefaultCurrency = "USD"

// AccountType enumerates the kinds of account the ledger can move money on.
type AccountType string

const (
	// AccountTypeChecking is a transactional account that may never go below zero.
	AccountTypeChecking AccountType = "checking"
	// AccountTypeSavings behaves like checking for balance rules.
	AccountTypeSavings AccountType = "savings"
	// AccountTypeCredit holds a non-positive balance bounded below by its credit limit.
	AccountTypeCredit AccountType = "credit"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeCredit:
		return true
	}
	return false
}

// TransactionType identifies the direction of a movement.
type TransactionType string

const (
	// TransactionTypeDeposit increases the balance.
	TransactionTypeDeposit TransactionType = "deposit"
	// TransactionTypeWithdraw decreases the balance.
	TransactionTypeWithdraw TransactionType = "withdraw"
)

// Account is a snapshot of a single account row.
type Account struct {
	ID uuid.UUID
	// Number is the external identifier callers use (account_number).
	Number      string
	Name        string
	Balance     money.Amount
	Type        AccountType
	CreditLimit money.Amount
}

// IsCredit reports whether credit-account rules apply.
func (a Account) IsCredit() bool { return a.Type == AccountTypeCredit }

// EffectiveCreditLimit returns the credit limit, or zero for non-credit accounts.
func (a Account) EffectiveCreditLimit() money.Amount {
	if a.IsCredit() && !a.CreditLimit.IsNeg() {
		return a.CreditLimit
	}
	return money.MustNewAmount(a.Balance.Curr().Code(), 0, 0)
}

// Transaction is an immutable record of one accepted movement.
type Transaction struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Type      TransactionType
	// Amount is the magnitude of the movement, never the resulting balance.
	Amount    money.Amount
	Timestamp time.Time
}

// DevAccounts returns one account of each type with fresh IDs, for local seeding.
func DevAccounts(currency string) []Account {
	zero := money.MustNewAmount(currency, 0, 0)
	return []Account{
		{ID: uuid.New(), Number: "1001", Name: "Everyday Checking", Type: AccountTypeChecking, Balance: money.MustNewAmount(currency, 100, 0), CreditLimit: zero},
		{ID: uuid.New(), Number: "2001", Name: "Rainy Day Savings", Type: AccountTypeSavings, Balance: money.MustNewAmount(currency, 500, 0), CreditLimit: zero},
		{ID: uuid.New(), Number: "3001", Name: "Rewards Credit", Type: AccountTypeCredit, Balance: money.MustNewAmount(currency, -50, 0), CreditLimit: money.MustNewAmount(currency, 200, 0)},
	}
}
