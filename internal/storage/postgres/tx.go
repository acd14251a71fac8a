package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// Postgres error codes that mean the unit of work lost a race for a row.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// ErrLockConflict wraps lock timeouts, serialization failures and deadlocks.
var ErrLockConflict = errors.New("postgres: lock conflict")

// Tx wraps a pgx.Tx and implements one unit of work.
type Tx struct {
	tx    pgx.Tx
	store *Store
}

// LockAccount selects the account row FOR UPDATE, holding it until the
// transaction ends.
func (t *Tx) LockAccount(ctx context.Context, number string) (ledger.Account, error) {
	row := t.tx.QueryRow(ctx, `
		select id, account_number, name, type, balance_minor, credit_limit_minor
		from accounts
		where account_number = $1
		for update
	`, number)
	acc, err := t.store.scanAccount(row)
	if err != nil {
		return ledger.Account{}, classify("lock account", err)
	}
	return acc, nil
}

// UpdateBalance writes balance and returns the number of rows changed.
func (t *Tx) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance money.Amount) (int64, error) {
	minor, ok := balance.MinorUnits()
	if !ok {
		return 0, fmt.Errorf("update balance: %s out of range", balance)
	}
	tag, err := t.tx.Exec(ctx, `update accounts set balance_minor = $2 where id = $1`, accountID, minor)
	if err != nil {
		return 0, classify("update balance", err)
	}
	return tag.RowsAffected(), nil
}

// WithdrawalsSince sums withdraw amounts created at or after since.
func (t *Tx) WithdrawalsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (money.Amount, error) {
	var total int64
	if err := t.tx.QueryRow(ctx, `
		select coalesce(sum(amount_minor), 0)::bigint
		from transactions
		where account_id = $1 and type = $2 and created_at >= $3
	`, accountID, ledger.TransactionTypeWithdraw, since).Scan(&total); err != nil {
		return money.Amount{}, classify("sum withdrawals", err)
	}
	return t.store.amount(total)
}

// AppendTransaction inserts tx into the transaction log.
func (t *Tx) AppendTransaction(ctx context.Context, tx ledger.Transaction) error {
	minor, ok := tx.Amount.MinorUnits()
	if !ok {
		return fmt.Errorf("append transaction: %s out of range", tx.Amount)
	}
	if _, err := t.tx.Exec(ctx, `
		insert into transactions (id, account_id, type, amount_minor, created_at)
		values ($1,$2,$3,$4,$5)
	`, tx.ID, tx.AccountID, tx.Type, minor, tx.Timestamp); err != nil {
		return classify("append transaction", err)
	}
	return nil
}

// Commit ends the unit of work and releases the row lock.
func (t *Tx) Commit(ctx context.Context) error { return classify("commit", t.tx.Commit(ctx)) }

// Rollback is a no-op once the transaction has ended.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// classify tags row-contention failures with ErrLockConflict.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w: %w", op, ErrLockConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
