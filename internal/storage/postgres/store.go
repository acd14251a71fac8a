// Package postgres is the pgx-backed store. Amounts are persisted as minor
// units (bigint) and mapped back to money.Amount in the store's currency.
// The schema is embedded under migrations/ and applied with Migrate.
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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/transaction"
)

// DefaultLockTimeout bounds how long a unit of work waits on a locked account row.
const DefaultLockTimeout = 5 * time.Second

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool        *pgxpool.Pool
	currency    string
	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithCurrency sets the currency amounts are read back in.
func WithCurrency(code string) Option { return func(s *Store) { s.currency = code } }

// WithLockTimeout sets the per unit of work lock_timeout. Zero disables it.
func WithLockTimeout(d time.Duration) Option { return func(s *Store) { s.lockTimeout = d } }

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{pool: pool, currency: ledger.DefaultCurrency, lockTimeout: DefaultLockTimeout}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// SeedDev inserts one account of each type unless their numbers already exist.
func (s *Store) SeedDev(ctx context.Context) ([]ledger.Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	accs := ledger.DevAccounts(s.currency)
	for i, a := range accs {
		if _, err := insertAccount(ctx, tx, a); err != nil {
			return nil, err
		}
		// keep the id of a row seeded by an earlier run
		if err := tx.QueryRow(ctx, `select id from accounts where account_number = $1`, a.Number).Scan(&accs[i].ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return accs, nil
}

// CreateAccount inserts a. A taken account number yields errs.ErrConflict.
func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	inserted, err := insertAccount(ctx, s.pool, a)
	if err != nil {
		return ledger.Account{}, err
	}
	if !inserted {
		return ledger.Account{}, fmt.Errorf("account %s: %w", a.Number, errs.ErrConflict)
	}
	return a, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertAccount reports false when the account number already exists.
func insertAccount(ctx context.Context, ex execer, a ledger.Account) (bool, error) {
	if !a.Type.Valid() {
		return false, fmt.Errorf("account %s: type %q: %w", a.Number, a.Type, errs.ErrInvalid)
	}
	bal, ok := a.Balance.MinorUnits()
	if !ok {
		return false, fmt.Errorf("account %s: balance out of range: %w", a.Number, errs.ErrInvalid)
	}
	limit, ok := a.CreditLimit.MinorUnits()
	if !ok {
		return false, fmt.Errorf("account %s: credit limit out of range: %w", a.Number, errs.ErrInvalid)
	}
	tag, err := ex.Exec(ctx, `
		insert into accounts (id, account_number, name, type, balance_minor, credit_limit_minor)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (account_number) do nothing
	`, a.ID, a.Number, a.Name, a.Type, bal, limit)
	if err != nil {
		return false, fmt.Errorf("insert account %s: %w", a.Number, err)
	}
	return tag.RowsAffected() == 1, nil
}

// --- Reads ---

// GetAccountByNumber returns the committed account row.
func (s *Store) GetAccountByNumber(ctx context.Context, number string) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `
		select id, account_number, name, type, balance_minor, credit_limit_minor
		from accounts
		where account_number = $1
	`, number)
	return s.scanAccount(row)
}

// ListTransactions returns up to limit transactions for the account, newest first.
func (s *Store) ListTransactions(ctx context.Context, number string, limit int) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		select t.id, t.account_id, t.type, t.amount_minor, t.created_at
		from transactions t
		join accounts a on a.id = t.account_id
		where a.account_number = $1
		order by t.created_at desc, t.seq desc
		limit $2
	`, number, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		var (
			tx    ledger.Transaction
			minor int64
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &minor, &tx.Timestamp); err != nil {
			return nil, err
		}
		if tx.Amount, err = s.amount(minor); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- Units of work ---

// Begin starts a database transaction with the store's lock timeout applied.
func (s *Store) Begin(ctx context.Context) (transaction.Work, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if s.lockTimeout > 0 {
		// is_local=true scopes the setting to this transaction
		if _, err := tx.Exec(ctx, `select set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	return &Tx{tx: tx, store: s}, nil
}

func (s *Store) amount(minor int64) (money.Amount, error) {
	return money.NewAmountFromMinorUnits(s.currency, minor)
}

func (s *Store) scanAccount(row pgx.Row) (ledger.Account, error) {
	var (
		a          ledger.Account
		bal, limit int64
	)
	if err := row.Scan(&a.ID, &a.Number, &a.Name, &a.Type, &bal, &limit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Account{}, errs.ErrNotFound
		}
		return ledger.Account{}, err
	}
	var err error
	if a.Balance, err = s.amount(bal); err != nil {
		return ledger.Account{}, err
	}
	if a.CreditLimit, err = s.amount(limit); err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}
