// Package memory is an in-process backend for development and tests. Each
// account has its own lock, so units of work on different accounts never
// contend; writes are staged per unit of work and applied on Commit.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/transaction"
)

// DefaultLockTimeout bounds how long LockAccount waits for a busy account.
const DefaultLockTimeout = 5 * time.Second

// ErrLockTimeout is returned when an account lock could not be acquired in time.
var ErrLockTimeout = errors.New("memory: account lock wait timeout")

// Store keeps accounts and the transaction log in maps guarded by mu. The
// per-account locks in locks are held for the lifetime of a unit of work.
type Store struct {
	mu          sync.RWMutex
	currency    string
	lockTimeout time.Duration
	accounts    map[uuid.UUID]ledger.Account
	byNumber    map[string]uuid.UUID
	locks       map[uuid.UUID]chan struct{}
	// txs is kept sorted asc by Timestamp per account
	txs map[uuid.UUID][]ledger.Transaction
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout overrides DefaultLockTimeout. Zero or negative waits until ctx is done.
func WithLockTimeout(d time.Duration) Option { return func(s *Store) { s.lockTimeout = d } }

// WithCurrency sets the currency of zero sums for unknown accounts.
func WithCurrency(code string) Option { return func(s *Store) { s.currency = code } }

// New constructs an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		currency:    ledger.DefaultCurrency,
		lockTimeout: DefaultLockTimeout,
		accounts:    make(map[uuid.UUID]ledger.Account),
		byNumber:    make(map[string]uuid.UUID),
		locks:       make(map[uuid.UUID]chan struct{}),
		txs:         make(map[uuid.UUID][]ledger.Transaction),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SeedAccount inserts or replaces an account. A zero ID is assigned.
func (s *Store) SeedAccount(a ledger.Account) ledger.Account {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	s.byNumber[a.Number] = a.ID
	if _, ok := s.locks[a.ID]; !ok {
		s.locks[a.ID] = make(chan struct{}, 1)
	}
	return a
}

// SeedTransaction appends tx to the log without touching the balance.
func (s *Store) SeedTransaction(tx ledger.Transaction) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertTxLocked(tx)
}

// SeedDev adds one account of each type for local testing.
func (s *Store) SeedDev() []ledger.Account {
	accs := ledger.DevAccounts(s.currency)
	for i := range accs {
		accs[i] = s.SeedAccount(accs[i])
	}
	return accs
}

// Ready always succeeds.
func (s *Store) Ready(context.Context) error { return nil }

// GetAccountByNumber returns the committed account state.
func (s *Store) GetAccountByNumber(_ context.Context, number string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.accounts[id], nil
}

// ListTransactions returns up to limit committed transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, number string, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return nil, errs.ErrNotFound
	}
	all := s.txs[id]
	out := make([]ledger.Transaction, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Begin opens a unit of work. It never fails.
func (s *Store) Begin(context.Context) (transaction.Work, error) {
	return &Work{
		store:    s,
		held:     make(map[uuid.UUID]ledger.Account),
		balances: make(map[uuid.UUID]money.Amount),
	}, nil
}

// withdrawalsSinceLocked sums committed withdrawals; caller holds mu.
func (s *Store) withdrawalsSinceLocked(accountID uuid.UUID, since time.Time, total money.Amount) (money.Amount, error) {
	all := s.txs[accountID]
	start := sort.Search(len(all), func(i int) bool { return !all[i].Timestamp.Before(since) })
	for _, tx := range all[start:] {
		if tx.Type != ledger.TransactionTypeWithdraw {
			continue
		}
		next, err := total.Add(tx.Amount)
		if err != nil {
			return money.Amount{}, err
		}
		total = next
	}
	return total, nil
}

// insertTxLocked keeps the per-account log ordered by Timestamp, stable for equal times.
func (s *Store) insertTxLocked(tx ledger.Transaction) {
	all := s.txs[tx.AccountID]
	i := sort.Search(len(all), func(i int) bool { return all[i].Timestamp.After(tx.Timestamp) })
	all = append(all, ledger.Transaction{})
	copy(all[i+1:], all[i:])
	all[i] = tx
	s.txs[tx.AccountID] = all
}
