package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// ErrWorkClosed is returned by operations on a committed or rolled back Work.
var ErrWorkClosed = errors.New("memory: unit of work already closed")

// Work is one unit of work against a Store. It is not safe for concurrent use.
type Work struct {
	store    *Store
	held     map[uuid.UUID]ledger.Account
	balances map[uuid.UUID]money.Amount
	appended []ledger.Transaction
	done     bool
}

// LockAccount acquires the account's lock, waiting up to the store's lock
// timeout. Locking an account this work already holds returns its staged state.
func (w *Work) LockAccount(ctx context.Context, number string) (ledger.Account, error) {
	if w.done {
		return ledger.Account{}, ErrWorkClosed
	}
	s := w.store
	s.mu.RLock()
	id, ok := s.byNumber[number]
	ch := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	if acc, held := w.held[id]; held {
		if b, staged := w.balances[id]; staged {
			acc.Balance = b
		}
		return acc, nil
	}

	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ledger.Account{}, fmt.Errorf("lock account %s: %w", number, ctx.Err())
	case <-timeout:
		return ledger.Account{}, fmt.Errorf("lock account %s: %w", number, ErrLockTimeout)
	}

	// reread now that no other work can change it
	s.mu.RLock()
	acc := s.accounts[id]
	s.mu.RUnlock()
	w.held[id] = acc
	return acc, nil
}

// UpdateBalance stages a new balance. The account must be locked by this work.
func (w *Work) UpdateBalance(_ context.Context, accountID uuid.UUID, balance money.Amount) (int64, error) {
	if w.done {
		return 0, ErrWorkClosed
	}
	if _, ok := w.held[accountID]; !ok {
		w.store.mu.RLock()
		_, exists := w.store.accounts[accountID]
		w.store.mu.RUnlock()
		if !exists {
			return 0, nil
		}
		return 0, fmt.Errorf("update balance: account %s is not locked by this unit of work", accountID)
	}
	w.balances[accountID] = balance
	return 1, nil
}

// WithdrawalsSince sums committed and staged withdrawals at or after since.
func (w *Work) WithdrawalsSince(_ context.Context, accountID uuid.UUID, since time.Time) (money.Amount, error) {
	if w.done {
		return money.Amount{}, ErrWorkClosed
	}
	s := w.store
	s.mu.RLock()
	currency := s.currency
	if acc, ok := s.accounts[accountID]; ok {
		currency = acc.Balance.Curr().Code()
	}
	zero, err := money.NewAmount(currency, 0, 2)
	if err != nil {
		s.mu.RUnlock()
		return money.Amount{}, err
	}
	total, err := s.withdrawalsSinceLocked(accountID, since, zero)
	s.mu.RUnlock()
	if err != nil {
		return money.Amount{}, err
	}
	for _, tx := range w.appended {
		if tx.AccountID != accountID || tx.Type != ledger.TransactionTypeWithdraw || tx.Timestamp.Before(since) {
			continue
		}
		if total, err = total.Add(tx.Amount); err != nil {
			return money.Amount{}, err
		}
	}
	return total, nil
}

// AppendTransaction stages tx. The account must be locked by this work.
func (w *Work) AppendTransaction(_ context.Context, tx ledger.Transaction) error {
	if w.done {
		return ErrWorkClosed
	}
	if _, ok := w.held[tx.AccountID]; !ok {
		return fmt.Errorf("append transaction: account %s is not locked by this unit of work", tx.AccountID)
	}
	w.appended = append(w.appended, tx)
	return nil
}

// Commit applies every staged write under the store mutex and releases the locks.
func (w *Work) Commit(context.Context) error {
	if w.done {
		return ErrWorkClosed
	}
	s := w.store
	s.mu.Lock()
	for id, b := range w.balances {
		acc := s.accounts[id]
		acc.Balance = b
		s.accounts[id] = acc
	}
	for _, tx := range w.appended {
		s.insertTxLocked(tx)
	}
	s.mu.Unlock()
	w.release()
	return nil
}

// Rollback discards staged writes and releases the locks. It is a no-op once closed.
func (w *Work) Rollback(context.Context) error {
	if w.done {
		return nil
	}
	w.release()
	return nil
}

func (w *Work) release() {
	w.done = true
	w.store.mu.RLock()
	defer w.store.mu.RUnlock()
	for id := range w.held {
		<-w.store.locks[id]
	}
	w.held = nil
	w.balances = nil
	w.appended = nil
}
