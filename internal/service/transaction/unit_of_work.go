package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

// AccountStore reads and writes one account row inside a unit of work.
type AccountStore interface {
	// LockAccount loads the account by number and holds it exclusively until
	// the work commits or rolls back. Returns errs.ErrNotFound when absent.
	LockAccount(ctx context.Context, number string) (ledger.Account, error)
	// UpdateBalance sets the balance and reports rows affected; zero means the
	// row vanished under us.
	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance money.Amount) (int64, error)
}

// TransactionLog is the append-only movement record.
type TransactionLog interface {
	// WithdrawalsSince sums withdraw amounts for the account at or after since.
	WithdrawalsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (money.Amount, error)
	AppendTransaction(ctx context.Context, tx ledger.Transaction) error
}

// Work is one open unit of work. Commit or Rollback ends it; Rollback after
// Commit is a no-op.
type Work interface {
	AccountStore
	TransactionLog
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWork opens units of work against the backing store.
type UnitOfWork interface {
	Begin(ctx context.Context) (Work, error)
}

// withUnitOfWork runs fn inside a fresh unit of work. The work is rolled back
// on every path that does not reach a successful Commit, panics included.
func withUnitOfWork(ctx context.Context, uow UnitOfWork, logger *slog.Logger, fn func(Work) error) error {
	w, err := uow.Begin(ctx)
	if err != nil {
		return errs.Persistence("begin unit of work", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		// rollback must run even when the caller's ctx is already done
		if rbErr := w.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Error("rollback failed", "err", rbErr)
		}
	}()

	if err := fn(w); err != nil {
		return err
	}
	if err := w.Commit(ctx); err != nil {
		return errs.Persistence("commit", err)
	}
	committed = true
	return nil
}
