// Package transaction implements deposits and withdrawals: each one locks the
// account, checks the balance rules, writes the new balance and appends a
// transaction record inside a single unit of work.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/events"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/balance"
)

// Service moves money on a single account.
type Service interface {
	Withdraw(ctx context.Context, accountNumber string, amount money.Amount) (ledger.Account, error)
	Deposit(ctx context.Context, accountNumber string, amount money.Amount) (ledger.Account, error)
}

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	// Currency of every amount in the ledger (default USD).
	Currency string
	// DailyWithdrawalLimit caps the sum of withdrawals per account and calendar day.
	DailyWithdrawalLimit money.Amount
	// Location defines the calendar day boundary (default UTC).
	Location *time.Location
	// Now is the clock used for timestamps and the daily window.
	Now       func() time.Time
	Logger    *slog.Logger
	Publisher events.Publisher
}

type service struct {
	uow        UnitOfWork
	currency   string
	dailyLimit money.Amount
	loc        *time.Location
	now        func() time.Time
	log        *slog.Logger
	publisher  events.Publisher
}

// New builds the service. A zero DailyWithdrawalLimit means the default; one
// in another currency is an error.
func New(uow UnitOfWork, cfg Config) (Service, error) {
	if uow == nil {
		return nil, errors.New("transaction: nil unit of work")
	}
	s := &service{
		uow:        uow,
		currency:   cfg.Currency,
		dailyLimit: cfg.DailyWithdrawalLimit,
		loc:        cfg.Location,
		now:        cfg.Now,
		log:        cfg.Logger,
		publisher:  cfg.Publisher,
	}
	if s.currency == "" {
		s.currency = ledger.DefaultCurrency
	}
	limit, err := ledger.ResolveAmount("daily withdrawal limit", s.dailyLimit, ledger.DefaultLimits(s.currency).DailyWithdrawal, s.currency)
	if err != nil {
		return nil, fmt.Errorf("transaction: %w", err)
	}
	s.dailyLimit = limit
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	return s, nil
}

func (s *service) Withdraw(ctx context.Context, accountNumber string, amount money.Amount) (ledger.Account, error) {
	return s.move(ctx, ledger.TransactionTypeWithdraw, accountNumber, amount)
}

func (s *service) Deposit(ctx context.Context, accountNumber string, amount money.Amount) (ledger.Account, error) {
	return s.move(ctx, ledger.TransactionTypeDeposit, accountNumber, amount)
}

func (s *service) move(ctx context.Context, typ ledger.TransactionType, number string, amount money.Amount) (ledger.Account, error) {
	number = strings.TrimSpace(number)
	if err := s.validateInput(number, amount); err != nil {
		return ledger.Account{}, err
	}
	amount = ledger.Round(amount)
	logger := s.log.With("op", string(typ), "account_number", number)

	var (
		updated ledger.Account
		record  ledger.Transaction
	)
	err := withUnitOfWork(ctx, s.uow, logger, func(w Work) error {
		acc, err := w.LockAccount(ctx, number)
		if errors.Is(err, errs.ErrNotFound) {
			return errs.AccountNotFound(number)
		}
		if err != nil {
			return errs.Persistence("lock account", err)
		}
		now := s.now()

		projected, err := project(typ, acc.Balance, amount)
		if err != nil {
			return err
		}
		switch typ {
		case ledger.TransactionTypeWithdraw:
			if err := balance.CheckOverdraft(acc.IsCredit(), projected, acc.EffectiveCreditLimit(), acc.Balance); err != nil {
				return err
			}
			prior, err := w.WithdrawalsSince(ctx, acc.ID, balance.StartOfDay(now, s.loc))
			if err != nil {
				return errs.Persistence("sum withdrawals", err)
			}
			if err := balance.CheckDailyWithdrawalLimit(prior, amount, s.dailyLimit); err != nil {
				return err
			}
		case ledger.TransactionTypeDeposit:
			if err := balance.CheckCreditOverpayment(acc.IsCredit(), projected); err != nil {
				return err
			}
		}

		rows, err := w.UpdateBalance(ctx, acc.ID, projected)
		if err != nil {
			return errs.Persistence("update balance", err)
		}
		if rows == 0 {
			return errs.AccountNotFound(number)
		}
		record = ledger.Transaction{
			ID:        uuid.New(),
			AccountID: acc.ID,
			Type:      typ,
			Amount:    amount,
			Timestamp: now.UTC(),
		}
		if err := w.AppendTransaction(ctx, record); err != nil {
			return errs.Persistence("append transaction", err)
		}
		acc.Balance = projected
		updated = acc
		return nil
	})
	if err != nil {
		s.logFailure(logger, err)
		return ledger.Account{}, err
	}

	logger.Info("movement committed", "transaction_id", record.ID.String(), "amount", amount.Decimal().String(), "balance", updated.Balance.Decimal().String())
	if perr := s.publisher.Publish(context.WithoutCancel(ctx), events.NewTransactionRecorded(updated, record)); perr != nil {
		logger.Warn("publish transaction event failed", "transaction_id", record.ID.String(), "err", perr)
	}
	return updated, nil
}

func (s *service) validateInput(number string, amount money.Amount) error {
	if number == "" {
		return errs.Validation("account number is required")
	}
	if amount.Curr().Code() != s.currency {
		return errs.Validation("amount currency must be " + s.currency)
	}
	if !amount.IsPos() {
		return errs.Validation("amount must be greater than zero")
	}
	if c, err := amount.Cmp(ledger.Round(amount)); err != nil || c != 0 {
		return errs.Validation("amount must have at most two decimal places")
	}
	return nil
}

// project applies the movement to the current balance.
func project(typ ledger.TransactionType, current, amount money.Amount) (money.Amount, error) {
	var (
		next money.Amount
		err  error
	)
	if typ == ledger.TransactionTypeWithdraw {
		next, err = current.Sub(amount)
	} else {
		next, err = current.Add(amount)
	}
	if err != nil {
		return money.Amount{}, errs.Validation(err.Error())
	}
	return ledger.Round(next), nil
}

func (s *service) logFailure(logger *slog.Logger, err error) {
	switch errs.KindOf(err) {
	case errs.KindPersistence:
		logger.Error("movement failed", "err", err)
	default:
		logger.Debug("movement rejected", "kind", string(errs.KindOf(err)), "err", err)
	}
}
