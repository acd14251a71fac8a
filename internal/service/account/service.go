// Package account exposes read access to accounts and their transaction history.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

const (
	// DefaultTransactionsLimit applies when the caller asks for no limit.
	DefaultTransactionsLimit = 50
	// MaxTransactionsLimit caps a single listing.
	MaxTransactionsLimit = 500
)

// Repo is the read side of a store.
type Repo interface {
	GetAccountByNumber(ctx context.Context, number string) (ledger.Account, error)
	// ListTransactions returns at most limit transactions, newest first.
	ListTransactions(ctx context.Context, number string, limit int) ([]ledger.Transaction, error)
}

// Service answers account and history queries.
type Service interface {
	Get(ctx context.Context, number string) (ledger.Account, error)
	Transactions(ctx context.Context, number string, limit int) ([]ledger.Transaction, error)
}

type service struct {
	repo Repo
}

// New returns a Service reading from repo.
func New(repo Repo) Service { return &service{repo: repo} }

func (s *service) Get(ctx context.Context, number string) (ledger.Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return ledger.Account{}, errs.Validation("account number is required")
	}
	acc, err := s.repo.GetAccountByNumber(ctx, number)
	if err != nil {
		return ledger.Account{}, mapRepoErr(number, "get account", err)
	}
	return acc, nil
}

// Transactions clamps limit to [1, MaxTransactionsLimit]; non-positive means default.
func (s *service) Transactions(ctx context.Context, number string, limit int) ([]ledger.Transaction, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, errs.Validation("account number is required")
	}
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	if limit > MaxTransactionsLimit {
		limit = MaxTransactionsLimit
	}
	// unknown accounts are a 404, not an empty list
	if _, err := s.repo.GetAccountByNumber(ctx, number); err != nil {
		return nil, mapRepoErr(number, "get account", err)
	}
	txs, err := s.repo.ListTransactions(ctx, number, limit)
	if err != nil {
		return nil, mapRepoErr(number, "list transactions", err)
	}
	return txs, nil
}

func mapRepoErr(number, op string, err error) error {
	var le *errs.Error
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return errs.AccountNotFound(number)
	case errors.As(err, &le):
		return err
	default:
		return errs.Persistence(op, err)
	}
}
