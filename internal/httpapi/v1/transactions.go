package v1

import (
	"context"
	"net/http"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// withdraw handles PUT /transactions/{accountNumber}/withdraw.
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, ledger.TransactionTypeWithdraw, s.tx.Withdraw)
}

// deposit handles PUT /transactions/{accountNumber}/deposit.
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, ledger.TransactionTypeDeposit, s.tx.Deposit)
}

type moveFunc func(ctx context.Context, accountNumber string, amount money.Amount) (ledger.Account, error)

func (s *Server) move(w http.ResponseWriter, r *http.Request, typ ledger.TransactionType, fn moveFunc) {
	in, ok := r.Context().Value(ctxKeyMovement).(movementInput)
	if !ok {
		badRequest(w, "invalid request", codeValidation)
		return
	}
	acc, err := fn(r.Context(), in.AccountNumber, in.Amount)
	recordMovement(typ, movementOutcome(err))
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}
