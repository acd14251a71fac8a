package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
)

// getAccount handles GET /accounts/{accountNumber}.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.Get(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// listTransactions handles GET /accounts/{accountNumber}/transactions.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q, _ := r.Context().Value(ctxKeyListTransactions).(listTransactionsQuery)
	txs, err := s.accounts.Transactions(r.Context(), q.AccountNumber, q.Limit)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	resp := listTransactionsResponse{AccountNumber: q.AccountNumber, Items: make([]transactionResponse, 0, len(txs))}
	for _, t := range txs {
		resp.Items = append(resp.Items, toTransactionResponse(t))
	}
	toJSON(w, http.StatusOK, resp)
}
