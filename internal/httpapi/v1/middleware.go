package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/ledger"
)

type ctxKey string

const ctxKeyMovement ctxKey = "validatedMovement"
const ctxKeyListTransactions ctxKey = "validatedListTransactions"

// maxBodyBytes caps movement request bodies.
const maxBodyBytes = 1 << 16

// shapeError is a request rejected before it reaches the service.
type shapeError struct {
	code string
	msg  string
}

// validateMovement decodes {"amount": n} and applies the per-request shape
// rules for typ, storing a movementInput in the request context.
func (s *Server) validateMovement(typ ledger.TransactionType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			number := strings.TrimSpace(chi.URLParam(r, "accountNumber"))
			if number == "" {
				badRequest(w, "accountNumber is required.", codeValidation)
				return
			}
			var req movementRequest
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			dec.UseNumber()
			dec.DisallowUnknownFields()
			err := dec.Decode(&req)
			if err != nil && !errors.Is(err, io.EOF) {
				badRequest(w, "invalid JSON: "+err.Error(), codeValidation)
				return
			}
			if err == nil {
				// exactly one JSON value per body
				var extra json.RawMessage
				if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
					badRequest(w, "invalid JSON: unexpected data after the request object", codeValidation)
					return
				}
			}
			amount, serr := s.checkMovementShape(typ, req.Amount)
			if serr != nil {
				recordMovement(typ, strings.ToLower(serr.code))
				badRequest(w, serr.msg, serr.code)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyMovement, movementInput{AccountNumber: number, Amount: amount})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkMovementShape runs the checks in the order: type, increment, min, max.
func (s *Server) checkMovementShape(typ ledger.TransactionType, raw any) (money.Amount, *shapeError) {
	label := "Deposit"
	if typ == ledger.TransactionTypeWithdraw {
		label = "Withdrawal"
	}
	amount, serr := parseAmount(s.currency, label, raw)
	if serr != nil {
		return money.Amount{}, serr
	}
	received := amount.Decimal().String()
	exact := true
	if c, err := amount.Cmp(ledger.Round(amount)); err != nil || c != 0 {
		exact = false
	}

	var minimum, maximum money.Amount
	switch typ {
	case ledger.TransactionTypeWithdraw:
		inc := s.limits.WithdrawalIncrement
		if !exact || !multipleOf(amount, inc) {
			return money.Amount{}, &shapeError{codeInvalidIncrement, fmt.Sprintf("%s 'amount' must be in $%s increments. Received $%s.", label, ledger.Round(inc).Decimal().String(), received)}
		}
		minimum, maximum = inc, s.limits.MaxWithdrawal
	default:
		if !exact {
			return money.Amount{}, &shapeError{codeValidation, fmt.Sprintf("%s 'amount' must have at most two decimal places. Received $%s.", label, received)}
		}
		minimum, maximum = s.limits.MinDeposit, s.limits.MaxDeposit
	}
	if c, err := amount.Cmp(minimum); err != nil || c < 0 {
		return money.Amount{}, &shapeError{codeMinValue, fmt.Sprintf("%s 'amount' must be at least $%s. Received $%s.", label, ledger.Round(minimum).Decimal().String(), received)}
	}
	if c, err := amount.Cmp(maximum); err != nil || c > 0 {
		return money.Amount{}, &shapeError{codeMaxValue, fmt.Sprintf("%s 'amount' must not exceed $%s. Received $%s.", label, ledger.Round(maximum).Decimal().String(), received)}
	}
	return amount, nil
}

// parseAmount accepts JSON numbers and numeric strings.
func parseAmount(currency, label string, raw any) (money.Amount, *shapeError) {
	var text string
	switch v := raw.(type) {
	case nil:
		return money.Amount{}, &shapeError{codeRequiredField, fmt.Sprintf("%s 'amount' field is required.", label)}
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return money.Amount{}, &shapeError{codeInvalidType, fmt.Sprintf("%s 'amount' must be a number.", label)}
	}
	amount, err := money.ParseAmount(currency, text)
	if err != nil {
		return money.Amount{}, &shapeError{codeInvalidType, fmt.Sprintf("%s 'amount' must be a number.", label)}
	}
	return amount, nil
}

// multipleOf reports whether a is a whole multiple of step, both already in cents.
func multipleOf(a, step money.Amount) bool {
	au, ok1 := a.MinorUnits()
	su, ok2 := step.MinorUnits()
	if !ok1 || !ok2 || su == 0 {
		return false
	}
	return au%su == 0
}

// validateListTransactions parses ?limit for the transactions listing.
func (s *Server) validateListTransactions() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := listTransactionsQuery{AccountNumber: strings.TrimSpace(chi.URLParam(r, "accountNumber"))}
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 1 {
					badRequest(w, "limit must be a positive integer.", codeValidation)
					return
				}
				q.Limit = n
			}
			ctx := context.WithValue(r.Context(), ctxKeyListTransactions, q)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
