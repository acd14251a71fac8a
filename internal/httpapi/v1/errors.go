package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tinoosan/bankledger/internal/errs"
)

// Request-shape codes, reported with HTTP 400 before the service is called.
const (
	codeInvalidIncrement = "INVALID_INCREMENT"
	codeMinValue         = "MIN_VALUE_EXCEEDED"
	codeMaxValue         = "MAX_VALUE_EXCEEDED"
	codeInvalidType      = "INVALID_TYPE"
	codeRequiredField    = "REQUIRED_FIELD"
	codeValidation       = string(errs.KindValidation)
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error                    string       `json:"error"`
	Code                     string       `json:"code,omitempty"`
	RemainingLimit           *json.Number `json:"remaining_limit,omitempty"`
	RemainingAvailableCredit *json.Number `json:"remaining_available_credit,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg, code string) { writeErr(w, http.StatusBadRequest, msg, code) }

// statusFor maps every ledger error kind to its HTTP status.
func statusFor(k errs.Kind) int {
	switch k {
	case errs.KindAccountNotFound:
		return http.StatusNotFound
	case errs.KindInsufficientFunds,
		errs.KindCreditLimitExceeded,
		errs.KindOverpaymentNotAllowed,
		errs.KindDailyWithdrawalLimitExceeded:
		return http.StatusUnprocessableEntity
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerErr renders err from the service layer. Persistence causes are
// not exposed to the client.
func (s *Server) writeLedgerErr(w http.ResponseWriter, r *http.Request, err error) {
	var le *errs.Error
	if !errors.As(err, &le) {
		s.log.Error("unexpected error", "req_id", reqID(r), "err", err)
		writeErr(w, http.StatusInternalServerError, "Internal server error.", "INTERNAL")
		return
	}
	resp := errorResponse{Error: le.Message, Code: string(le.Kind)}
	if le.Kind == errs.KindPersistence {
		resp.Error = "The ledger is temporarily unavailable. Please retry."
	}
	if le.RemainingLimit != nil {
		n := decimal(*le.RemainingLimit)
		resp.RemainingLimit = &n
	}
	if le.RemainingAvailableCredit != nil {
		n := decimal(*le.RemainingAvailableCredit)
		resp.RemainingAvailableCredit = &n
	}
	toJSON(w, statusFor(le.Kind), resp)
}
