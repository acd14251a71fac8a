package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/govalues/money"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/transaction"
	"github.com/tinoosan/bankledger/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type acctResp struct {
	AccountNumber    string `json:"account_number"`
	Name             string `json:"name"`
	Balance          json.Number `json:"balance"`
	BalanceMinor     int64       `json:"balance_minor"`
	Type             string      `json:"type"`
	CreditLimit      json.Number `json:"credit_limit"`
	CreditLimitMinor int64       `json:"credit_limit_minor"`
}

type errResp struct {
	Error                    string   `json:"error"`
	Code                     string   `json:"code"`
	RemainingLimit           *float64 `json:"remaining_limit"`
	RemainingAvailableCredit *float64 `json:"remaining_available_credit"`
}

func usd(s string) money.Amount { return money.MustParseAmount("USD", s) }

type readyFunc func(context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

func setup(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	store.SeedAccount(ledger.Account{Number: "1001", Name: "Checking", Type: ledger.AccountTypeChecking, Balance: usd("100"), CreditLimit: usd("0")})
	store.SeedAccount(ledger.Account{Number: "3001", Name: "Credit", Type: ledger.AccountTypeCredit, Balance: usd("-50"), CreditLimit: usd("200")})
	store.SeedAccount(ledger.Account{Number: "3002", Name: "Credit", Type: ledger.AccountTypeCredit, Balance: usd("-30"), CreditLimit: usd("200")})
	txSvc := newTxService(t, store, transaction.Config{Logger: testLogger()})
	h := newHandler(t, txSvc, account.New(store), Options{Ready: store, Logger: testLogger()})
	return store, h
}

func newTxService(t *testing.T, uow transaction.UnitOfWork, cfg transaction.Config) transaction.Service {
	t.Helper()
	svc, err := transaction.New(uow, cfg)
	if err != nil {
		t.Fatalf("new transaction service: %v", err)
	}
	return svc
}

func newHandler(t *testing.T, txSvc transaction.Service, accSvc account.Service, opts Options) http.Handler {
	t.Helper()
	srv, err := New(txSvc, accSvc, opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errResp {
	t.Helper()
	var e errResp
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return e
}

func TestGetAccount(t *testing.T) {
	_, h := setup(t)
	for _, path := range []string{"/v1/accounts/1001", "/accounts/1001"} {
		rec := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
		var a acctResp
		decodeJSON(t, rec, &a)
		if a.AccountNumber != "1001" || a.Type != "checking" || a.BalanceMinor != 10000 {
			t.Fatalf("unexpected account: %+v", a)
		}
		if a.Balance.String() != "100.00" || a.CreditLimit.String() != "0.00" || a.CreditLimitMinor != 0 {
			t.Fatalf("unexpected account: %+v", a)
		}
		if !strings.Contains(rec.Body.String(), `"balance":100.00`) {
			t.Fatalf("balance should be a two-decimal number: %s", rec.Body.String())
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/accounts/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if e := decodeErr(t, rec); e.Code != "ACCOUNT_NOT_FOUND" {
		t.Fatalf("expected ACCOUNT_NOT_FOUND, got %q", e.Code)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodPut, "/v1/transactions/1001/deposit", `{"amount": 50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var a acctResp
	decodeJSON(t, rec, &a)
	if a.BalanceMinor != 15000 {
		t.Fatalf("expected 150.00, got %+v", a)
	}

	rec = do(t, h, http.MethodPut, "/transactions/1001/withdraw", `{"amount": "25"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	a = acctResp{}
	decodeJSON(t, rec, &a)
	if a.BalanceMinor != 12500 || a.Balance.String() != "125.00" {
		t.Fatalf("expected 125.00, got %+v", a)
	}

	rec = do(t, h, http.MethodGet, "/v1/accounts/1001/transactions?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list struct {
		Items []struct {
			Type        string `json:"type"`
			AmountMinor int64  `json:"amount_minor"`
		} `json:"items"`
	}
	decodeJSON(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].Type != "withdraw" || list.Items[0].AmountMinor != 2500 {
		t.Fatalf("unexpected list: %s", rec.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/v1/accounts/1001/transactions?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/accounts/nope/transactions", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: expected 404, got %d", rec.Code)
	}
}

func TestMovementShapeValidation(t *testing.T) {
	_, h := setup(t)
	cases := []struct {
		name string
		path string
		body string
		code string
	}{
		{"withdraw increment", "/v1/transactions/1001/withdraw", `{"amount": 7}`, "INVALID_INCREMENT"},
		{"withdraw cents", "/v1/transactions/1001/withdraw", `{"amount": 5.5}`, "INVALID_INCREMENT"},
		{"withdraw min", "/v1/transactions/1001/withdraw", `{"amount": 0}`, "MIN_VALUE_EXCEEDED"},
		{"withdraw negative", "/v1/transactions/1001/withdraw", `{"amount": -5}`, "MIN_VALUE_EXCEEDED"},
		{"withdraw max", "/v1/transactions/1001/withdraw", `{"amount": 205}`, "MAX_VALUE_EXCEEDED"},
		{"deposit min", "/v1/transactions/1001/deposit", `{"amount": 0}`, "MIN_VALUE_EXCEEDED"},
		{"deposit max", "/v1/transactions/1001/deposit", `{"amount": 1000.01}`, "MAX_VALUE_EXCEEDED"},
		{"deposit sub-cent", "/v1/transactions/1001/deposit", `{"amount": 10.005}`, "VALIDATION_ERROR"},
		{"type bool", "/v1/transactions/1001/deposit", `{"amount": true}`, "INVALID_TYPE"},
		{"type text", "/v1/transactions/1001/deposit", `{"amount": "ten"}`, "INVALID_TYPE"},
		{"required", "/v1/transactions/1001/deposit", `{}`, "REQUIRED_FIELD"},
		{"required null", "/v1/transactions/1001/deposit", `{"amount": null}`, "REQUIRED_FIELD"},
		{"empty body", "/v1/transactions/1001/deposit", ``, "REQUIRED_FIELD"},
		{"unknown field", "/v1/transactions/1001/deposit", `{"amount": 1, "memo": "x"}`, "VALIDATION_ERROR"},
		{"bad json", "/v1/transactions/1001/deposit", `{"amount":`, "VALIDATION_ERROR"},
		{"trailing garbage", "/v1/transactions/1001/deposit", `{"amount": 5} trailing`, "VALIDATION_ERROR"},
		{"second object", "/v1/transactions/1001/withdraw", `{"amount": 5}{"amount": 10}`, "VALIDATION_ERROR"},
		{"stray brace", "/v1/transactions/1001/deposit", `{"amount": 5}}`, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, tc.path, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if e := decodeErr(t, rec); e.Code != tc.code {
				t.Fatalf("expected %s, got %s (%s)", tc.code, e.Code, e.Error)
			}
		})
	}

	// shape errors never reach the ledger
	rec := do(t, h, http.MethodGet, "/v1/accounts/1001/transactions", "")
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected no transactions, got %s", rec.Body.String())
	}
}

func TestMovement_RequiresJSON(t *testing.T) {
	_, h := setup(t)
	req := httptest.NewRequest(http.MethodPut, "/v1/transactions/1001/deposit", bytes.NewBufferString(`{"amount": 1}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestMovement_TrailingWhitespaceAllowed(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodPut, "/v1/transactions/1001/deposit", "{\"amount\": 5}\n  ")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNew_LimitsCurrency(t *testing.T) {
	store := memory.New()
	bad := ledger.DefaultLimits("EUR")
	if _, err := New(stubTx{}, account.New(store), Options{Limits: bad, Logger: testLogger()}); err == nil {
		t.Fatalf("expected error for EUR limits on a USD ledger")
	}
	sub := ledger.Limits{WithdrawalIncrement: usd("0.001")}
	if _, err := New(stubTx{}, account.New(store), Options{Limits: sub, Logger: testLogger()}); err == nil {
		t.Fatalf("expected error for a sub-cent increment")
	}

	// zero fields take the defaults, set ones are kept
	srv, err := New(stubTx{}, account.New(store), Options{Limits: ledger.Limits{MaxWithdrawal: usd("100")}, Logger: testLogger()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := srv.limits.MaxWithdrawal.Decimal().String(); got != "100.00" {
		t.Fatalf("max withdrawal: got %s", got)
	}
	if got := srv.limits.WithdrawalIncrement.Decimal().String(); got != "5" && got != "5.00" {
		t.Fatalf("increment default: got %s", got)
	}
	rec := do(t, srv.Handler(), http.MethodPut, "/v1/transactions/1001/withdraw", `{"amount": 105}`)
	if e := decodeErr(t, rec); e.Code != "MAX_VALUE_EXCEEDED" {
		t.Fatalf("expected MAX_VALUE_EXCEEDED, got %s", e.Code)
	}
}

func TestMovement_BusinessRuleErrors(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodPut, "/v1/transactions/1001/withdraw", `{"amount": 150}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if e := decodeErr(t, rec); e.Code != "INSUFFICIENT_FUNDS" || e.Error != "Insufficient funds." {
		t.Fatalf("unexpected: %+v", e)
	}

	rec = do(t, h, http.MethodPut, "/v1/transactions/3001/withdraw", `{"amount": 170}`)
	e := decodeErr(t, rec)
	if rec.Code != http.StatusUnprocessableEntity || e.Code != "CREDIT_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected: %d %+v", rec.Code, e)
	}
	if e.RemainingAvailableCredit == nil || *e.RemainingAvailableCredit != 150 {
		t.Fatalf("expected remaining_available_credit 150, got %v", e.RemainingAvailableCredit)
	}

	rec = do(t, h, http.MethodPut, "/v1/transactions/3002/deposit", `{"amount": 40}`)
	if e := decodeErr(t, rec); rec.Code != http.StatusUnprocessableEntity || e.Code != "OVERPAYMENT_NOT_ALLOWED" {
		t.Fatalf("unexpected: %d %+v", rec.Code, e)
	}

	rec = do(t, h, http.MethodPut, "/v1/transactions/nope/deposit", `{"amount": 40}`)
	if e := decodeErr(t, rec); rec.Code != http.StatusNotFound || e.Code != "ACCOUNT_NOT_FOUND" {
		t.Fatalf("unexpected: %d %+v", rec.Code, e)
	}
}

func TestMovement_DailyLimit(t *testing.T) {
	store := memory.New()
	acc := store.SeedAccount(ledger.Account{Number: "1001", Type: ledger.AccountTypeChecking, Balance: usd("1000"), CreditLimit: usd("0")})
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	store.SeedTransaction(ledger.Transaction{AccountID: acc.ID, Type: ledger.TransactionTypeWithdraw, Amount: usd("380"), Timestamp: now.Add(-time.Hour)})
	txSvc := newTxService(t, store, transaction.Config{Now: func() time.Time { return now }, Logger: testLogger()})
	h := newHandler(t, txSvc, account.New(store), Options{Logger: testLogger()})

	rec := do(t, h, http.MethodPut, "/v1/transactions/1001/withdraw", `{"amount": 30}`)
	e := decodeErr(t, rec)
	if rec.Code != http.StatusUnprocessableEntity || e.Code != "DAILY_WITHDRAWAL_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected: %d %+v", rec.Code, e)
	}
	if e.RemainingLimit == nil || *e.RemainingLimit != 20 {
		t.Fatalf("expected remaining_limit 20, got %v", e.RemainingLimit)
	}
}

// stubTx lets tests inject service failures.
type stubTx struct{ err error }

func (s stubTx) Withdraw(context.Context, string, money.Amount) (ledger.Account, error) {
	return ledger.Account{}, s.err
}
func (s stubTx) Deposit(context.Context, string, money.Amount) (ledger.Account, error) {
	return ledger.Account{}, s.err
}

func TestMovement_PersistenceFailureIs503(t *testing.T) {
	store := memory.New()
	h := newHandler(t, stubTx{err: errs.Persistence("commit", errors.New("connection reset by peer"))}, account.New(store), Options{Logger: testLogger()})
	rec := do(t, h, http.MethodPut, "/v1/transactions/1001/deposit", `{"amount": 1}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	e := decodeErr(t, rec)
	if e.Code != "PERSISTENCE_FAILURE" || strings.Contains(e.Error, "connection reset") {
		t.Fatalf("cause must not leak: %+v", e)
	}

	h = newHandler(t, stubTx{err: errors.New("surprise")}, account.New(store), Options{Logger: testLogger()})
	if rec := do(t, h, http.MethodPut, "/v1/transactions/1001/deposit", `{"amount": 1}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestStatusForCoversEveryKind(t *testing.T) {
	for _, k := range errs.Kinds {
		if statusFor(k) == http.StatusInternalServerError {
			t.Fatalf("kind %s has no explicit status", k)
		}
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	_, h := setup(t)
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
	do(t, h, http.MethodPut, "/v1/transactions/1001/deposit", `{"amount": 1}`)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"ledger_http_requests_total", "ledger_movements_total"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %s", want)
		}
	}

	store := memory.New()
	down := newHandler(t, stubTx{}, account.New(store), Options{
		Ready:  readyFunc(func(context.Context) error { return errors.New("db down") }),
		Logger: testLogger(),
	})
	if rec := do(t, down, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz down: expected 503, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := setup(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/transactions/1001/deposit", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
