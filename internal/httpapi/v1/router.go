package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/transaction"
)

// Options configures the HTTP server. Zero values fall back to defaults.
type Options struct {
	Currency string
	// Limits supplies the per-request shape rules.
	Limits         ledger.Limits
	AllowedOrigins []string
	// Ready is checked by /readyz; nil means always ready.
	Ready  ReadyChecker
	Logger *slog.Logger
}

// Server wires handlers and middleware using Chi.
type Server struct {
	tx       transaction.Service
	accounts account.Service
	ready    ReadyChecker
	currency string
	limits   ledger.Limits
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware. Zero limits take
// the defaults; limits in another currency are rejected.
func New(txSvc transaction.Service, accSvc account.Service, opts Options) (*Server, error) {
	if opts.Currency == "" {
		opts.Currency = ledger.DefaultCurrency
	}
	limits, err := opts.Limits.Resolve(opts.Currency)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	opts.Limits = limits
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(metricsMiddleware)
	r.Use(requestLogger(opts.Logger))
	r.Use(recoverer(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		tx:       txSvc,
		accounts: accSvc,
		ready:    opts.Ready,
		currency: opts.Currency,
		limits:   opts.Limits,
		log:      opts.Logger,
		rt:       r,
	}
	s.routes()
	return s, nil
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	api := func(r chi.Router) {
		r.Get("/accounts/{accountNumber}", s.getAccount)
		r.With(s.validateListTransactions()).Get("/accounts/{accountNumber}/transactions", s.listTransactions)
		r.With(s.validateMovement(ledger.TransactionTypeWithdraw)).Put("/transactions/{accountNumber}/withdraw", s.withdraw)
		r.With(s.validateMovement(ledger.TransactionTypeDeposit)).Put("/transactions/{accountNumber}/deposit", s.deposit)
	}
	s.rt.Route(Prefix, api)
	// Unversioned aliases for existing clients
	s.rt.Group(api)

	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
