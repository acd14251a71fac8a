package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/bankledger/internal/config"
	"github.com/tinoosan/bankledger/internal/events"
	httpapi "github.com/tinoosan/bankledger/internal/httpapi/v1"
	"github.com/tinoosan/bankledger/internal/ledger"
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/transaction"
	"github.com/tinoosan/bankledger/internal/storage/memory"
	pgstore "github.com/tinoosan/bankledger/internal/storage/postgres"
)

// backend is what main needs from either store.
type backend interface {
	transaction.UnitOfWork
	account.Repo
	httpapi.ReadyChecker
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ledger service stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	limits, err := cfg.Limits()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var (
		store   backend
		closeFn = func() {}
	)
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		if cfg.MigrateOnStart {
			if err := pgstore.Migrate(dsn, logger); err != nil {
				return err
			}
		}
		pg, err := pgstore.Open(ctx, dsn, pgstore.WithCurrency(cfg.Ledger.Currency), pgstore.WithLockTimeout(cfg.Ledger.LockTimeout))
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		closeFn = pg.Close
		// Optional dev seed for compose/local
		if cfg.DevSeed {
			accs, err := pg.SeedDev(ctx)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", accs)
				printDevSeedBanner(accs)
			}
		}
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		mem := memory.New(memory.WithCurrency(cfg.Ledger.Currency), memory.WithLockTimeout(cfg.Ledger.LockTimeout))
		// the memory backend is always seeded, it starts empty otherwise
		accs := mem.SeedDev()
		logDevSeed(logger, "memory", accs)
		printDevSeedBanner(accs)
		store = mem
		logger.Info("storage backend: memory")
	}
	defer closeFn()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("kafka publisher close", "err", err)
			}
		}()
		publisher = kp
		logger.Info("event publisher: kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	txSvc, err := transaction.New(store, transaction.Config{
		Currency:             cfg.Ledger.Currency,
		DailyWithdrawalLimit: limits.DailyWithdrawal,
		Location:             loc,
		Logger:               logger,
		Publisher:            publisher,
	})
	if err != nil {
		return err
	}
	api, err := httpapi.New(txSvc, account.New(store), httpapi.Options{
		Currency:       cfg.Ledger.Currency,
		Limits:         limits,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Ready:          store,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger service listening", "addr", srv.Addr, "currency", cfg.Ledger.Currency, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// logDevSeed emits structured logs with the seeded account numbers
func logDevSeed(l *slog.Logger, backend string, accs []ledger.Account) {
	numbers := map[string]string{}
	for _, a := range accs {
		numbers[string(a.Type)+"_account_number"] = a.Number
	}
	l.Info("DEV seed ("+backend+")", "accounts", numbers)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste
func printDevSeedBanner(accs []ledger.Account) {
	fmt.Println("==================== DEV SEED ====================")
	for _, a := range accs {
		fmt.Printf("%-8s account_number: %s  balance: %s  credit_limit: %s\n", a.Type, a.Number, ledger.Round(a.Balance).Decimal().String(), ledger.Round(a.EffectiveCreditLimit()).Decimal().String())
	}
	fmt.Println("==================================================")
}

func buildLogger(c config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(strings.TrimSpace(c.Format), "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
