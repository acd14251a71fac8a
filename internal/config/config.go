// Package config loads service settings: built-in defaults, then an optional
// YAML file named by LEDGER_CONFIG, then environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/money"
	"gopkg.in/yaml.v3"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// Config is the full set of service settings.
type Config struct {
	HTTPAddr       string `yaml:"http_addr"`
	DatabaseURL    string `yaml:"database_url"`
	DevSeed        bool   `yaml:"dev_seed"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`

	Log    Log    `yaml:"log"`
	Ledger Ledger `yaml:"ledger"`
	CORS   CORS   `yaml:"cors"`
	Kafka  Kafka  `yaml:"kafka"`
}

// Log selects the slog level and handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Ledger holds the money rules. Amounts are decimal strings in Currency.
type Ledger struct {
	Currency             string        `yaml:"currency"`
	Timezone             string        `yaml:"timezone"`
	LockTimeout          time.Duration `yaml:"lock_timeout"`
	DailyWithdrawalLimit string        `yaml:"daily_withdrawal_limit"`
	MaxWithdrawal        string        `yaml:"max_withdrawal"`
	WithdrawalIncrement  string        `yaml:"withdrawal_increment"`
	MinDeposit           string        `yaml:"min_deposit"`
	MaxDeposit           string        `yaml:"max_deposit"`
}

// CORS lists the origins allowed to call the API.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Kafka publishing is enabled when Brokers is non-empty.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Log:      Log{Level: "info", Format: "json"},
		Ledger: Ledger{
			Currency:             ledger.DefaultCurrency,
			Timezone:             "UTC",
			LockTimeout:          5 * time.Second,
			DailyWithdrawalLimit: "400",
			MaxWithdrawal:        "200",
			WithdrawalIncrement:  "5",
			MinDeposit:           "0.01",
			MaxDeposit:           "1000",
		},
		CORS:  CORS{AllowedOrigins: []string{"*"}},
		Kafka: Kafka{Topic: "ledger.transactions"},
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("LEDGER_CONFIG"), os.Getenv)
}

// LoadFrom applies the YAML file at path (if non-empty) and then getenv
// overrides on top of Default.
func LoadFrom(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		default:
			return fmt.Errorf("%s: invalid boolean %q", key, v)
		}
		return nil
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("DATABASE_URL", &c.DatabaseURL)
	if err := boolean("DEV_SEED", &c.DevSeed); err != nil {
		return err
	}
	if err := boolean("MIGRATE_ON_START", &c.MigrateOnStart); err != nil {
		return err
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LEDGER_CURRENCY", &c.Ledger.Currency)
	str("LEDGER_TIMEZONE", &c.Ledger.Timezone)
	if v := strings.TrimSpace(getenv("LEDGER_LOCK_TIMEOUT")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("LEDGER_LOCK_TIMEOUT: %w", err)
		}
		c.Ledger.LockTimeout = d
	}
	str("LEDGER_DAILY_WITHDRAWAL_LIMIT", &c.Ledger.DailyWithdrawalLimit)
	str("LEDGER_MAX_WITHDRAWAL", &c.Ledger.MaxWithdrawal)
	str("LEDGER_WITHDRAWAL_INCREMENT", &c.Ledger.WithdrawalIncrement)
	str("LEDGER_MIN_DEPOSIT", &c.Ledger.MinDeposit)
	str("LEDGER_MAX_DEPOSIT", &c.Ledger.MaxDeposit)
	list("CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)
	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	c.Ledger.Currency = strings.ToUpper(c.Ledger.Currency)
	return nil
}

// Validate checks that every derived value can be built.
func (c Config) Validate() error {
	if _, err := money.ParseCurr(c.Ledger.Currency); err != nil {
		return fmt.Errorf("ledger currency %q: %w", c.Ledger.Currency, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Limits(); err != nil {
		return err
	}
	if c.Ledger.LockTimeout < 0 {
		return fmt.Errorf("ledger lock timeout must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log format %q: want json or text", c.Log.Format)
	}
	return nil
}

// Location resolves the timezone that defines a calendar day.
func (c Config) Location() (*time.Location, error) {
	if c.Ledger.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger timezone %q: %w", c.Ledger.Timezone, err)
	}
	return loc, nil
}

// Limits parses the configured thresholds; empty values keep the defaults.
func (c Config) Limits() (ledger.Limits, error) {
	curr := c.Ledger.Currency
	var l ledger.Limits
	fields := []struct {
		name string
		raw  string
		dst  *money.Amount
	}{
		{"daily_withdrawal_limit", c.Ledger.DailyWithdrawalLimit, &l.DailyWithdrawal},
		{"max_withdrawal", c.Ledger.MaxWithdrawal, &l.MaxWithdrawal},
		{"withdrawal_increment", c.Ledger.WithdrawalIncrement, &l.WithdrawalIncrement},
		{"min_deposit", c.Ledger.MinDeposit, &l.MinDeposit},
		{"max_deposit", c.Ledger.MaxDeposit, &l.MaxDeposit},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		a, err := money.ParseAmount(curr, raw)
		if err != nil {
			return ledger.Limits{}, fmt.Errorf("ledger %s %q: %w", f.name, f.raw, err)
		}
		// an explicit zero is a mistake, not a request for the default
		if !a.IsPos() {
			return ledger.Limits{}, fmt.Errorf("ledger %s must be positive, got %s", f.name, f.raw)
		}
		*f.dst = a
	}
	l, err := l.Resolve(curr)
	if err != nil {
		return ledger.Limits{}, fmt.Errorf("ledger limits: %w", err)
	}
	return l, nil
}

// SlogLevel maps Log.Level to a slog level; unknown values mean info.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseDuration accepts Go durations ("750ms") or whole milliseconds ("750").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
