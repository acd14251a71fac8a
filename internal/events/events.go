// Package events publishes notifications about committed ledger movements.
// Publishing happens after the unit of work commits, so a failed publish never
// undoes a movement.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/bankledger/internal/ledger"
)

// TypeTransactionRecorded is the event type for an appended transaction.
const TypeTransactionRecorded = "transaction.recorded"

// TransactionRecorded describes one committed movement and the balance it produced.
type TransactionRecorded struct {
	ID            uuid.UUID              `json:"id"`
	Type          string                 `json:"type"`
	AccountID     uuid.UUID              `json:"account_id"`
	AccountNumber string                 `json:"account_number"`
	Movement      ledger.TransactionType `json:"movement"`
	Amount        json.Number            `json:"amount"`
	Balance       json.Number            `json:"balance"`
	Currency      string                 `json:"currency"`
	Timestamp     time.Time              `json:"timestamp"`
}

// NewTransactionRecorded builds the event for tx applied to acc.
func NewTransactionRecorded(acc ledger.Account, tx ledger.Transaction) TransactionRecorded {
	return TransactionRecorded{
		ID:            tx.ID,
		Type:          TypeTransactionRecorded,
		AccountID:     acc.ID,
		AccountNumber: acc.Number,
		Movement:      tx.Type,
		Amount:        json.Number(ledger.Round(tx.Amount).Decimal().String()),
		Balance:       json.Number(ledger.Round(acc.Balance).Decimal().String()),
		Currency:      tx.Amount.Curr().Code(),
		Timestamp:     tx.Timestamp.UTC(),
	}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev TransactionRecorded) error
}

// Nop discards every event.
type Nop struct{}

// Publish discards ev.
func (Nop) Publish(context.Context, TransactionRecorded) error { return nil }

// Recorder keeps published events in memory; useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []TransactionRecorded
	// Err, when set, is returned by every Publish.
	Err error
}

// Publish records ev, or returns Err when it is set.
func (r *Recorder) Publish(_ context.Context, ev TransactionRecorded) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []TransactionRecorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransactionRecorded, len(r.events))
	copy(out, r.events)
	return out
}
