// Package v1 is the HTTP surface of the ledger: account reads, deposits and
// withdrawals, plus health and metrics endpoints. Handlers stay thin; money
// rules live in the service layer.
package v1

// Prefix is mounted in front of every versioned route. The same routes are
// also served without it.
const Prefix = "/v1"
