package v1

import (
	"github.com/tinoosan/bankledger/internal/storage/memory"
	"github.com/tinoosan/bankledger/internal/storage/postgres"
)

// Compile-time assertions for the stores main hands to the server.
var (
	_ ReadyChecker = (*memory.Store)(nil)
	_ ReadyChecker = (*postgres.Store)(nil)
)
