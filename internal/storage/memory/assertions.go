package memory

import (
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/transaction"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ transaction.UnitOfWork = (*Store)(nil)
	_ transaction.Work       = (*Work)(nil)
	_ account.Repo           = (*Store)(nil)
)
