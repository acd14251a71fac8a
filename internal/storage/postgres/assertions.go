package postgres

import (
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/transaction"
)

var (
	_ transaction.UnitOfWork = (*Store)(nil)
	_ transaction.Work       = (*Tx)(nil)
	_ account.Repo           = (*Store)(nil)
)
