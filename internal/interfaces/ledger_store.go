package interfaces

import (
	"context"

	"github.com/banksys/banking-backend/internal/models"
)

// LedgerStore is the durable keyed storage for accounts and
// transactions. Implementations must make Apply atomic: either every
// account update and the transaction record land together, or nothing
// does. Lookups return errs.ErrNotFound (wrapped) when the row is
// absent.
type LedgerStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccountByNumber(ctx context.Context, number string) (*models.Account, error)
	GetAccountsByOwner(ctx context.Context, userID string) ([]models.Account, error)

	// Apply persists the updated account rows and appends the
	// transaction as a single atomic unit. accounts may be empty for a
	// pure append.
	Apply(ctx context.Context, accounts []models.Account, tx models.Transaction) error

	// TransactionsInvolving returns every transaction whose source or
	// destination is one of the given account IDs, oldest first.
	TransactionsInvolving(ctx context.Context, accountIDs []string) ([]models.Transaction, error)
}
