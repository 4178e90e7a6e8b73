// Package txlog is the append-only record of completed ledger
// operations. Records are built here so the per-type source/destination
// shape is enforced in one place, then committed through the store so
// they land in the same storage transaction as the balance updates.
package txlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banksys/banking-backend/internal/errs"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models"
)

// Log appends and queries transaction records. There is no update or
// delete: once a record exists it is the audit trail.
type Log struct {
	store interfaces.LedgerStore
}

// New creates a Log writing through the given store.
func New(store interfaces.LedgerStore) *Log {
	return &Log{store: store}
}

// Record builds an immutable transaction record, capturing the balance
// snapshots of the accounts as they stand post-mutation. Shape rules:
// DEPOSIT needs a destination only, WITHDRAW a source only, TRANSFER
// both.
func Record(txType models.TransactionType, amount decimal.Decimal, at time.Time, from, to *models.Account) (models.Transaction, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return models.Transaction{}, fmt.Errorf("amount must be positive: %w", errs.ErrInvalidArgument)
	}

	switch txType {
	case models.TypeDeposit:
		if from != nil || to == nil {
			return models.Transaction{}, fmt.Errorf("deposit must reference a destination only: %w", errs.ErrInvalidArgument)
		}
	case models.TypeWithdraw:
		if from == nil || to != nil {
			return models.Transaction{}, fmt.Errorf("withdrawal must reference a source only: %w", errs.ErrInvalidArgument)
		}
	case models.TypeTransfer:
		if from == nil || to == nil {
			return models.Transaction{}, fmt.Errorf("transfer must reference both accounts: %w", errs.ErrInvalidArgument)
		}
	default:
		return models.Transaction{}, fmt.Errorf("unknown transaction type %q: %w", txType, errs.ErrInvalidArgument)
	}

	tx := models.Transaction{
		ID:        uuid.NewString(),
		Type:      txType,
		Amount:    amount,
		Timestamp: at,
	}
	if from != nil {
		tx.FromAccountID = from.ID
		tx.FromBalance = from.Balance
	}
	if to != nil {
		tx.ToAccountID = to.ID
		tx.ToBalance = to.Balance
	}
	return tx, nil
}

// Append commits a record with no account updates, a pure insert.
func (l *Log) Append(ctx context.Context, tx models.Transaction) error {
	return l.store.Apply(ctx, nil, tx)
}

// Involving returns every record whose source or destination is one of
// the given accounts, oldest first.
func (l *Log) Involving(ctx context.Context, accountIDs []string) ([]models.Transaction, error) {
	return l.store.TransactionsInvolving(ctx, accountIDs)
}
