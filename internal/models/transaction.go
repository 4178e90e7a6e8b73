package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType discriminates the three ledger operations.
type TransactionType string

const (
	TypeDeposit  TransactionType = "DEPOSIT"
	TypeWithdraw TransactionType = "WITHDRAW"
	TypeTransfer TransactionType = "TRANSFER"
)

// Transaction is an immutable record of one committed ledger operation.
// DEPOSIT carries a destination only, WITHDRAW a source only, TRANSFER
// both. FromBalance/ToBalance are snapshots of the referenced account
// balances taken at commit time, so history reads do not depend on the
// accounts' later state.
type Transaction struct {
	ID            string          `json:"id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"` // always > 0
	Timestamp     time.Time       `json:"timestamp"`
	FromAccountID string          `json:"from_account_id,omitempty"`
	ToAccountID   string          `json:"to_account_id,omitempty"`
	FromBalance   decimal.Decimal `json:"from_balance"`
	ToBalance     decimal.Decimal `json:"to_balance"`
}
