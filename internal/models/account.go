package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a single bank account owned by exactly one user.
// Transactions reference accounts by ID only, never by pointer, so the
// store remains the single owner of account state.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"` // public 12-character token
	Balance       decimal.Decimal `json:"balance"`        // never negative outside an in-progress mutation
	UserID        string          `json:"user_id"`        // immutable after creation
	CreatedAt     time.Time       `json:"created_at"`
}
