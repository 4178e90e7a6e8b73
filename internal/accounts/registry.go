// Package accounts is the account registry: it opens accounts and
// lists the accounts a principal owns. All balance mutation lives in
// the ledger package.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banksys/banking-backend/internal/errs"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models"
)

// accountNumberLen is the length of the public account token.
const accountNumberLen = 12

// View is the caller-facing projection of an account.
type View struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Username      string          `json:"username"`
}

// Registry creates and lists accounts. Every operation takes the
// caller's user ID explicitly; the registry never reads ambient
// authentication state.
type Registry struct {
	store   interfaces.LedgerStore
	users   interfaces.UserStore
	timeout time.Duration
}

// NewRegistry wires the registry to its stores. timeout bounds each
// storage call.
func NewRegistry(store interfaces.LedgerStore, users interfaces.UserStore, timeout time.Duration) *Registry {
	return &Registry{store: store, users: users, timeout: timeout}
}

// List returns all accounts owned by the principal, oldest first.
func (r *Registry) List(ctx context.Context, userID string) ([]View, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errs.Storage(err)
	}

	accts, err := r.store.GetAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, errs.Storage(err)
	}

	views := make([]View, 0, len(accts))
	for _, a := range accts {
		views = append(views, View{
			AccountNumber: a.AccountNumber,
			Balance:       a.Balance,
			Username:      user.Username,
		})
	}
	return views, nil
}

// Create opens a new account for the principal with the given initial
// balance. Negative balances are rejected; zero is fine.
func (r *Registry) Create(ctx context.Context, userID string, initialBalance decimal.Decimal) (View, error) {
	if initialBalance.Cmp(decimal.Zero) < 0 {
		return View{}, fmt.Errorf("initial balance cannot be negative: %w", errs.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		return View{}, errs.Storage(err)
	}

	account := models.Account{
		ID:            uuid.NewString(),
		AccountNumber: NewAccountNumber(),
		Balance:       initialBalance,
		UserID:        user.ID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := r.store.CreateAccount(ctx, account); err != nil {
		return View{}, errs.Storage(err)
	}

	return View{
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		Username:      user.Username,
	}, nil
}

// NewAccountNumber generates the public 12-character account token
// from a random uuid with the hyphens stripped. Collisions are
// negligible and rejected by the store's unique index regardless.
func NewAccountNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:accountNumberLen]
}
