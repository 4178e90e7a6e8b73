package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/banksys/banking-backend/internal/errs"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models"
)

// Store is an in-memory implementation of interfaces.LedgerStore and
// interfaces.UserStore. All state lives behind one mutex, which makes
// Apply trivially atomic. Accounts and transactions are stored and
// returned by value so callers can never mutate internal state.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]models.Account // account ID -> account
	numberIndex  map[string]string         // account number -> account ID
	order        []string                  // account IDs in creation order
	transactions []models.Transaction
	users        map[string]models.User // user ID -> user
	usernames    map[string]string      // username -> user ID
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]models.Account),
		numberIndex: make(map[string]string),
		users:       make(map[string]models.User),
		usernames:   make(map[string]string),
	}
}

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.numberIndex[account.AccountNumber]; exists {
		return fmt.Errorf("account number %s taken: %w", account.AccountNumber, errs.ErrInvalidArgument)
	}
	s.accounts[account.ID] = account
	s.numberIndex[account.AccountNumber] = account.ID
	s.order = append(s.order, account.ID)
	return nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.numberIndex[number]
	if !ok {
		return nil, fmt.Errorf("account: %w", errs.ErrNotFound)
	}
	a := s.accounts[id]
	return &a, nil
}

// GetAccountsByOwner returns the owner's accounts in creation order,
// which is what makes the "first account" fallback deterministic.
func (s *Store) GetAccountsByOwner(ctx context.Context, userID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Account
	for _, id := range s.order {
		if a := s.accounts[id]; a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Apply persists the updated accounts and appends the transaction under
// one lock acquisition, so no reader ever observes a half-applied
// operation.
func (s *Store) Apply(ctx context.Context, accounts []models.Account, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range accounts {
		if _, ok := s.accounts[a.ID]; !ok {
			return fmt.Errorf("account %s: %w", a.AccountNumber, errs.ErrNotFound)
		}
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) TransactionsInvolving(ctx context.Context, accountIDs []string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}

	var out []models.Transaction
	for _, tx := range s.transactions {
		if wanted[tx.FromAccountID] || wanted[tx.ToAccountID] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usernames[user.Username]; exists {
		return fmt.Errorf("username %s taken: %w", user.Username, errs.ErrInvalidArgument)
	}
	s.users[user.ID] = user
	s.usernames[user.Username] = user.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", errs.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, errs.ErrNotFound)
	}
	u := s.users[id]
	return &u, nil
}

// Compile-time checks: Store implements both storage interfaces.
var (
	_ interfaces.LedgerStore = (*Store)(nil)
	_ interfaces.UserStore   = (*Store)(nil)
)
