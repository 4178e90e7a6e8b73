package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/banksys/banking-backend/internal/errs"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models"
)

// Store is the Postgres implementation of interfaces.LedgerStore and
// interfaces.UserStore, built on database/sql with the lib/pq driver.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InitSchema creates the tables if they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(255) UNIQUE NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		account_number VARCHAR(12) UNIQUE NOT NULL,
		balance NUMERIC(18, 2) NOT NULL CHECK (balance >= 0),
		user_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		type VARCHAR(16) NOT NULL,
		amount NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
		ts TIMESTAMPTZ NOT NULL,
		from_account UUID REFERENCES accounts(id),
		to_account UUID REFERENCES accounts(id),
		from_balance NUMERIC(18, 2) NOT NULL,
		to_balance NUMERIC(18, 2) NOT NULL
	);`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, account_number, balance, user_id, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.AccountNumber, account.Balance, account.UserID, account.CreatedAt)
	return err
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	const query = `SELECT id, account_number, balance, user_id, created_at
	FROM accounts WHERE account_number = $1`

	var a models.Account
	err := s.db.QueryRowContext(ctx, query, number).Scan(
		&a.ID, &a.AccountNumber, &a.Balance, &a.UserID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account: %w", errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAccountsByOwner(ctx context.Context, userID string) ([]models.Account, error) {
	const query = `SELECT id, account_number, balance, user_id, created_at
	FROM accounts WHERE user_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.AccountNumber, &a.Balance, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Apply commits the account updates and the transaction record in one
// database transaction, with a deferred rollback in case any statement
// fails before Commit.
func (s *Store) Apply(ctx context.Context, accounts []models.Account, tx models.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const update = `UPDATE accounts SET balance = $1 WHERE id = $2`
	for _, a := range accounts {
		if _, err = dbTx.ExecContext(ctx, update, a.Balance, a.ID); err != nil {
			return err
		}
	}

	const insert = `INSERT INTO transactions (id, type, amount, ts, from_account, to_account, from_balance, to_balance)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = dbTx.ExecContext(ctx, insert,
		tx.ID, string(tx.Type), tx.Amount, tx.Timestamp,
		nullable(tx.FromAccountID), nullable(tx.ToAccountID),
		tx.FromBalance, tx.ToBalance); err != nil {
		return err
	}

	err = dbTx.Commit()
	return err
}

func (s *Store) TransactionsInvolving(ctx context.Context, accountIDs []string) ([]models.Transaction, error) {
	const query = `SELECT id, type, amount, ts, from_account, to_account, from_balance, to_balance
	FROM transactions
	WHERE from_account = ANY($1::uuid[]) OR to_account = ANY($1::uuid[])
	ORDER BY ts`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			tx       models.Transaction
			txType   string
			from, to sql.NullString
		)
		if err := rows.Scan(&tx.ID, &txType, &tx.Amount, &tx.Timestamp,
			&from, &to, &tx.FromBalance, &tx.ToBalance); err != nil {
			return nil, err
		}
		tx.Type = models.TransactionType(txType)
		tx.FromAccountID = from.String
		tx.ToAccountID = to.String
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	const query = `INSERT INTO users (id, username, email, password_hash, role, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("username %s taken: %w", user.Username, errs.ErrInvalidArgument)
	}
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, username, email, password_hash, role, created_at
	FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `SELECT id, username, email, password_hash, role, created_at
	FROM users WHERE username = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func nullable(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

var (
	_ interfaces.LedgerStore = (*Store)(nil)
	_ interfaces.UserStore   = (*Store)(nil)
)
