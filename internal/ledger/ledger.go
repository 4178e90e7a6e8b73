// Package ledger is the balance-mutation engine. Every operation runs
// Validate -> Mutate -> Record -> Respond under per-account mutual
// exclusion, so concurrent operations on the same account serialize
// while unrelated accounts never contend.
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/banksys/banking-backend/internal/errs"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/models"
	"github.com/banksys/banking-backend/internal/models/events"
	"github.com/banksys/banking-backend/internal/txlog"
)

// Result reports the outcome of one ledger operation: a human-readable
// message plus the post-operation balances of the accounts involved.
// Operations without a source (deposit) or destination (withdraw)
// report zero for the side they do not touch.
type Result struct {
	Message     string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Engine executes deposits, withdrawals, transfers and history reads.
// Callers pass the principal's user ID explicitly on every operation;
// the engine never reads ambient authentication state.
type Engine struct {
	store     interfaces.LedgerStore
	users     interfaces.UserStore
	records   *txlog.Log
	publisher interfaces.EventPublisher // optional, nil disables publishing
	timeout   time.Duration
	locks     *accountLocks
}

// NewEngine wires the engine to its collaborators. publisher may be
// nil. timeout bounds each operation's storage work.
func NewEngine(store interfaces.LedgerStore, users interfaces.UserStore, records *txlog.Log, publisher interfaces.EventPublisher, timeout time.Duration) *Engine {
	return &Engine{
		store:     store,
		users:     users,
		records:   records,
		publisher: publisher,
		timeout:   timeout,
		locks:     newAccountLocks(),
	}
}

// Deposit adds amount to one of the principal's accounts.
// accountNumber selects the target; when empty the principal's first
// account (creation order) is used.
func (e *Engine) Deposit(ctx context.Context, userID, accountNumber string, amount decimal.Decimal) (Result, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return Result{}, fmt.Errorf("deposit amount must be positive: %w", errs.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	number, err := e.selectAccount(ctx, userID, accountNumber)
	if err != nil {
		return Result{}, err
	}

	unlock := e.locks.lock(number)
	defer unlock()

	// Re-read inside the critical section; the pre-lock copy may be stale.
	account, err := e.store.GetAccountByNumber(ctx, number)
	if err != nil {
		return Result{}, errs.Storage(err)
	}

	account.Balance = account.Balance.Add(amount)

	tx, err := txlog.Record(models.TypeDeposit, amount, time.Now().UTC(), nil, account)
	if err != nil {
		return Result{}, err
	}
	if err := e.store.Apply(ctx, []models.Account{*account}, tx); err != nil {
		return Result{}, errs.Storage(err)
	}

	// The record is committed; publish outside the critical section so
	// a slow broker cannot serialize other operations on this account.
	unlock()
	e.publish(tx)

	return Result{
		Message:     "Deposit successful",
		FromBalance: decimal.Zero,
		ToBalance:   account.Balance,
	}, nil
}

// Withdraw removes amount from one of the principal's accounts,
// failing with ErrInsufficientFunds when the balance is short. The
// balance is untouched on any failure.
func (e *Engine) Withdraw(ctx context.Context, userID, accountNumber string, amount decimal.Decimal) (Result, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return Result{}, fmt.Errorf("withdrawal amount must be positive: %w", errs.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	number, err := e.selectAccount(ctx, userID, accountNumber)
	if err != nil {
		return Result{}, err
	}

	unlock := e.locks.lock(number)
	defer unlock()

	account, err := e.store.GetAccountByNumber(ctx, number)
	if err != nil {
		return Result{}, errs.Storage(err)
	}
	if account.Balance.Cmp(amount) < 0 {
		return Result{}, fmt.Errorf("balance %s short of %s: %w",
			account.Balance.StringFixed(2), amount.StringFixed(2), errs.ErrInsufficientFunds)
	}

	account.Balance = account.Balance.Sub(amount)

	tx, err := txlog.Record(models.TypeWithdraw, amount, time.Now().UTC(), account, nil)
	if err != nil {
		return Result{}, err
	}
	if err := e.store.Apply(ctx, []models.Account{*account}, tx); err != nil {
		return Result{}, errs.Storage(err)
	}

	unlock()
	e.publish(tx)

	return Result{
		Message:     "Withdrawal successful",
		FromBalance: account.Balance,
		ToBalance:   decimal.Zero,
	}, nil
}

// Transfer moves amount between two accounts identified by number. The
// caller must own the source account. Both balance changes and the
// TRANSFER record commit as one atomic unit, so total funds across the
// pair are conserved.
func (e *Engine) Transfer(ctx context.Context, userID, fromNumber, toNumber string, amount decimal.Decimal) (Result, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return Result{}, fmt.Errorf("transfer amount must be positive: %w", errs.ErrInvalidArgument)
	}
	if fromNumber == toNumber {
		return Result{}, fmt.Errorf("cannot transfer to the same account: %w", errs.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Existence and ownership checks happen before locking; balances
	// are re-read afterwards.
	from, err := e.store.GetAccountByNumber(ctx, fromNumber)
	if err != nil {
		return Result{}, errs.Storage(err)
	}
	if _, err := e.store.GetAccountByNumber(ctx, toNumber); err != nil {
		return Result{}, errs.Storage(err)
	}
	if from.UserID != userID {
		return Result{}, fmt.Errorf("source account is not owned by the caller: %w", errs.ErrPermissionDenied)
	}

	// Both locks are taken in lexical account-number order so two
	// transfers moving funds in opposite directions cannot deadlock.
	unlock := e.locks.lockPair(fromNumber, toNumber)
	defer unlock()

	from, err = e.store.GetAccountByNumber(ctx, fromNumber)
	if err != nil {
		return Result{}, errs.Storage(err)
	}
	to, err := e.store.GetAccountByNumber(ctx, toNumber)
	if err != nil {
		return Result{}, errs.Storage(err)
	}
	if from.Balance.Cmp(amount) < 0 {
		return Result{}, fmt.Errorf("balance %s short of %s: %w",
			from.Balance.StringFixed(2), amount.StringFixed(2), errs.ErrInsufficientFunds)
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	tx, err := txlog.Record(models.TypeTransfer, amount, time.Now().UTC(), from, to)
	if err != nil {
		return Result{}, err
	}
	if err := e.store.Apply(ctx, []models.Account{*from, *to}, tx); err != nil {
		return Result{}, errs.Storage(err)
	}

	unlock()
	e.publish(tx)

	return Result{
		Message:     "Transfer successful",
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
	}, nil
}

// Entry is one rendered history line: the operation summary plus the
// balance snapshots captured when the transaction committed.
type Entry struct {
	Message     string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// History returns every transaction touching one of the principal's
// accounts, oldest first.
func (e *Engine) History(ctx context.Context, userID string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if _, err := e.users.GetUserByID(ctx, userID); err != nil {
		return nil, errs.Storage(err)
	}

	accts, err := e.store.GetAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, errs.Storage(err)
	}
	ids := make([]string, 0, len(accts))
	for _, a := range accts {
		ids = append(ids, a.ID)
	}

	txs, err := e.records.Involving(ctx, ids)
	if err != nil {
		return nil, errs.Storage(err)
	}

	entries := make([]Entry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, Entry{
			Message:     fmt.Sprintf("%s - Amount: $%s", tx.Type, tx.Amount.StringFixed(2)),
			FromBalance: tx.FromBalance,
			ToBalance:   tx.ToBalance,
		})
	}
	return entries, nil
}

// selectAccount resolves the account number a single-account operation
// targets. An explicit number must belong to the principal; an empty
// number falls back to the principal's first account.
func (e *Engine) selectAccount(ctx context.Context, userID, accountNumber string) (string, error) {
	if accountNumber != "" {
		account, err := e.store.GetAccountByNumber(ctx, accountNumber)
		if err != nil {
			return "", errs.Storage(err)
		}
		if account.UserID != userID {
			return "", fmt.Errorf("account is not owned by the caller: %w", errs.ErrPermissionDenied)
		}
		return account.AccountNumber, nil
	}

	accts, err := e.store.GetAccountsByOwner(ctx, userID)
	if err != nil {
		return "", errs.Storage(err)
	}
	if len(accts) == 0 {
		return "", fmt.Errorf("no account found for user: %w", errs.ErrNotFound)
	}
	return accts[0].AccountNumber, nil
}

// publish announces the committed transaction. The ledger write has
// already happened, so failures are logged and swallowed.
func (e *Engine) publish(tx models.Transaction) {
	if e.publisher == nil {
		return
	}
	evt := events.TransactionCompleted{
		TransactionID: tx.ID,
		Type:          string(tx.Type),
		FromAccount:   tx.FromAccountID,
		ToAccount:     tx.ToAccountID,
		Amount:        tx.Amount,
		OccurredAt:    tx.Timestamp,
	}
	if err := e.publisher.Publish(events.TopicTransactionCompleted, evt); err != nil {
		log.Printf("ledger: publish %s event: %v", tx.Type, err)
	}
}
