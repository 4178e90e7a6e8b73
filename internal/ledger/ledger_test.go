package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banksys/banking-backend/internal/accounts"
	"github.com/banksys/banking-backend/internal/errs"
	"github.com/banksys/banking-backend/internal/models"
	"github.com/banksys/banking-backend/internal/storage/memory"
	"github.com/banksys/banking-backend/internal/txlog"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturingPublisher) Publish(topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	store     *memory.Store
	engine    *Engine
	publisher *capturingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	pub := &capturingPublisher{}
	engine := NewEngine(store, store, txlog.New(store), pub, 2*time.Second)
	return &fixture{store: store, engine: engine, publisher: pub}
}

func (f *fixture) newUser(t *testing.T, username string) string {
	t.Helper()
	id := uuid.NewString()
	err := f.store.CreateUser(context.Background(), models.User{
		ID: id, Username: username, Role: "USER", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) newAccount(t *testing.T, userID string, balance int64) models.Account {
	t.Helper()
	a := models.Account{
		ID:            uuid.NewString(),
		AccountNumber: accounts.NewAccountNumber(),
		Balance:       decimal.NewFromInt(balance),
		UserID:        userID,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	return a
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	a, err := f.store.GetAccountByNumber(context.Background(), number)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) transactions(t *testing.T, accountIDs ...string) []models.Transaction {
	t.Helper()
	txs, err := f.store.TransactionsInvolving(context.Background(), accountIDs)
	require.NoError(t, err)
	return txs
}

func TestDepositIncreasesBalance(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	acct := f.newAccount(t, user, 100)

	res, err := f.engine.Deposit(context.Background(), user, "", decimal.NewFromInt(50))
	require.NoError(t, err)

	assert.Equal(t, "Deposit successful", res.Message)
	assert.True(t, res.FromBalance.IsZero())
	assert.True(t, res.ToBalance.Equal(decimal.NewFromInt(150)))
	assert.True(t, f.balance(t, acct.AccountNumber).Equal(decimal.NewFromInt(150)))

	txs := f.transactions(t, acct.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TypeDeposit, txs[0].Type)
	assert.Empty(t, txs[0].FromAccountID)
	assert.Equal(t, acct.ID, txs[0].ToAccountID)
	assert.Len(t, f.publisher.events, 1)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	f.newAccount(t, user, 100)

	for _, amt := range []int64{0, -5} {
		_, err := f.engine.Deposit(context.Background(), user, "", decimal.NewFromInt(amt))
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	}
}

func TestDepositWithoutAccount(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")

	_, err := f.engine.Deposit(context.Background(), user, "", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDepositExplicitAccountSelector(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	first := f.newAccount(t, user, 100)
	second := f.newAccount(t, user, 0)

	_, err := f.engine.Deposit(context.Background(), user, second.AccountNumber, decimal.NewFromInt(25))
	require.NoError(t, err)

	assert.True(t, f.balance(t, first.AccountNumber).Equal(decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, second.AccountNumber).Equal(decimal.NewFromInt(25)))
}

func TestDepositToForeignAccountDenied(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	bobAcct := f.newAccount(t, bob, 100)
	f.newAccount(t, alice, 0)

	_, err := f.engine.Deposit(context.Background(), alice, bobAcct.AccountNumber, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	assert.True(t, f.balance(t, bobAcct.AccountNumber).Equal(decimal.NewFromInt(100)))
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	acct := f.newAccount(t, user, 100)

	res, err := f.engine.Withdraw(context.Background(), user, "", decimal.NewFromInt(30))
	require.NoError(t, err)

	assert.Equal(t, "Withdrawal successful", res.Message)
	assert.True(t, res.FromBalance.Equal(decimal.NewFromInt(70)))
	assert.True(t, res.ToBalance.IsZero())

	txs := f.transactions(t, acct.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TypeWithdraw, txs[0].Type)
	assert.Equal(t, acct.ID, txs[0].FromAccountID)
	assert.Empty(t, txs[0].ToAccountID)
}

func TestWithdrawInsufficientFundsLeavesBalance(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	acct := f.newAccount(t, user, 100)

	_, err := f.engine.Withdraw(context.Background(), user, "", decimal.NewFromInt(101))
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.True(t, f.balance(t, acct.AccountNumber).Equal(decimal.NewFromInt(100)))
	assert.Empty(t, f.transactions(t, acct.ID))
	assert.Empty(t, f.publisher.events)
}

func TestTransferConservation(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	src := f.newAccount(t, alice, 1000)
	dst := f.newAccount(t, bob, 500)

	res, err := f.engine.Transfer(context.Background(), alice, src.AccountNumber, dst.AccountNumber, decimal.NewFromInt(300))
	require.NoError(t, err)

	assert.Equal(t, "Transfer successful", res.Message)
	assert.True(t, res.FromBalance.Equal(decimal.NewFromInt(700)))
	assert.True(t, res.ToBalance.Equal(decimal.NewFromInt(800)))

	total := f.balance(t, src.AccountNumber).Add(f.balance(t, dst.AccountNumber))
	assert.True(t, total.Equal(decimal.NewFromInt(1500)), "conservation violated: %s", total)

	txs := f.transactions(t, src.ID, dst.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TypeTransfer, txs[0].Type)
	assert.Equal(t, src.ID, txs[0].FromAccountID)
	assert.Equal(t, dst.ID, txs[0].ToAccountID)
}

func TestTransferUnknownAccount(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	src := f.newAccount(t, alice, 100)

	_, err := f.engine.Transfer(context.Background(), alice, src.AccountNumber, "missing00000", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.True(t, f.balance(t, src.AccountNumber).Equal(decimal.NewFromInt(100)))

	_, err = f.engine.Transfer(context.Background(), alice, "missing00000", src.AccountNumber, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTransferFromForeignAccountDenied(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	aliceAcct := f.newAccount(t, alice, 100)
	bobAcct := f.newAccount(t, bob, 100)

	// bob tries to move alice's money
	_, err := f.engine.Transfer(context.Background(), bob, aliceAcct.AccountNumber, bobAcct.AccountNumber, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, errs.ErrPermissionDenied)

	assert.True(t, f.balance(t, aliceAcct.AccountNumber).Equal(decimal.NewFromInt(100)))
	assert.True(t, f.balance(t, bobAcct.AccountNumber).Equal(decimal.NewFromInt(100)))
	assert.Empty(t, f.transactions(t, aliceAcct.ID, bobAcct.ID))
}

func TestTransferInsufficientFundsAtomicFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	src := f.newAccount(t, alice, 150)
	dst := f.newAccount(t, bob, 0)

	_, err := f.engine.Transfer(context.Background(), alice, src.AccountNumber, dst.AccountNumber, decimal.NewFromInt(200))
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.True(t, f.balance(t, src.AccountNumber).Equal(decimal.NewFromInt(150)))
	assert.True(t, f.balance(t, dst.AccountNumber).IsZero())
	assert.Empty(t, f.transactions(t, src.ID, dst.ID))
}

func TestTransferSameAccountRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	acct := f.newAccount(t, alice, 100)

	_, err := f.engine.Transfer(context.Background(), alice, acct.AccountNumber, acct.AccountNumber, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestConcurrentWithdrawalsSingleWinner(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	acct := f.newAccount(t, user, 100)

	const n = 50
	var (
		wg           sync.WaitGroup
		successes    int32
		insufficient int32
		mu           sync.Mutex
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Withdraw(context.Background(), user, "", decimal.NewFromInt(100))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errs.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
	assert.EqualValues(t, n-1, insufficient)
	assert.True(t, f.balance(t, acct.AccountNumber).IsZero())
	require.Len(t, f.transactions(t, acct.ID), 1)
}

func TestConcurrentOpposingTransfersNoDeadlock(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	a := f.newAccount(t, alice, 1000)
	b := f.newAccount(t, bob, 1000)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.engine.Transfer(context.Background(), alice, a.AccountNumber, b.AccountNumber, decimal.NewFromInt(1))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.engine.Transfer(context.Background(), bob, b.AccountNumber, a.AccountNumber, decimal.NewFromInt(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total := f.balance(t, a.AccountNumber).Add(f.balance(t, b.AccountNumber))
	assert.True(t, total.Equal(decimal.NewFromInt(2000)), "conservation violated: %s", total)
}

func TestHistoryCompleteness(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	aliceAcct := f.newAccount(t, alice, 100)
	bobAcct := f.newAccount(t, bob, 100)

	ctx := context.Background()
	_, err := f.engine.Deposit(ctx, alice, "", decimal.NewFromInt(50))
	require.NoError(t, err)
	_, err = f.engine.Withdraw(ctx, bob, "", decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = f.engine.Transfer(ctx, alice, aliceAcct.AccountNumber, bobAcct.AccountNumber, decimal.NewFromInt(10))
	require.NoError(t, err)

	// alice sees her deposit and the shared transfer, not bob's withdrawal
	aliceHistory, err := f.engine.History(ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceHistory, 2)
	assert.Equal(t, "DEPOSIT - Amount: $50.00", aliceHistory[0].Message)
	assert.Equal(t, "TRANSFER - Amount: $10.00", aliceHistory[1].Message)

	// bob sees his withdrawal and the transfer
	bobHistory, err := f.engine.History(ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobHistory, 2)
	assert.Equal(t, "WITHDRAW - Amount: $20.00", bobHistory[0].Message)
	assert.Equal(t, "TRANSFER - Amount: $10.00", bobHistory[1].Message)
}

func TestHistoryReportsCommitTimeSnapshots(t *testing.T) {
	f := newFixture(t)
	user := f.newUser(t, "alice")
	f.newAccount(t, user, 100)

	ctx := context.Background()
	_, err := f.engine.Deposit(ctx, user, "", decimal.NewFromInt(50))
	require.NoError(t, err)
	_, err = f.engine.Deposit(ctx, user, "", decimal.NewFromInt(25))
	require.NoError(t, err)

	history, err := f.engine.History(ctx, user)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// first entry keeps the balance as it stood when it committed
	assert.True(t, history[0].ToBalance.Equal(decimal.NewFromInt(150)),
		"want snapshot 150, got %s", history[0].ToBalance)
	assert.True(t, history[1].ToBalance.Equal(decimal.NewFromInt(175)))
}

func TestHistoryUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.History(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

// Scenario from the product brief: open with 100, deposit 50, then try
// to transfer 200.
func TestScenarioDepositThenOverdraftTransfer(t *testing.T) {
	f := newFixture(t)
	alice := f.newUser(t, "alice")
	bob := f.newUser(t, "bob")
	a := f.newAccount(t, alice, 100)
	b := f.newAccount(t, bob, 0)

	ctx := context.Background()
	res, err := f.engine.Deposit(ctx, alice, "", decimal.NewFromInt(50))
	require.NoError(t, err)
	require.True(t, res.ToBalance.Equal(decimal.NewFromInt(150)))

	history, err := f.engine.History(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "DEPOSIT - Amount: $50.00", history[0].Message)

	_, err = f.engine.Transfer(ctx, alice, a.AccountNumber, b.AccountNumber, decimal.NewFromInt(200))
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)
	assert.True(t, f.balance(t, a.AccountNumber).Equal(decimal.NewFromInt(150)))
}

// blockingPublisher stalls its first Publish call until released,
// signalling entry so the test can act while the publish is in flight.
type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
	calls   int32
}

func (p *blockingPublisher) Publish(topic string, event any) error {
	if atomic.AddInt32(&p.calls, 1) == 1 {
		close(p.entered)
		<-p.release
	}
	return nil
}

func TestPublishDoesNotHoldAccountLock(t *testing.T) {
	store := memory.NewStore()
	pub := &blockingPublisher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(store, store, txlog.New(store), pub, 2*time.Second)

	userID := uuid.NewString()
	require.NoError(t, store.CreateUser(context.Background(), models.User{ID: userID, Username: "alice"}))
	acct := models.Account{
		ID:            uuid.NewString(),
		AccountNumber: accounts.NewAccountNumber(),
		Balance:       decimal.NewFromInt(100),
		UserID:        userID,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, store.CreateAccount(context.Background(), acct))

	depositDone := make(chan struct{})
	go func() {
		defer close(depositDone)
		_, err := engine.Deposit(context.Background(), userID, "", decimal.NewFromInt(50))
		assert.NoError(t, err)
	}()
	<-pub.entered

	// With the deposit commit published but unreturned, the account
	// must already be free for the next operation.
	withdrawDone := make(chan struct{})
	go func() {
		defer close(withdrawDone)
		_, err := engine.Withdraw(context.Background(), userID, "", decimal.NewFromInt(20))
		assert.NoError(t, err)
	}()

	select {
	case <-withdrawDone:
	case <-time.After(time.Second):
		t.Fatal("withdrawal blocked while the deposit event was being published")
	}

	close(pub.release)
	<-depositDone
}

func TestStoreTimeoutSurfacesUnavailable(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(slowStore{store}, store, txlog.New(store), nil, 10*time.Millisecond)

	id := uuid.NewString()
	require.NoError(t, store.CreateUser(context.Background(), models.User{ID: id, Username: "alice"}))

	_, err := engine.Deposit(context.Background(), id, "", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, errs.ErrUnavailable)
}

// slowStore delays every owner lookup past the engine deadline.
type slowStore struct {
	*memory.Store
}

func (s slowStore) GetAccountsByOwner(ctx context.Context, userID string) ([]models.Account, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("owner lookup: %w", ctx.Err())
	case <-time.After(50 * time.Millisecond):
		return s.Store.GetAccountsByOwner(ctx, userID)
	}
}
