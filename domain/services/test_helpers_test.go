package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/testhelpers"
	"fundsledger/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// LedgerTestFixture provides an engine over a fresh in-memory store
type LedgerTestFixture struct {
	T       *testing.T
	Ctx     context.Context
	Store   *memory.Store
	Engine  *LedgerEngine
	Log     interfaces.TransactionLogService
	Events  *testhelpers.RecordingPublisher
	Clock   *testClock
	factory *testhelpers.MemoryUnitOfWorkFactory
}

// NewLedgerTestFixture creates a fixture. opts may override limits; the clock,
// retry interval and store are always the fixture's own.
func NewLedgerTestFixture(t *testing.T, opts ...LedgerEngineOptions) *LedgerTestFixture {
	t.Helper()

	store := memory.NewStore()
	factory := testhelpers.NewMemoryUnitOfWorkFactory(store)
	clock := &testClock{now: testEpoch}

	var options LedgerEngineOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	options.Clock = clock.Now
	options.RetryInitialInterval = time.Millisecond

	return &LedgerTestFixture{
		T:       t,
		Ctx:     context.Background(),
		Store:   store,
		Engine:  NewLedgerEngine(factory, options),
		Log:     NewTransactionLogService(factory),
		Events:  factory.Events,
		Clock:   clock,
		factory: factory,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func intPtr(v int) *int {
	return &v
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, label ...string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", strings.Join(label, " "), want, got)
}

// RequireSuccess fails the test unless result succeeded
func (f *LedgerTestFixture) RequireSuccess(result *entities.OperationResult, err error) *entities.OperationResult {
	f.T.Helper()
	require.NoError(f.T, err)
	require.NotNil(f.T, result)
	require.True(f.T, result.Success, "operation failed: %s (%s)", result.Error, result.ErrorCode)
	return result
}

// RequireFailure fails the test unless result failed with code
func (f *LedgerTestFixture) RequireFailure(code entities.ErrorCode, result *entities.OperationResult, err error) *entities.OperationResult {
	f.T.Helper()
	require.NoError(f.T, err)
	require.NotNil(f.T, result)
	require.False(f.T, result.Success, "expected %s but operation succeeded", code)
	assert.Equal(f.T, code, result.ErrorCode, result.Error)
	return result
}

func (f *LedgerTestFixture) Deposit(userID string, ft entities.FundType, amount string) *entities.OperationResult {
	f.T.Helper()
	return f.RequireSuccess(f.Engine.Deposit(f.Ctx, interfaces.DepositRequest{
		UserID:           userID,
		Amount:           dec(amount),
		FundType:         ft,
		PaymentMethodRef: "card-4242",
	}))
}

func (f *LedgerTestFixture) Grant(userID, amount string, expiresInDays *int, requirements *interfaces.PromoRequirementsInput) *entities.OperationResult {
	f.T.Helper()
	return f.RequireSuccess(f.Engine.GrantPromo(f.Ctx, interfaces.GrantPromoRequest{
		UserID:        userID,
		Amount:        dec(amount),
		Source:        "welcome-bonus",
		ExpiresInDays: expiresInDays,
		Requirements:  requirements,
	}))
}

func (f *LedgerTestFixture) Funds(userID string) *entities.UserFunds {
	f.T.Helper()
	funds, err := f.Engine.GetUserFunds(f.Ctx, userID)
	require.NoError(f.T, err)
	require.NotNil(f.T, funds)
	return funds
}

func (f *LedgerTestFixture) Transactions(userID string) []*entities.FundTransaction {
	f.T.Helper()
	txs, err := f.Log.ListTransactions(f.Ctx, userID, nil, MaxHistoryLimit)
	require.NoError(f.T, err)
	return txs
}

func (f *LedgerTestFixture) Promo(promoID string) *entities.PromoFund {
	f.T.Helper()
	uow := f.factory.Create()
	require.NoError(f.T, uow.Begin(f.Ctx))
	defer uow.Rollback()
	promo, err := uow.PromoFundRepository().GetByID(f.Ctx, promoID)
	require.NoError(f.T, err)
	require.NotNil(f.T, promo)
	return promo
}

// SetPromo edits a stored grant directly, bypassing the engine
func (f *LedgerTestFixture) SetPromo(promoID string, edit func(p *entities.PromoFund)) {
	f.T.Helper()
	uow := f.factory.Create()
	require.NoError(f.T, uow.Begin(f.Ctx))
	defer uow.Rollback()

	promo, err := uow.PromoFundRepository().GetByID(f.Ctx, promoID)
	require.NoError(f.T, err)
	require.NotNil(f.T, promo)
	edit(promo)
	require.NoError(f.T, uow.PromoFundRepository().Update(f.Ctx, promo))
	require.NoError(f.T, uow.Commit())
}

// AssertBalance checks amount, available and locked of one fund type
func (f *LedgerTestFixture) AssertBalance(userID string, ft entities.FundType, amount, available, locked string) {
	f.T.Helper()
	b := f.Funds(userID).Balance(ft)
	assertAmount(f.T, amount, b.Amount, string(ft), "amount")
	assertAmount(f.T, available, b.Available, string(ft), "available")
	assertAmount(f.T, locked, b.Locked, string(ft), "locked")
}

// AssertConsistent checks the balance invariants and that the ledger explains every balance
func (f *LedgerTestFixture) AssertConsistent(userID string) {
	f.T.Helper()
	funds := f.Funds(userID)
	require.NoError(f.T, funds.Validate())

	report, err := f.Log.Reconcile(f.Ctx, userID)
	require.NoError(f.T, err)
	require.NotNil(f.T, report)
	assert.True(f.T, report.Balanced, "ledger does not reconcile for %s: mismatches %v", userID, report.Mismatches)

	for _, tx := range f.Transactions(userID) {
		assert.NoError(f.T, tx.Validate(), "transaction %s", tx.ID)
	}
}
