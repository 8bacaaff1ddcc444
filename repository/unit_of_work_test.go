package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"
	"fundsledger/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu        sync.Mutex
	pending   []events.Event
	flushed   []events.Event
	discarded int
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed = append(p.flushed, p.pending...)
	p.pending = nil
	return nil
}

func (p *recordingPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	p.discarded++
}

func withUnitOfWork(t *testing.T, factory *UnitOfWorkFactory, fn func(uow interfaces.UnitOfWork)) *recordingPublisher {
	t.Helper()
	publisher := &recordingPublisher{}
	uow := factory.CreateWithPublisher(publisher)
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	fn(uow)
	require.NoError(t, uow.Commit())
	return publisher
}

func TestUnitOfWork_FundsRoundTrip(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB)
	ctx := context.Background()

	t.Run("missing user returns nil", func(t *testing.T) {
		withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
			funds, err := uow.UserFundsRepository().Get(ctx, "nobody")
			require.NoError(t, err)
			assert.Nil(t, funds)
		})
	})

	t.Run("create is idempotent and update bumps version", func(t *testing.T) {
		withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
			repo := uow.UserFundsRepository()
			require.NoError(t, repo.Create(ctx, testutil.CreateTestFunds("alice")))
			require.NoError(t, repo.Create(ctx, testutil.CreateTestFunds("alice")))

			funds, err := repo.GetForUpdate(ctx, "alice")
			require.NoError(t, err)
			require.NotNil(t, funds)
			assert.Equal(t, int64(1), funds.Version)

			now := time.Now().UTC()
			funds.Credit(entities.FundTypeCash, decimal.NewFromInt(100), now)
			require.NoError(t, funds.Lock(entities.FundTypeCash, decimal.NewFromInt(30), now))
			require.NoError(t, repo.Update(ctx, funds))
			assert.Equal(t, int64(2), funds.Version)
		})

		withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
			funds, err := uow.UserFundsRepository().Get(ctx, "alice")
			require.NoError(t, err)
			require.NotNil(t, funds)

			cash := funds.Balance(entities.FundTypeCash)
			assert.True(t, cash.Amount.Equal(decimal.NewFromInt(100)))
			assert.True(t, cash.Locked.Equal(decimal.NewFromInt(30)))
			assert.True(t, cash.Available.Equal(decimal.NewFromInt(70)))
			assert.True(t, funds.TotalBalance.Equal(decimal.NewFromInt(100)))
		})
	})

	t.Run("promo balance is the sum of active grants", func(t *testing.T) {
		withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
			require.NoError(t, uow.UserFundsRepository().Create(ctx, testutil.CreateTestFunds("bob")))
			promos := uow.PromoFundRepository()
			require.NoError(t, promos.Create(ctx, testutil.CreateTestPromo("bob", "20", 24*time.Hour)))
			require.NoError(t, promos.Create(ctx, testutil.CreateTestPromo("bob", "5.5", 0)))

			spent := testutil.CreateTestPromo("bob", "40", 0)
			spent.Status = entities.PromoStatusUsed
			spent.RemainingAmount = decimal.Zero
			require.NoError(t, promos.Create(ctx, spent))
		})

		withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
			funds, err := uow.UserFundsRepository().Get(ctx, "bob")
			require.NoError(t, err)
			require.NotNil(t, funds)
			assert.True(t, funds.Balance(entities.FundTypePromo).Amount.Equal(decimal.RequireFromString("25.5")))
		})
	})
}

func TestUnitOfWork_RollbackDiscardsWritesAndEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB)
	ctx := context.Background()

	publisher := &recordingPublisher{}
	uow := factory.CreateWithPublisher(publisher)
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserFundsRepository().Create(ctx, testutil.CreateTestFunds("carol")))
	require.NoError(t, uow.EventBus().Publish(events.PromoExpiredEvent{UserID: "carol"}))
	require.NoError(t, uow.Rollback())

	assert.Empty(t, publisher.flushed)
	assert.Equal(t, 1, publisher.discarded)

	withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
		funds, err := uow.UserFundsRepository().Get(ctx, "carol")
		require.NoError(t, err)
		assert.Nil(t, funds)
	})
}

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB)
	ctx := context.Background()

	publisher := withUnitOfWork(t, factory, func(uow interfaces.UnitOfWork) {
		require.NoError(t, uow.UserFundsRepository().Create(ctx, testutil.CreateTestFunds("dave")))
		require.NoError(t, uow.EventBus().Publish(events.PromoExpiredEvent{UserID: "dave"}))
	})

	require.Len(t, publisher.flushed, 1)
	assert.Equal(t, events.EventTypePromoExpired, publisher.flushed[0].Type())
}

func TestUnitOfWork_NotStartedPanics(t *testing.T) {
	t.Parallel()

	uow := (&UnitOfWorkFactory{}).CreateWithPublisher(nil)
	assert.Panics(t, func() { uow.UserFundsRepository() })
	assert.Panics(t, func() { uow.FundTransactionRepository() })
	assert.Panics(t, func() { uow.PromoFundRepository() })
	assert.Panics(t, func() { uow.EventBus() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}
