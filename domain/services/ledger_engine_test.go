package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLedgerEngine_StorageFaultsAreErrors(t *testing.T) {
	t.Parallel()

	uow := testhelpers.NewMockUnitOfWork()
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.UserFundsRepo.On("GetForUpdate", mock.Anything, "alice").Return(nil, errors.New("connection reset"))

	engine := NewLedgerEngine(&testhelpers.SingleUnitOfWorkFactory{UnitOfWork: uow}, LedgerEngineOptions{})
	result, err := engine.Deposit(context.Background(), interfaces.DepositRequest{
		UserID:   "alice",
		Amount:   dec("10"),
		FundType: entities.FundTypeCash,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "connection reset")
	uow.AssertNotCalled(t, "Commit")
	uow.AssertAllExpectations(t)
}

func TestLedgerEngine_BeginFailure(t *testing.T) {
	t.Parallel()

	uow := testhelpers.NewMockUnitOfWork()
	uow.On("Begin", mock.Anything).Return(errors.New("pool exhausted"))

	engine := NewLedgerEngine(&testhelpers.SingleUnitOfWorkFactory{UnitOfWork: uow}, LedgerEngineOptions{})
	_, err := engine.CloseAccount(context.Background(), "alice")

	require.Error(t, err)
	uow.AssertAllExpectations(t)
}

func TestLedgerEngine_CommitConflictWithMocks(t *testing.T) {
	t.Parallel()

	funds := entities.NewUserFunds("alice", testEpoch)
	uow := testhelpers.NewMockUnitOfWork()
	uow.On("Begin", mock.Anything).Return(nil)
	uow.On("Rollback").Return(nil)
	uow.On("Commit").Return(interfaces.ErrConcurrencyConflict)
	uow.UserFundsRepo.On("GetForUpdate", mock.Anything, "alice").Return(funds.Clone(), nil)
	uow.UserFundsRepo.On("Update", mock.Anything, mock.AnythingOfType("*entities.UserFunds")).Return(nil)
	uow.TransactionRepo.On("Append", mock.Anything, mock.AnythingOfType("*entities.FundTransaction")).Return(nil)
	uow.Publisher.On("Publish", mock.Anything).Return(nil)

	engine := NewLedgerEngine(&testhelpers.SingleUnitOfWorkFactory{UnitOfWork: uow}, LedgerEngineOptions{
		MaxCommitRetries:     -1,
		RetryInitialInterval: 1,
	})
	result, err := engine.Deposit(context.Background(), interfaces.DepositRequest{
		UserID:   "alice",
		Amount:   dec("10"),
		FundType: entities.FundTypeCash,
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, entities.ErrCodeSystemError, result.ErrorCode)
	uow.AssertNumberOfCalls(t, "Commit", 1)
}

func TestLedgerEngine_BalanceCache(t *testing.T) {
	t.Parallel()
	cache := &testhelpers.MockBalanceCache{}
	f := NewLedgerTestFixture(t, LedgerEngineOptions{Cache: cache})

	cached := entities.NewUserFunds("alice", testEpoch)
	cached.Credit(entities.FundTypeCash, dec("7"), testEpoch)

	// miss, then populate
	cache.On("Get", mock.Anything, "bob").Return(nil, nil).Once()
	cache.On("Set", mock.Anything, mock.AnythingOfType("*entities.UserFunds")).Return(nil).Once()
	cache.On("Invalidate", mock.Anything, []string{"bob"}).Return(nil).Once()
	funds, err := f.Engine.GetUserFunds(f.Ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", funds.UserID)

	// hit
	cache.On("Get", mock.Anything, "alice").Return(cached, nil).Once()
	funds, err = f.Engine.GetUserFunds(f.Ctx, "alice")
	require.NoError(t, err)
	assertAmount(t, "7", funds.Balance(entities.FundTypeCash).Amount)

	// successful writes invalidate every touched account, failures do not
	cache.On("Invalidate", mock.Anything, []string{"alice"}).Return(errors.New("redis down")).Once()
	f.Deposit("alice", entities.FundTypeCash, "5")
	result, err := f.Engine.Withdraw(f.Ctx, interfaces.WithdrawRequest{UserID: "alice", Amount: dec("500")})
	f.RequireFailure(entities.ErrCodeInsufficientFunds, result, err)

	cache.AssertExpectations(t)
}

func TestLedgerEngine_RandomOperationsKeepInvariants(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	rng := rand.New(rand.NewSource(42))
	users := []string{"alice", "bob", "carol"}
	for _, u := range users {
		f.Deposit(u, entities.FundTypeCash, "50")
	}

	amount := func() decimal.Decimal {
		return decimal.NewFromInt(int64(rng.Intn(4000) + 1)).Shift(-2)
	}
	pick := func() string { return users[rng.Intn(len(users))] }
	fundType := func() entities.FundType { return entities.AllFundTypes[rng.Intn(len(entities.AllFundTypes))] }

	for i := 0; i < 300; i++ {
		user := pick()
		var (
			result *entities.OperationResult
			err    error
		)
		switch rng.Intn(8) {
		case 0:
			result, err = f.Engine.Deposit(f.Ctx, interfaces.DepositRequest{UserID: user, Amount: amount(), FundType: fundType()})
		case 1:
			result, err = f.Engine.Withdraw(f.Ctx, interfaces.WithdrawRequest{UserID: user, Amount: amount()})
		case 2:
			result, err = f.Engine.Transfer(f.Ctx, interfaces.TransferRequest{FromUserID: user, ToUserID: pick(), Amount: amount(), FundType: fundType()})
		case 3:
			before := f.Funds(user)
			req := interfaces.PlaceBetRequest{UserID: user, Amount: amount(), PlatformID: "sportsbook", BetID: numberedBetID(i)}
			result, err = f.Engine.PlaceBet(f.Ctx, req)
			require.NoError(t, err)
			after := f.Funds(user)
			if result.Success {
				total := decimal.Zero
				for _, a := range result.Allocations {
					total = total.Add(a.Amount)
				}
				assertAmount(t, req.Amount.String(), total, "allocations")
				assertAmount(t, before.TotalBalance.Sub(req.Amount).String(), after.TotalBalance, "bet debit")
			} else {
				assertAmount(t, before.TotalBalance.String(), after.TotalBalance, "failed bet")
			}
		case 4:
			result, err = f.Engine.GrantPromo(f.Ctx, interfaces.GrantPromoRequest{UserID: user, Amount: amount()})
		case 5:
			_, err = f.Engine.LockFunds(f.Ctx, interfaces.FundsLockRequest{UserID: user, FundType: fundType(), Amount: amount()})
		case 6:
			_, err = f.Engine.UnlockFunds(f.Ctx, interfaces.FundsLockRequest{UserID: user, FundType: fundType(), Amount: amount()})
		case 7:
			result, err = f.Engine.RefundBet(f.Ctx, user, numberedBetID(rng.Intn(i+1)), "void")
		}
		require.NoError(t, err)
		if result != nil && !result.Success {
			assert.NotEqual(t, entities.ErrCodeSystemError, result.ErrorCode, result.Error)
		}
	}

	total := decimal.Zero
	for _, u := range users {
		f.AssertConsistent(u)
		total = total.Add(f.Funds(u).TotalBalance)
	}
	assert.True(t, total.GreaterThanOrEqual(decimal.Zero))
}

func numberedBetID(i int) string {
	return fmt.Sprintf("bet-%d", i)
}
