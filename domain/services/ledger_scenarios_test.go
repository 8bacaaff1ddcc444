package services

import (
	"testing"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_DepositToFreshUser(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)

	result := f.Deposit("alice", entities.FundTypeCash, "100")

	cash := result.NewBalances[entities.FundTypeCash]
	assertAmount(t, "100", cash.Amount)
	assertAmount(t, "100", cash.Available)
	assertAmount(t, "0", cash.Locked)

	funds := f.Funds("alice")
	assertAmount(t, "100", funds.TotalBalance)
	assertAmount(t, "100", funds.TotalAvailable)

	txs := f.Transactions("alice")
	require.Len(t, txs, 1)
	assert.Equal(t, result.TransactionID, txs[0].ID)
	assert.Equal(t, entities.TransactionTypeDeposit, txs[0].Type)
	assert.Equal(t, entities.TransactionStatusCompleted, txs[0].Status)
	assert.Equal(t, entities.DepositMetadata{PaymentMethodRef: "card-4242"}, txs[0].Metadata)
	f.AssertConsistent("alice")
}

func TestScenario_WithdrawLeavesPendingTransaction(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Deposit("alice", entities.FundTypeCash, "100")
	f.Events.Reset()

	result := f.RequireSuccess(f.Engine.Withdraw(f.Ctx, interfaces.WithdrawRequest{
		UserID:              "alice",
		Amount:              dec("50"),
		WithdrawalMethodRef: "iban-de89",
	}))

	assertAmount(t, "50", result.NewBalances[entities.FundTypeCash].Amount)

	tx, err := f.Log.GetTransaction(f.Ctx, result.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, entities.TransactionStatusPending, tx.Status)
	assert.Nil(t, tx.CompletedAt)

	requested := f.Events.OfType(events.EventTypeWithdrawalRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, result.TransactionID, requested[0].(events.WithdrawalRequestedEvent).TransactionID)
	f.AssertConsistent("alice")
}

func TestScenario_TransferSendable(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Deposit("alice", entities.FundTypeSendable, "50")
	f.RequireSuccess(f.Engine.OpenAccount(f.Ctx, "bob"))

	result := f.RequireSuccess(f.Engine.Transfer(f.Ctx, interfaces.TransferRequest{
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     dec("30"),
		FundType:   entities.FundTypeSendable,
	}))

	f.AssertBalance("alice", entities.FundTypeSendable, "20", "20", "0")
	f.AssertBalance("bob", entities.FundTypeSendable, "30", "30", "0")
	require.Len(t, result.TransactionIDs, 2)

	out := f.Transactions("alice")[0]
	in := f.Transactions("bob")[0]
	assert.Equal(t, entities.TransactionTypeTransferOut, out.Type)
	assert.Equal(t, entities.TransactionTypeTransferIn, in.Type)
	assert.NotEmpty(t, out.CorrelationID)
	assert.Equal(t, out.CorrelationID, in.CorrelationID)
	assert.Equal(t, entities.TransferMetadata{FromUserID: "alice", ToUserID: "bob"}, in.Metadata)

	f.AssertConsistent("alice")
	f.AssertConsistent("bob")
}

func TestScenario_BetWaterfall(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Grant("alice", "20", nil, nil)
	f.Deposit("alice", entities.FundTypeSendable, "10")
	f.Deposit("alice", entities.FundTypeCash, "100")

	result := f.RequireSuccess(f.Engine.PlaceBet(f.Ctx, interfaces.PlaceBetRequest{
		UserID:       "alice",
		Amount:       dec("40"),
		PlatformID:   "sportsbook",
		BetID:        "bet-1",
		FundPriority: []entities.FundType{entities.FundTypePromo, entities.FundTypeSendable, entities.FundTypeCash},
	}))

	require.Len(t, result.Allocations, 3)
	assert.Equal(t, entities.FundTypePromo, result.Allocations[0].FundType)
	assertAmount(t, "20", result.Allocations[0].Amount)
	assert.Equal(t, entities.FundTypeSendable, result.Allocations[1].FundType)
	assertAmount(t, "10", result.Allocations[1].Amount)
	assert.Equal(t, entities.FundTypeCash, result.Allocations[2].FundType)
	assertAmount(t, "10", result.Allocations[2].Amount)
	require.Len(t, result.TransactionIDs, 3)

	f.AssertBalance("alice", entities.FundTypePromo, "0", "0", "0")
	f.AssertBalance("alice", entities.FundTypeSendable, "0", "0", "0")
	f.AssertBalance("alice", entities.FundTypeCash, "90", "90", "0")

	var betRows []*entities.FundTransaction
	for _, tx := range f.Transactions("alice") {
		if tx.Type == entities.TransactionTypeBetPlaced {
			betRows = append(betRows, tx)
		}
	}
	require.Len(t, betRows, 3)
	for _, row := range betRows {
		assert.Equal(t, result.CorrelationID, row.CorrelationID)
		meta, ok := row.Metadata.(entities.BetMetadata)
		require.True(t, ok)
		assert.Equal(t, "bet-1", meta.BetID)
		assertAmount(t, "40", meta.TotalBetAmount)
	}
	f.AssertConsistent("alice")
}

func TestScenario_BetBeyondAvailableChangesNothing(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Grant("alice", "20", nil, nil)
	f.Deposit("alice", entities.FundTypeSendable, "10")
	f.Deposit("alice", entities.FundTypeCash, "10")
	before := f.Funds("alice")
	txCount := len(f.Transactions("alice"))

	result, err := f.Engine.PlaceBet(f.Ctx, interfaces.PlaceBetRequest{
		UserID:     "alice",
		Amount:     dec("1000"),
		PlatformID: "sportsbook",
		BetID:      "bet-big",
	})
	f.RequireFailure(entities.ErrCodeInsufficientFunds, result, err)

	after := f.Funds("alice")
	for _, ft := range entities.AllFundTypes {
		assertAmount(t, before.Balance(ft).Amount.String(), after.Balance(ft).Amount, string(ft))
	}
	assert.Len(t, f.Transactions("alice"), txCount)

	promos, err := f.Log.ListPromoFunds(f.Ctx, "alice")
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assertAmount(t, "20", promos[0].RemainingAmount)
	assertAmount(t, "0", promos[0].Requirements.WageredAmount)
}

func TestScenario_ConvertPromoToCash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		wagered  string
		wantCode entities.ErrorCode
	}{
		{name: "wagering met", wagered: "150"},
		{name: "wagering not met", wagered: "50", wantCode: entities.ErrCodeRequirementsNotMet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := NewLedgerTestFixture(t)

			grant := f.Grant("alice", "20", nil, &interfaces.PromoRequirementsInput{WageringMultiplier: decPtr("10")})
			f.SetPromo(grant.PromoID, func(p *entities.PromoFund) {
				p.Requirements.WageredAmount = dec(tt.wagered)
			})
			before := f.Funds("alice")

			result, err := f.Engine.ConvertPromoToCash(f.Ctx, "alice", grant.PromoID)

			promo := f.Promo(grant.PromoID)
			if tt.wantCode != "" {
				f.RequireFailure(tt.wantCode, result, err)
				assert.Equal(t, entities.PromoStatusActive, promo.Status)
				assertAmount(t, "20", promo.RemainingAmount)
				after := f.Funds("alice")
				assertAmount(t, before.TotalBalance.String(), after.TotalBalance)
				assertAmount(t, "20", after.Balance(entities.FundTypePromo).Amount)
				return
			}

			f.RequireSuccess(result, err)
			assert.Equal(t, entities.PromoStatusConverted, promo.Status)
			assertAmount(t, "0", promo.RemainingAmount)
			f.AssertBalance("alice", entities.FundTypeCash, "20", "20", "0")
			f.AssertBalance("alice", entities.FundTypePromo, "0", "0", "0")
			assert.Len(t, result.TransactionIDs, 2)
			f.AssertConsistent("alice")
		})
	}
}
