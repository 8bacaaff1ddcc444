package services

import (
	"testing"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestWithdrawal(f *LedgerTestFixture, amount string) string {
	f.T.Helper()
	result := f.RequireSuccess(f.Engine.Withdraw(f.Ctx, interfaces.WithdrawRequest{
		UserID:              "alice",
		Amount:              dec(amount),
		WithdrawalMethodRef: "iban-de89",
	}))
	return result.TransactionID
}

func transactionStatus(f *LedgerTestFixture, id string) entities.TransactionStatus {
	f.T.Helper()
	tx, err := f.Log.GetTransaction(f.Ctx, id)
	require.NoError(f.T, err)
	require.NotNil(f.T, tx)
	return tx.Status
}

func TestWithdrawalSettlement_Complete(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Deposit("alice", entities.FundTypeCash, "100")
	id := requestWithdrawal(f, "60")
	f.Events.Reset()

	f.RequireSuccess(f.Engine.MarkWithdrawalProcessing(f.Ctx, id))
	assert.Equal(t, entities.TransactionStatusProcessing, transactionStatus(f, id))

	result := f.RequireSuccess(f.Engine.CompleteWithdrawal(f.Ctx, id))
	assert.Equal(t, id, result.TransactionID)
	assert.Equal(t, entities.TransactionStatusCompleted, transactionStatus(f, id))

	tx, err := f.Log.GetTransaction(f.Ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tx.CompletedAt)

	// funds left at request time; settlement moves nothing
	f.AssertBalance("alice", entities.FundTypeCash, "40", "40", "0")

	changes := f.Events.OfType(events.EventTypeTransactionStatusChanged)
	require.Len(t, changes, 2)
	last := changes[1].(events.TransactionStatusChangedEvent)
	assert.Equal(t, entities.TransactionStatusProcessing, last.OldStatus)
	assert.Equal(t, entities.TransactionStatusCompleted, last.NewStatus)

	result, err = f.Engine.CancelWithdrawal(f.Ctx, id, "too late")
	f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
	f.AssertConsistent("alice")
}

func TestWithdrawalSettlement_FailOrCancelRefunds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		settle     func(f *LedgerTestFixture, id string) (*entities.OperationResult, error)
		processing bool
		wantStatus entities.TransactionStatus
	}{
		{
			name: "rail rejects pending withdrawal",
			settle: func(f *LedgerTestFixture, id string) (*entities.OperationResult, error) {
				return f.Engine.FailWithdrawal(f.Ctx, id, "account closed")
			},
			wantStatus: entities.TransactionStatusFailed,
		},
		{
			name: "rail rejects processing withdrawal",
			settle: func(f *LedgerTestFixture, id string) (*entities.OperationResult, error) {
				return f.Engine.FailWithdrawal(f.Ctx, id, "account closed")
			},
			processing: true,
			wantStatus: entities.TransactionStatusFailed,
		},
		{
			name: "user cancels",
			settle: func(f *LedgerTestFixture, id string) (*entities.OperationResult, error) {
				return f.Engine.CancelWithdrawal(f.Ctx, id, "changed mind")
			},
			wantStatus: entities.TransactionStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := NewLedgerTestFixture(t)
			f.Deposit("alice", entities.FundTypeCash, "100")
			id := requestWithdrawal(f, "60")
			if tt.processing {
				f.RequireSuccess(f.Engine.MarkWithdrawalProcessing(f.Ctx, id))
			}

			result := f.RequireSuccess(tt.settle(f, id))
			require.Len(t, result.TransactionIDs, 1)

			assert.Equal(t, tt.wantStatus, transactionStatus(f, id))
			f.AssertBalance("alice", entities.FundTypeCash, "100", "100", "0")

			original, err := f.Log.GetTransaction(f.Ctx, id)
			require.NoError(t, err)
			assert.NotEmpty(t, original.FailureReason)

			refund, err := f.Log.GetTransaction(f.Ctx, result.TransactionID)
			require.NoError(t, err)
			assert.Equal(t, entities.TransactionTypeRefund, refund.Type)
			assert.Equal(t, id, refund.ReferenceID)
			assert.Equal(t, entities.ReversalMetadata{OriginalTransactionID: id, Reason: original.FailureReason}, refund.Metadata)

			// terminal states accept nothing further
			result, err = f.Engine.CompleteWithdrawal(f.Ctx, id)
			f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
			result, err = tt.settle(f, id)
			f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
			f.AssertBalance("alice", entities.FundTypeCash, "100", "100", "0")
			f.AssertConsistent("alice")
		})
	}
}

func TestWithdrawalSettlement_Errors(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	deposit := f.Deposit("alice", entities.FundTypeCash, "100")

	result, err := f.Engine.CompleteWithdrawal(f.Ctx, "missing")
	f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
	result, err = f.Engine.CompleteWithdrawal(f.Ctx, deposit.TransactionID)
	f.RequireFailure(entities.ErrCodeOperationNotAllowed, result, err)
	assert.Equal(t, entities.TransactionStatusCompleted, transactionStatus(f, deposit.TransactionID))
}

func TestReverseTransaction(t *testing.T) {
	t.Parallel()

	t.Run("deposit", func(t *testing.T) {
		t.Parallel()
		f := NewLedgerTestFixture(t)
		deposit := f.Deposit("alice", entities.FundTypeCash, "100")

		result := f.RequireSuccess(f.Engine.ReverseTransaction(f.Ctx, deposit.TransactionID, "chargeback"))

		f.AssertBalance("alice", entities.FundTypeCash, "0", "0", "0")
		assert.Equal(t, entities.TransactionStatusReversed, transactionStatus(f, deposit.TransactionID))

		reversal, err := f.Log.GetTransaction(f.Ctx, result.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, entities.TransactionTypeReversal, reversal.Type)
		assert.Equal(t, entities.DirectionDebit, reversal.Direction)
		assert.Equal(t, deposit.TransactionID, reversal.ReferenceID)

		result, err = f.Engine.ReverseTransaction(f.Ctx, deposit.TransactionID, "again")
		f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
		result, err = f.Engine.ReverseTransaction(f.Ctx, reversal.ID, "reverse the reversal")
		f.RequireFailure(entities.ErrCodeOperationNotAllowed, result, err)
		f.AssertConsistent("alice")
	})

	t.Run("completed withdrawal", func(t *testing.T) {
		t.Parallel()
		f := NewLedgerTestFixture(t)
		f.Deposit("alice", entities.FundTypeCash, "100")
		id := requestWithdrawal(f, "30")
		f.RequireSuccess(f.Engine.CompleteWithdrawal(f.Ctx, id))

		result := f.RequireSuccess(f.Engine.ReverseTransaction(f.Ctx, id, "payout bounced"))

		f.AssertBalance("alice", entities.FundTypeCash, "100", "100", "0")
		reversal, err := f.Log.GetTransaction(f.Ctx, result.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, entities.DirectionCredit, reversal.Direction)
		f.AssertConsistent("alice")
	})

	t.Run("pending withdrawal cannot be reversed", func(t *testing.T) {
		t.Parallel()
		f := NewLedgerTestFixture(t)
		f.Deposit("alice", entities.FundTypeCash, "100")
		id := requestWithdrawal(f, "30")

		result, err := f.Engine.ReverseTransaction(f.Ctx, id, "not settled")
		f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
	})

	t.Run("spent deposit", func(t *testing.T) {
		t.Parallel()
		f := NewLedgerTestFixture(t)
		deposit := f.Deposit("alice", entities.FundTypeCash, "100")
		requestWithdrawal(f, "80")

		result, err := f.Engine.ReverseTransaction(f.Ctx, deposit.TransactionID, "chargeback")
		f.RequireFailure(entities.ErrCodeInsufficientFunds, result, err)
		assert.Equal(t, entities.TransactionStatusCompleted, transactionStatus(f, deposit.TransactionID))
		f.AssertBalance("alice", entities.FundTypeCash, "20", "20", "0")
	})

	t.Run("promo rows", func(t *testing.T) {
		t.Parallel()
		f := NewLedgerTestFixture(t)
		grant := f.Grant("alice", "10", nil, nil)

		result, err := f.Engine.ReverseTransaction(f.Ctx, grant.TransactionID, "oops")
		f.RequireFailure(entities.ErrCodeOperationNotAllowed, result, err)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		t.Parallel()
		f := NewLedgerTestFixture(t)

		result, err := f.Engine.ReverseTransaction(f.Ctx, "missing", "oops")
		f.RequireFailure(entities.ErrCodeTransactionFailed, result, err)
	})
}

func TestReverseTransaction_TransferLegsConserveFunds(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Deposit("alice", entities.FundTypeCash, "50")
	f.RequireSuccess(f.Engine.OpenAccount(f.Ctx, "bob"))
	transfer := f.RequireSuccess(f.Engine.Transfer(f.Ctx, interfaces.TransferRequest{
		FromUserID: "alice",
		ToUserID:   "bob",
		Amount:     dec("30"),
		FundType:   entities.FundTypeCash,
	}))
	require.Len(t, transfer.TransactionIDs, 2)

	total := func() string {
		return f.Funds("alice").TotalBalance.Add(f.Funds("bob").TotalBalance).String()
	}
	require.Equal(t, "50", total())

	for _, id := range transfer.TransactionIDs {
		result, err := f.Engine.ReverseTransaction(f.Ctx, id, "disputed")
		f.RequireFailure(entities.ErrCodeOperationNotAllowed, result, err)
		assert.Equal(t, entities.TransactionStatusCompleted, transactionStatus(f, id))
	}

	assert.Equal(t, "50", total())
	f.AssertBalance("alice", entities.FundTypeCash, "20", "20", "0")
	f.AssertBalance("bob", entities.FundTypeCash, "30", "30", "0")
	f.AssertConsistent("alice")
	f.AssertConsistent("bob")
}

func TestReverseTransaction_BetStakeGoesThroughRefund(t *testing.T) {
	t.Parallel()
	f := NewLedgerTestFixture(t)
	f.Deposit("alice", entities.FundTypeCash, "100")
	placed := f.RequireSuccess(placeBet(f, "bet-1", "40", entities.FundTypeCash))
	require.Len(t, placed.TransactionIDs, 1)

	result, err := f.Engine.ReverseTransaction(f.Ctx, placed.TransactionID, "chargeback")
	f.RequireFailure(entities.ErrCodeOperationNotAllowed, result, err)
	f.AssertBalance("alice", entities.FundTypeCash, "60", "60", "0")

	f.RequireSuccess(f.Engine.RefundBet(f.Ctx, "alice", "bet-1", "void"))
	f.AssertBalance("alice", entities.FundTypeCash, "100", "100", "0")

	// the stake comes back exactly once
	result, err = f.Engine.RefundBet(f.Ctx, "alice", "bet-1", "void again")
	f.RequireFailure(entities.ErrCodeOperationNotAllowed, result, err)
	f.AssertBalance("alice", entities.FundTypeCash, "100", "100", "0")
	f.AssertConsistent("alice")
}
