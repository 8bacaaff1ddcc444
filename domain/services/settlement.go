package services

import (
	"context"
	"fmt"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// MarkWithdrawalProcessing records that the payment rail has picked up a withdrawal
func (e *LedgerEngine) MarkWithdrawalProcessing(ctx context.Context, transactionID string) (*entities.OperationResult, error) {
	return e.settleWithdrawal(ctx, "withdrawal_processing", transactionID, entities.TransactionStatusProcessing, "")
}

// CompleteWithdrawal records a successful payout. The funds already left at request time.
func (e *LedgerEngine) CompleteWithdrawal(ctx context.Context, transactionID string) (*entities.OperationResult, error) {
	return e.settleWithdrawal(ctx, "withdrawal_complete", transactionID, entities.TransactionStatusCompleted, "")
}

// FailWithdrawal records a rejected payout and returns the funds to cash
func (e *LedgerEngine) FailWithdrawal(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error) {
	return e.settleWithdrawal(ctx, "withdrawal_fail", transactionID, entities.TransactionStatusFailed, reason)
}

// CancelWithdrawal cancels a payout that has not completed and returns the funds to cash
func (e *LedgerEngine) CancelWithdrawal(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error) {
	return e.settleWithdrawal(ctx, "withdrawal_cancel", transactionID, entities.TransactionStatusCancelled, reason)
}

func (e *LedgerEngine) settleWithdrawal(ctx context.Context, operation, transactionID string, next entities.TransactionStatus, reason string) (*entities.OperationResult, error) {
	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		original, funds, err := tx.lockTransaction(transactionID)
		if err != nil {
			return nil, err
		}
		if original.Type != entities.TransactionTypeWithdrawal {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
				"transaction %s is a %s, not a withdrawal", transactionID, original.Type)
		}
		if err := tx.transition(original, next, reason); err != nil {
			return nil, err
		}

		var rows []*entities.FundTransaction
		if next == entities.TransactionStatusFailed || next == entities.TransactionStatusCancelled {
			before, after := funds.Credit(original.FundType, original.Amount, tx.now)
			if err := tx.save(funds); err != nil {
				return nil, err
			}
			refund := tx.newTransaction(original.UserID, entities.TransactionTypeRefund, original.FundType, original.Amount, before, after)
			refund.ReferenceID = original.ID
			refund.CorrelationID = original.ID
			refund.Description = fmt.Sprintf("withdrawal %s", next)
			refund.Metadata = entities.ReversalMetadata{OriginalTransactionID: original.ID, Reason: reason}
			rows = append(rows, refund)
			if err := tx.record(rows...); err != nil {
				return nil, err
			}
		}

		result := entities.SucceededResult(funds, rows...)
		if len(rows) == 0 {
			result.TransactionID = original.ID
			result.TransactionIDs = []string{original.ID}
		}
		return result, nil
	})
}

// ReverseTransaction undoes a completed standalone cash or sendable transaction
// with a new Reversal row and marks the original reversed. Rows that belong to a
// transfer or a bet stake are refused.
func (e *LedgerEngine) ReverseTransaction(ctx context.Context, transactionID, reason string) (*entities.OperationResult, error) {
	return e.runInTransaction(ctx, "reverse_transaction", func(tx *ledgerTx) (*entities.OperationResult, error) {
		original, funds, err := tx.lockTransaction(transactionID)
		if err != nil {
			return nil, err
		}
		switch {
		case original.Type == entities.TransactionTypeReversal:
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "a reversal cannot itself be reversed")
		case original.FundType == entities.FundTypePromo:
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
				"promotional transactions are settled through refunds or expiry, not reversal")
		case original.Type == entities.TransactionTypeBetPlaced:
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
				"bet stakes are returned with RefundBet, not reversal")
		case !original.Type.Reversible():
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
				"%s transactions cannot be reversed on their own", original.Type)
		}
		if err := tx.transition(original, entities.TransactionStatusReversed, reason); err != nil {
			return nil, err
		}

		var before, after decimal.Decimal
		if original.Direction == entities.DirectionCredit {
			before, after, err = funds.Debit(original.FundType, original.Amount, tx.now)
			if err != nil {
				return nil, err
			}
		} else {
			before, after = funds.Credit(original.FundType, original.Amount, tx.now)
		}
		if err := tx.save(funds); err != nil {
			return nil, err
		}

		reversal := tx.newTransaction(original.UserID, entities.TransactionTypeReversal, original.FundType, original.Amount, before, after)
		reversal.ReferenceID = original.ID
		reversal.CorrelationID = original.CorrelationID
		reversal.Description = reason
		reversal.Metadata = entities.ReversalMetadata{OriginalTransactionID: original.ID, Reason: reason}
		if err := tx.record(reversal); err != nil {
			return nil, err
		}

		return entities.SucceededResult(funds, reversal), nil
	})
}

// lockTransaction finds a transaction, locks its owner's funds and re-reads the
// transaction under that lock.
func (t *ledgerTx) lockTransaction(transactionID string) (*entities.FundTransaction, *entities.UserFunds, error) {
	repo := t.uow.FundTransactionRepository()

	record, err := repo.GetByID(t.ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
	}
	if record == nil {
		return nil, nil, entities.NewLedgerError(entities.ErrCodeTransactionFailed, "transaction %s not found", transactionID)
	}

	funds, err := t.lockAccount(record.UserID, false)
	if err != nil {
		return nil, nil, err
	}

	record, err = repo.GetByID(t.ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get transaction %s: %w", transactionID, err)
	}
	if record == nil {
		return nil, nil, fmt.Errorf("transaction %s disappeared while locking its account", transactionID)
	}
	return record, funds, nil
}

func (t *ledgerTx) transition(record *entities.FundTransaction, next entities.TransactionStatus, reason string) error {
	if !record.Status.CanTransition(next) {
		return entities.NewLedgerError(entities.ErrCodeTransactionFailed,
			"transaction %s cannot move from %s to %s", record.ID, record.Status, next)
	}

	failureReason := ""
	if next == entities.TransactionStatusFailed || next == entities.TransactionStatusCancelled {
		failureReason = reason
	}
	if err := t.uow.FundTransactionRepository().UpdateStatus(t.ctx, record.ID, next, failureReason, t.now); err != nil {
		return fmt.Errorf("failed to update status of transaction %s: %w", record.ID, err)
	}

	old := record.Status
	record.Status = next
	if err := t.uow.EventBus().Publish(events.TransactionStatusChangedEvent{
		UserID:        record.UserID,
		TransactionID: record.ID,
		OldStatus:     old,
		NewStatus:     next,
		Reason:        reason,
	}); err != nil {
		log.WithError(err).Error("Failed to publish transaction status changed event")
	}
	return nil
}
