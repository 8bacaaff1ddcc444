package services

import (
	"context"
	"sort"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/utils"

	log "github.com/sirupsen/logrus"
)

// Deposit credits cash or sendable funds from an external payment method
func (e *LedgerEngine) Deposit(ctx context.Context, req interfaces.DepositRequest) (*entities.OperationResult, error) {
	const operation = "deposit"

	if err := validateUserID(req.UserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateAmount(req.Amount); err != nil {
		return e.failed(operation, err)
	}
	if !entities.IsDepositable(req.FundType) {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeInvalidFundType,
			"deposits must target cash or sendable funds, got %q", req.FundType))
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockActiveAccount(req.UserID, true)
		if err != nil {
			return nil, err
		}

		before, after := funds.Credit(req.FundType, req.Amount, tx.now)
		if err := tx.save(funds); err != nil {
			return nil, err
		}

		deposit := tx.newTransaction(req.UserID, entities.TransactionTypeDeposit, req.FundType, req.Amount, before, after)
		deposit.Description = req.Description
		deposit.Metadata = entities.DepositMetadata{PaymentMethodRef: req.PaymentMethodRef}
		deposit.Annotations = copyAnnotations(req.Annotations)
		if err := tx.record(deposit); err != nil {
			return nil, err
		}

		return entities.SucceededResult(funds, deposit), nil
	})
}

// Withdraw debits cash immediately and leaves the withdrawal pending until the
// payment rail settles it.
func (e *LedgerEngine) Withdraw(ctx context.Context, req interfaces.WithdrawRequest) (*entities.OperationResult, error) {
	const operation = "withdraw"

	if err := validateUserID(req.UserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateAmount(req.Amount); err != nil {
		return e.failed(operation, err)
	}
	if limit := e.opts.MaxWithdrawalAmount; limit.IsPositive() && req.Amount.GreaterThan(limit) {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeWithdrawalLimitExceeded,
			"withdrawal of %s exceeds the limit of %s", req.Amount, limit))
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockActiveAccount(req.UserID, false)
		if err != nil {
			return nil, err
		}

		before, after, err := funds.Debit(entities.FundTypeCash, req.Amount, tx.now)
		if err != nil {
			return nil, err
		}
		if err := tx.save(funds); err != nil {
			return nil, err
		}

		withdrawal := tx.newTransaction(req.UserID, entities.TransactionTypeWithdrawal, entities.FundTypeCash, req.Amount, before, after)
		withdrawal.Status = entities.TransactionStatusPending
		withdrawal.CompletedAt = nil
		withdrawal.Description = req.Description
		withdrawal.Metadata = entities.WithdrawalMetadata{WithdrawalMethodRef: req.WithdrawalMethodRef}
		withdrawal.Annotations = copyAnnotations(req.Annotations)
		if err := tx.record(withdrawal); err != nil {
			return nil, err
		}

		if err := tx.uow.EventBus().Publish(events.WithdrawalRequestedEvent{
			UserID:              req.UserID,
			TransactionID:       withdrawal.ID,
			Amount:              req.Amount,
			WithdrawalMethodRef: req.WithdrawalMethodRef,
		}); err != nil {
			log.WithError(err).Error("Failed to publish withdrawal requested event")
		}

		return entities.SucceededResult(funds, withdrawal), nil
	})
}

// Transfer moves cash or sendable funds between two users. Both accounts are
// locked in ascending user id order so opposing transfers cannot deadlock.
func (e *LedgerEngine) Transfer(ctx context.Context, req interfaces.TransferRequest) (*entities.OperationResult, error) {
	const operation = "transfer"

	if err := validateUserID(req.FromUserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateUserID(req.ToUserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateAmount(req.Amount); err != nil {
		return e.failed(operation, err)
	}
	if !req.FundType.Valid() {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeInvalidFundType,
			"unknown fund type %q", req.FundType))
	}
	if !entities.RulesFor(req.FundType).Transferable {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
			"%s funds cannot be transferred", req.FundType))
	}
	if req.FromUserID == req.ToUserID {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
			"cannot transfer funds to the same account"))
	}
	if limit := e.opts.MaxTransferAmount; limit.IsPositive() && req.Amount.GreaterThan(limit) {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeTransferLimitExceeded,
			"transfer of %s exceeds the limit of %s", req.Amount, limit))
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		ordered := []string{req.FromUserID, req.ToUserID}
		sort.Strings(ordered)

		accounts := make(map[string]*entities.UserFunds, 2)
		for _, userID := range ordered {
			funds, err := tx.lockActiveAccount(userID, false)
			if err != nil {
				return nil, err
			}
			accounts[userID] = funds
		}
		sender := accounts[req.FromUserID]
		recipient := accounts[req.ToUserID]

		senderBefore, senderAfter, err := sender.Debit(req.FundType, req.Amount, tx.now)
		if err != nil {
			return nil, err
		}
		recipientBefore, recipientAfter := recipient.Credit(req.FundType, req.Amount, tx.now)

		for _, userID := range ordered {
			if err := tx.save(accounts[userID]); err != nil {
				return nil, err
			}
		}

		correlationID := utils.NewCorrelationID()
		metadata := entities.TransferMetadata{FromUserID: req.FromUserID, ToUserID: req.ToUserID}

		out := tx.newTransaction(req.FromUserID, entities.TransactionTypeTransferOut, req.FundType, req.Amount, senderBefore, senderAfter)
		in := tx.newTransaction(req.ToUserID, entities.TransactionTypeTransferIn, req.FundType, req.Amount, recipientBefore, recipientAfter)
		for _, row := range []*entities.FundTransaction{out, in} {
			row.Description = req.Description
			row.CorrelationID = correlationID
			row.Metadata = metadata
			row.Annotations = copyAnnotations(req.Annotations)
		}
		if err := tx.record(out, in); err != nil {
			return nil, err
		}

		return entities.SucceededResult(sender, out, in), nil
	})
}

// LockFunds reserves available funds without debiting them
func (e *LedgerEngine) LockFunds(ctx context.Context, req interfaces.FundsLockRequest) (bool, error) {
	return e.changeLock(ctx, "lock_funds", req, true)
}

// UnlockFunds releases a reservation. Releasing more than is locked clamps at zero.
func (e *LedgerEngine) UnlockFunds(ctx context.Context, req interfaces.FundsLockRequest) (bool, error) {
	return e.changeLock(ctx, "unlock_funds", req, false)
}

func (e *LedgerEngine) changeLock(ctx context.Context, operation string, req interfaces.FundsLockRequest, lock bool) (bool, error) {
	if validateUserID(req.UserID) != nil || validateAmount(req.Amount) != nil || !req.FundType.Valid() {
		e.opts.Metrics.RecordOperation(operation, entities.ErrCodeInvalidAmount, 0)
		return false, nil
	}

	result, err := e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		load := tx.lockAccount
		if lock {
			load = tx.lockActiveAccount
		}
		funds, err := load(req.UserID, false)
		if err != nil {
			return nil, err
		}
		if lock {
			if err := funds.Lock(req.FundType, req.Amount, tx.now); err != nil {
				return nil, err
			}
		} else {
			funds.Unlock(req.FundType, req.Amount, tx.now)
		}
		if err := tx.save(funds); err != nil {
			return nil, err
		}
		return entities.SucceededResult(funds), nil
	})
	if err != nil {
		return false, err
	}
	return result.Success, nil
}
