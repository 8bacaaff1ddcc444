package services

import (
	"context"
	"fmt"
	"strings"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/utils"

	"github.com/shopspring/decimal"
)

// PlaceBet stakes amount across fund types following the priority waterfall.
// Capacity is computed before anything is debited, so an insufficient balance
// leaves every fund untouched.
func (e *LedgerEngine) PlaceBet(ctx context.Context, req interfaces.PlaceBetRequest) (*entities.OperationResult, error) {
	const operation = "place_bet"

	if err := validateUserID(req.UserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateAmount(req.Amount); err != nil {
		return e.failed(operation, err)
	}
	if strings.TrimSpace(req.PlatformID) == "" || strings.TrimSpace(req.BetID) == "" {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
			"platform id and bet id are required"))
	}

	priority := req.FundPriority
	if len(priority) == 0 {
		priority = entities.DefaultBetPriority
	}
	for _, ft := range priority {
		if !ft.Valid() {
			return e.failed(operation, entities.NewLedgerError(entities.ErrCodeInvalidFundType,
				"unknown fund type %q in bet priority", ft))
		}
	}

	result, err := e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockActiveAccount(req.UserID, false)
		if err != nil {
			return nil, err
		}

		existing, err := tx.uow.FundTransactionRepository().FindByReference(tx.ctx, req.UserID, entities.TransactionTypeBetPlaced, req.BetID)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate bet: %w", err)
		}
		if len(existing) > 0 {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet %s has already been placed", req.BetID)
		}

		active, err := tx.uow.PromoFundRepository().ListActiveByUser(tx.ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to list promos for user %s: %w", req.UserID, err)
		}
		promos := eligiblePromos(active, req.PlatformID, req.Odds, tx.now)

		capacity := make(map[entities.FundType]decimal.Decimal, len(entities.AllFundTypes))
		for _, ft := range entities.AllFundTypes {
			capacity[ft] = funds.Balance(ft).Available
		}
		capacity[entities.FundTypePromo] = decimal.Min(capacity[entities.FundTypePromo], remainingOf(promos))

		allocations, allocErr := e.allocator.Allocate(capacity, req.Amount, priority)
		if allocErr != nil {
			return nil, allocErr
		}

		correlationID := utils.NewCorrelationID()
		rows := make([]*entities.FundTransaction, 0, len(allocations))
		for _, allocation := range allocations {
			before, after, err := funds.Debit(allocation.FundType, allocation.Amount, tx.now)
			if err != nil {
				return nil, err
			}

			metadata := entities.BetMetadata{
				PlatformID:     req.PlatformID,
				BetID:          req.BetID,
				TotalBetAmount: req.Amount,
			}
			if allocation.FundType == entities.FundTypePromo {
				metadata.PromoDraws = drawPromos(promos, allocation.Amount, req.Amount, tx.now)
				for _, draw := range metadata.PromoDraws {
					if err := updatePromoByID(tx, promos, draw.PromoID); err != nil {
						return nil, err
					}
				}
			}

			row := tx.newTransaction(req.UserID, entities.TransactionTypeBetPlaced, allocation.FundType, allocation.Amount, before, after)
			row.CorrelationID = correlationID
			row.ReferenceID = req.BetID
			row.Metadata = metadata
			row.Annotations = copyAnnotations(req.Annotations)
			rows = append(rows, row)
		}

		if err := tx.save(funds); err != nil {
			return nil, err
		}
		if err := tx.record(rows...); err != nil {
			return nil, err
		}

		result := entities.SucceededResult(funds, rows...)
		result.Allocations = allocations
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	for _, allocation := range result.Allocations {
		e.opts.Metrics.RecordAllocation(allocation.FundType, allocation.Amount)
	}
	return result, nil
}

func updatePromoByID(tx *ledgerTx, promos []*entities.PromoFund, promoID string) error {
	for _, promo := range promos {
		if promo.ID == promoID {
			if err := tx.uow.PromoFundRepository().Update(tx.ctx, promo); err != nil {
				return fmt.Errorf("failed to update promo %s: %w", promoID, err)
			}
			return nil
		}
	}
	return fmt.Errorf("promo %s not among drawn grants", promoID)
}

// CreditBetWinnings pays out a settled bet into cash
func (e *LedgerEngine) CreditBetWinnings(ctx context.Context, req interfaces.BetWinningsRequest) (*entities.OperationResult, error) {
	const operation = "credit_bet_winnings"

	if err := validateUserID(req.UserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateAmount(req.Amount); err != nil {
		return e.failed(operation, err)
	}
	if strings.TrimSpace(req.BetID) == "" {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet id is required"))
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockActiveAccount(req.UserID, false)
		if err != nil {
			return nil, err
		}

		txRepo := tx.uow.FundTransactionRepository()
		placed, err := txRepo.FindByReference(tx.ctx, req.UserID, entities.TransactionTypeBetPlaced, req.BetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bet %s: %w", req.BetID, err)
		}
		if len(placed) == 0 {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet %s was never placed", req.BetID)
		}
		if settled, err := betSettled(tx, req.UserID, req.BetID); err != nil {
			return nil, err
		} else if settled {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet %s is already settled", req.BetID)
		}

		platformID := req.PlatformID
		var stake decimal.Decimal
		if meta, ok := placed[0].Metadata.(entities.BetMetadata); ok {
			stake = meta.TotalBetAmount
			if platformID == "" {
				platformID = meta.PlatformID
			}
		}

		before, after := funds.Credit(entities.FundTypeCash, req.Amount, tx.now)
		if err := tx.save(funds); err != nil {
			return nil, err
		}

		row := tx.newTransaction(req.UserID, entities.TransactionTypeBetWon, entities.FundTypeCash, req.Amount, before, after)
		row.CorrelationID = placed[0].CorrelationID
		row.ReferenceID = req.BetID
		row.Metadata = entities.BetMetadata{PlatformID: platformID, BetID: req.BetID, TotalBetAmount: stake}
		if err := tx.record(row); err != nil {
			return nil, err
		}

		return entities.SucceededResult(funds, row), nil
	})
}

// RefundBet returns the stake of a voided bet to the fund types it was drawn
// from. Promo portions only return to grants that are still spendable; the
// rest is forfeited.
func (e *LedgerEngine) RefundBet(ctx context.Context, userID, betID, reason string) (*entities.OperationResult, error) {
	const operation = "refund_bet"

	if err := validateUserID(userID); err != nil {
		return e.failed(operation, err)
	}
	if strings.TrimSpace(betID) == "" {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet id is required"))
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockAccount(userID, false)
		if err != nil {
			return nil, err
		}

		placed, err := tx.uow.FundTransactionRepository().FindByReference(tx.ctx, userID, entities.TransactionTypeBetPlaced, betID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bet %s: %w", betID, err)
		}
		if len(placed) == 0 {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet %s was never placed", betID)
		}
		if settled, err := betSettled(tx, userID, betID); err != nil {
			return nil, err
		} else if settled {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "bet %s is already settled", betID)
		}

		correlationID := utils.NewCorrelationID()
		var rows []*entities.FundTransaction
		for _, bet := range placed {
			if bet.Status != entities.TransactionStatusCompleted {
				continue
			}
			meta, _ := bet.Metadata.(entities.BetMetadata)

			amount := bet.Amount
			if bet.FundType == entities.FundTypePromo {
				amount, err = restorePromoDraws(tx, meta)
				if err != nil {
					return nil, err
				}
			}
			if !amount.IsPositive() {
				continue
			}

			before, after := funds.Credit(bet.FundType, amount, tx.now)
			row := tx.newTransaction(userID, entities.TransactionTypeRefund, bet.FundType, amount, before, after)
			row.CorrelationID = correlationID
			row.ReferenceID = betID
			row.Description = reason
			row.Metadata = meta
			rows = append(rows, row)
		}

		if len(rows) == 0 {
			// nothing left to return: every grant the bet drew from has lapsed
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
				"bet %s was funded entirely by promotions that are no longer active", betID)
		}

		if err := tx.save(funds); err != nil {
			return nil, err
		}
		if err := tx.record(rows...); err != nil {
			return nil, err
		}
		return entities.SucceededResult(funds, rows...), nil
	})
}

// restorePromoDraws puts refunded promo stake back into the grants it came from
// and returns how much was restored.
func restorePromoDraws(tx *ledgerTx, meta entities.BetMetadata) (decimal.Decimal, error) {
	restored := decimal.Zero
	repo := tx.uow.PromoFundRepository()
	for _, draw := range meta.PromoDraws {
		promo, err := repo.GetByID(tx.ctx, draw.PromoID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to get promo %s: %w", draw.PromoID, err)
		}
		if promo == nil || !promo.Restorable(tx.now) {
			continue
		}
		promo.Restore(draw.Amount, tx.now)
		promo.RecordWager(meta.TotalBetAmount.Neg(), tx.now)
		if err := repo.Update(tx.ctx, promo); err != nil {
			return decimal.Zero, fmt.Errorf("failed to update promo %s: %w", promo.ID, err)
		}
		restored = restored.Add(draw.Amount)
	}
	return restored, nil
}

// betSettled reports whether a bet has already been paid out or refunded
func betSettled(tx *ledgerTx, userID, betID string) (bool, error) {
	repo := tx.uow.FundTransactionRepository()
	for _, txType := range []entities.TransactionType{entities.TransactionTypeBetWon, entities.TransactionTypeRefund} {
		rows, err := repo.FindByReference(tx.ctx, userID, txType, betID)
		if err != nil {
			return false, fmt.Errorf("failed to check settlement of bet %s: %w", betID, err)
		}
		if len(rows) > 0 {
			return true, nil
		}
	}
	return false, nil
}
