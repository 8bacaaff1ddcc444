package services

import (
	"context"
	"fmt"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// eligiblePromos filters active grants down to those a bet may draw from. The
// input order (soonest expiry first) is preserved.
func eligiblePromos(promos []*entities.PromoFund, platformID string, odds *decimal.Decimal, now time.Time) []*entities.PromoFund {
	eligible := make([]*entities.PromoFund, 0, len(promos))
	for _, promo := range promos {
		if !promo.IsActive() || promo.IsExpiredAt(now) || !promo.RemainingAmount.IsPositive() {
			continue
		}
		if !promo.EligibleFor(platformID, odds) {
			continue
		}
		eligible = append(eligible, promo)
	}
	return eligible
}

func remainingOf(promos []*entities.PromoFund) decimal.Decimal {
	total := decimal.Zero
	for _, promo := range promos {
		total = total.Add(promo.RemainingAmount)
	}
	return total
}

// drawPromos consumes amount from the grants in order. Every grant touched by the
// bet has the full stake added to its wagering progress.
func drawPromos(promos []*entities.PromoFund, amount, stake decimal.Decimal, now time.Time) []entities.PromoDraw {
	remaining := amount
	var draws []entities.PromoDraw
	for _, promo := range promos {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, promo.RemainingAmount)
		if !take.IsPositive() {
			continue
		}
		promo.Draw(take, now)
		promo.RecordWager(stake, now)
		draws = append(draws, entities.PromoDraw{PromoID: promo.ID, Amount: take})
		remaining = remaining.Sub(take)
	}
	return draws
}

// ExpirePromos forfeits active grants whose expiry has passed. Each grant is
// expired in its own unit of work so one failure does not block the batch.
// Returns the number of grants expired.
func (e *LedgerEngine) ExpirePromos(ctx context.Context, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	candidates, err := e.listExpiredPromos(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		result, err := e.expirePromo(ctx, candidate.UserID, candidate.ID, now)
		if err != nil {
			log.WithFields(log.Fields{
				"promoID": candidate.ID,
				"userID":  candidate.UserID,
				"error":   err,
			}).Error("Failed to expire promo")
			continue
		}
		if result.Success {
			expired++
		}
	}

	if expired > 0 {
		e.opts.Metrics.RecordPromosExpired(expired)
	}
	log.WithFields(log.Fields{
		"candidates": len(candidates),
		"expired":    expired,
	}).Info("Completed promo expiry pass")

	return expired, nil
}

func (e *LedgerEngine) listExpiredPromos(ctx context.Context, now time.Time, limit int) ([]*entities.PromoFund, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	promos, err := uow.PromoFundRepository().ListExpired(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired promos: %w", err)
	}
	return promos, nil
}

func (e *LedgerEngine) expirePromo(ctx context.Context, userID, promoID string, now time.Time) (*entities.OperationResult, error) {
	return e.runInTransaction(ctx, "expire_promo", func(tx *ledgerTx) (*entities.OperationResult, error) {
		// user row first, then the grant, same order as every other operation
		funds, err := tx.lockAccount(userID, false)
		if err != nil {
			return nil, err
		}

		promo, err := tx.uow.PromoFundRepository().GetByID(tx.ctx, promoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get promo %s: %w", promoID, err)
		}
		if promo == nil || !promo.IsActive() || !promo.IsExpiredAt(now) {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "promo %s is no longer expirable", promoID)
		}

		forfeited := promo.Expire(tx.now)
		if err := tx.uow.PromoFundRepository().Update(tx.ctx, promo); err != nil {
			return nil, fmt.Errorf("failed to update promo %s: %w", promoID, err)
		}

		var rows []*entities.FundTransaction
		if forfeited.IsPositive() {
			before, after := funds.Forfeit(entities.FundTypePromo, forfeited, tx.now)
			row := tx.newTransaction(userID, entities.TransactionTypePromoExpired, entities.FundTypePromo, forfeited, before, after)
			row.ReferenceID = promo.ID
			row.Description = "promotional funds expired"
			row.Metadata = entities.PromoMetadata{PromoID: promo.ID, Source: promo.Source}
			rows = append(rows, row)
		}
		if err := tx.save(funds); err != nil {
			return nil, err
		}
		if err := tx.record(rows...); err != nil {
			return nil, err
		}

		if err := tx.uow.EventBus().Publish(events.PromoExpiredEvent{
			UserID:          userID,
			PromoID:         promo.ID,
			ForfeitedAmount: forfeited,
		}); err != nil {
			log.WithError(err).Error("Failed to publish promo expired event")
		}

		return entities.SucceededResult(funds, rows...), nil
	})
}
