package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/interfaces"
	"fundsledger/domain/utils"
)

const defaultPromoSource = "manual"

// GrantPromo credits promotional funds backed by a new grant record
func (e *LedgerEngine) GrantPromo(ctx context.Context, req interfaces.GrantPromoRequest) (*entities.OperationResult, error) {
	const operation = "grant_promo"

	if err := validateUserID(req.UserID); err != nil {
		return e.failed(operation, err)
	}
	if err := validateAmount(req.Amount); err != nil {
		return e.failed(operation, err)
	}
	if req.ExpiresInDays != nil && *req.ExpiresInDays <= 0 {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed,
			"expiresInDays must be positive, got %d", *req.ExpiresInDays))
	}
	requirements, reqErr := buildRequirements(req.Requirements)
	if reqErr != nil {
		return e.failed(operation, reqErr)
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = defaultPromoSource
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockActiveAccount(req.UserID, true)
		if err != nil {
			return nil, err
		}

		promo := &entities.PromoFund{
			ID:              utils.NewID(),
			UserID:          req.UserID,
			Amount:          req.Amount,
			OriginalAmount:  req.Amount,
			RemainingAmount: req.Amount,
			GrantedAt:       tx.now,
			Source:          source,
			Requirements:    requirements,
			Status:          entities.PromoStatusActive,
			UpdatedAt:       tx.now,
		}
		if req.ExpiresInDays != nil {
			expiresAt := tx.now.Add(time.Duration(*req.ExpiresInDays) * 24 * time.Hour)
			promo.ExpiresAt = &expiresAt
		}
		if err := tx.uow.PromoFundRepository().Create(tx.ctx, promo); err != nil {
			return nil, fmt.Errorf("failed to create promo: %w", err)
		}

		before, after := funds.Credit(entities.FundTypePromo, req.Amount, tx.now)
		if err := tx.save(funds); err != nil {
			return nil, err
		}

		row := tx.newTransaction(req.UserID, entities.TransactionTypePromoGranted, entities.FundTypePromo, req.Amount, before, after)
		row.ReferenceID = promo.ID
		row.Description = fmt.Sprintf("promotional grant from %s", source)
		row.Metadata = entities.PromoMetadata{PromoID: promo.ID, Source: source}
		row.Annotations = copyAnnotations(req.Annotations)
		if err := tx.record(row); err != nil {
			return nil, err
		}

		result := entities.SucceededResult(funds, row)
		result.PromoID = promo.ID
		return result, nil
	})
}

func buildRequirements(input *interfaces.PromoRequirementsInput) (entities.PromoRequirements, *entities.LedgerError) {
	var requirements entities.PromoRequirements
	if input == nil {
		return requirements, nil
	}
	if input.WageringMultiplier != nil && input.WageringMultiplier.IsNegative() {
		return requirements, entities.NewLedgerError(entities.ErrCodeInvalidAmount, "wagering multiplier cannot be negative")
	}
	if input.MinOdds != nil && input.MinOdds.IsNegative() {
		return requirements, entities.NewLedgerError(entities.ErrCodeInvalidAmount, "minimum odds cannot be negative")
	}
	if input.MaxWinnings != nil && !input.MaxWinnings.IsPositive() {
		return requirements, entities.NewLedgerError(entities.ErrCodeInvalidAmount, "max winnings must be positive")
	}
	requirements.WageringMultiplier = input.WageringMultiplier
	requirements.MinOdds = input.MinOdds
	requirements.MaxWinnings = input.MaxWinnings
	if len(input.EligiblePlatforms) > 0 {
		requirements.EligiblePlatforms = append([]string(nil), input.EligiblePlatforms...)
	}
	return requirements, nil
}

// ConvertPromoToCash moves a grant's remaining balance into cash once its
// wagering requirement is met. The cash credit is capped by max winnings.
func (e *LedgerEngine) ConvertPromoToCash(ctx context.Context, userID, promoID string) (*entities.OperationResult, error) {
	const operation = "convert_promo"

	if err := validateUserID(userID); err != nil {
		return e.failed(operation, err)
	}
	if strings.TrimSpace(promoID) == "" {
		return e.failed(operation, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "promo id is required"))
	}

	return e.runInTransaction(ctx, operation, func(tx *ledgerTx) (*entities.OperationResult, error) {
		funds, err := tx.lockActiveAccount(userID, false)
		if err != nil {
			return nil, err
		}

		promoRepo := tx.uow.PromoFundRepository()
		promo, err := promoRepo.GetByID(tx.ctx, promoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get promo %s: %w", promoID, err)
		}
		if promo == nil || promo.UserID != userID {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "promo %s not found for user %s", promoID, userID)
		}
		if promo.Status == entities.PromoStatusExpired || (promo.IsActive() && promo.IsExpiredAt(tx.now)) {
			return nil, entities.NewLedgerError(entities.ErrCodePromoExpired, "promo %s has expired", promoID)
		}
		if !promo.IsActive() {
			return nil, entities.NewLedgerError(entities.ErrCodeOperationNotAllowed, "promo %s is %s", promoID, promo.Status)
		}
		if !promo.RequirementsMet() {
			return nil, entities.NewLedgerError(entities.ErrCodeRequirementsNotMet,
				"wagered %s of the required %s", promo.Requirements.WageredAmount, promo.WageringTarget())
		}

		cashAmount := promo.ConversionAmount()
		promoBefore, promoAfter, err := funds.Debit(entities.FundTypePromo, promo.RemainingAmount, tx.now)
		if err != nil {
			return nil, err
		}
		moved := promo.Convert(tx.now)
		if err := promoRepo.Update(tx.ctx, promo); err != nil {
			return nil, fmt.Errorf("failed to update promo %s: %w", promoID, err)
		}
		cashBefore, cashAfter := funds.Credit(entities.FundTypeCash, cashAmount, tx.now)
		if err := tx.save(funds); err != nil {
			return nil, err
		}

		correlationID := utils.NewCorrelationID()
		metadata := entities.PromoMetadata{PromoID: promo.ID, Source: promo.Source}

		out := tx.newTransaction(userID, entities.TransactionTypePromoConverted, entities.FundTypePromo, moved, promoBefore, promoAfter)
		in := tx.newTransaction(userID, entities.TransactionTypePromoConverted, entities.FundTypeCash, cashAmount, cashBefore, cashAfter)
		for _, row := range []*entities.FundTransaction{out, in} {
			row.CorrelationID = correlationID
			row.ReferenceID = promo.ID
			row.Metadata = metadata
		}
		if err := tx.record(out, in); err != nil {
			return nil, err
		}

		result := entities.SucceededResult(funds, out, in)
		result.PromoID = promo.ID
		return result, nil
	})
}
