package testutil

import (
	"time"

	"fundsledger/domain/entities"
	"fundsledger/domain/utils"

	"github.com/shopspring/decimal"
)

// CreateTestFunds creates an empty active funds record
func CreateTestFunds(userID string) *entities.UserFunds {
	return entities.NewUserFunds(userID, time.Now().UTC().Truncate(time.Microsecond))
}

// CreateTestTransaction creates a completed credit row that moves a balance from before by amount
func CreateTestTransaction(userID string, txType entities.TransactionType, ft entities.FundType, amount, before string) *entities.FundTransaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	amt := decimal.RequireFromString(amount)
	start := decimal.RequireFromString(before)
	return &entities.FundTransaction{
		ID:            utils.NewID(),
		UserID:        userID,
		Type:          txType,
		FundType:      ft,
		Direction:     entities.DirectionCredit,
		Amount:        amt,
		BalanceBefore: start,
		BalanceAfter:  start.Add(amt),
		Status:        entities.TransactionStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
		CompletedAt:   &now,
	}
}

// CreateTestPromo creates an active grant that expires after ttl. A zero ttl never expires.
func CreateTestPromo(userID, amount string, ttl time.Duration) *entities.PromoFund {
	now := time.Now().UTC().Truncate(time.Microsecond)
	amt := decimal.RequireFromString(amount)
	promo := &entities.PromoFund{
		ID:              utils.NewID(),
		UserID:          userID,
		Amount:          amt,
		OriginalAmount:  amt,
		RemainingAmount: amt,
		GrantedAt:       now,
		Source:          "test",
		Status:          entities.PromoStatusActive,
		UpdatedAt:       now,
	}
	if ttl != 0 {
		expires := now.Add(ttl)
		promo.ExpiresAt = &expires
	}
	return promo
}
