package services

import (
	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

// AllocationStrategy splits a bet across fund types in priority order
type AllocationStrategy struct{}

// Allocate draws amount from capacity following priority. Fund types not usable
// for bets are skipped. The capacity map is not modified. If the combined
// capacity cannot cover amount, no allocations are returned.
func (AllocationStrategy) Allocate(capacity map[entities.FundType]decimal.Decimal, amount decimal.Decimal, priority []entities.FundType) ([]entities.Allocation, *entities.LedgerError) {
	if !amount.IsPositive() {
		return nil, entities.NewLedgerError(entities.ErrCodeInvalidAmount, "bet amount must be positive")
	}

	remaining := amount
	seen := make(map[entities.FundType]bool, len(priority))
	var allocations []entities.Allocation

	for _, ft := range priority {
		if remaining.IsZero() {
			break
		}
		if seen[ft] || !entities.RulesFor(ft).UsableForBets {
			continue
		}
		seen[ft] = true

		available := capacity[ft]
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, available)
		allocations = append(allocations, entities.Allocation{FundType: ft, Amount: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, entities.NewLedgerError(entities.ErrCodeInsufficientFunds,
			"insufficient funds for bet: requested %s, available %s", amount, amount.Sub(remaining))
	}
	return allocations, nil
}
