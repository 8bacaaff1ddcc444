package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromoStatus is the lifecycle state of a promotional grant
type PromoStatus string

const (
	PromoStatusActive    PromoStatus = "active"
	PromoStatusExpired   PromoStatus = "expired"
	PromoStatusConverted PromoStatus = "converted"
	PromoStatusUsed      PromoStatus = "used"
)

// PromoRequirements are the conditions attached to a grant. Nil pointers mean
// the condition does not apply.
type PromoRequirements struct {
	WageringMultiplier *decimal.Decimal `json:"wagering_multiplier,omitempty"`
	WageredAmount      decimal.Decimal  `json:"wagered_amount"`
	MinOdds            *decimal.Decimal `json:"min_odds,omitempty"`
	EligiblePlatforms  []string         `json:"eligible_platforms,omitempty"`
	MaxWinnings        *decimal.Decimal `json:"max_winnings,omitempty"`
}

// PromoFund is a single promotional grant and its remaining balance
type PromoFund struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Amount          decimal.Decimal   `json:"amount"`
	OriginalAmount  decimal.Decimal   `json:"original_amount"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	GrantedAt       time.Time         `json:"granted_at"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	Source          string            `json:"source"`
	Requirements    PromoRequirements `json:"requirements"`
	Status          PromoStatus       `json:"status"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsActive reports whether the grant can still be spent or converted
func (p *PromoFund) IsActive() bool {
	return p.Status == PromoStatusActive
}

// IsExpiredAt reports whether the grant's expiry has passed at now
func (p *PromoFund) IsExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// EligibleFor reports whether a bet on platformID at the given odds may draw from this grant.
// A grant with a minimum odds requirement never matches a bet that states no odds.
func (p *PromoFund) EligibleFor(platformID string, odds *decimal.Decimal) bool {
	if len(p.Requirements.EligiblePlatforms) > 0 {
		found := false
		for _, platform := range p.Requirements.EligiblePlatforms {
			if platform == platformID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.Requirements.MinOdds != nil {
		if odds == nil || odds.LessThan(*p.Requirements.MinOdds) {
			return false
		}
	}
	return true
}

// WageringTarget returns the bet volume needed before conversion
func (p *PromoFund) WageringTarget() decimal.Decimal {
	if p.Requirements.WageringMultiplier == nil {
		return decimal.Zero
	}
	return p.OriginalAmount.Mul(*p.Requirements.WageringMultiplier)
}

// RequirementsMet reports whether the wagering requirement is satisfied
func (p *PromoFund) RequirementsMet() bool {
	return p.Requirements.WageredAmount.GreaterThanOrEqual(p.WageringTarget())
}

// ConversionAmount is the cash credited when the remaining balance converts
func (p *PromoFund) ConversionAmount() decimal.Decimal {
	if p.Requirements.MaxWinnings != nil && p.RemainingAmount.GreaterThan(*p.Requirements.MaxWinnings) {
		return *p.Requirements.MaxWinnings
	}
	return p.RemainingAmount
}

// Draw consumes amount from the remaining balance, marking the grant used once empty
func (p *PromoFund) Draw(amount decimal.Decimal, now time.Time) {
	p.RemainingAmount = decimal.Max(p.RemainingAmount.Sub(amount), decimal.Zero)
	if p.RemainingAmount.IsZero() {
		p.Status = PromoStatusUsed
	}
	p.UpdatedAt = now
}

// Restore puts refunded funds back into a grant, reactivating it if it had been used up
func (p *PromoFund) Restore(amount decimal.Decimal, now time.Time) {
	p.RemainingAmount = p.RemainingAmount.Add(amount)
	if p.Status == PromoStatusUsed && p.RemainingAmount.IsPositive() {
		p.Status = PromoStatusActive
	}
	p.UpdatedAt = now
}

// RecordWager adds stake to the wagering progress. Negative stakes (refunds) clamp at zero.
func (p *PromoFund) RecordWager(stake decimal.Decimal, now time.Time) {
	p.Requirements.WageredAmount = decimal.Max(p.Requirements.WageredAmount.Add(stake), decimal.Zero)
	p.UpdatedAt = now
}

// Expire forfeits the remaining balance and returns the forfeited amount
func (p *PromoFund) Expire(now time.Time) decimal.Decimal {
	forfeited := p.RemainingAmount
	p.RemainingAmount = decimal.Zero
	p.Status = PromoStatusExpired
	p.UpdatedAt = now
	return forfeited
}

// Convert closes the grant after its balance moved to cash and returns the amount moved out of promo
func (p *PromoFund) Convert(now time.Time) decimal.Decimal {
	moved := p.RemainingAmount
	p.RemainingAmount = decimal.Zero
	p.Status = PromoStatusConverted
	p.UpdatedAt = now
	return moved
}

// Restorable reports whether a refund may return funds to this grant at now
func (p *PromoFund) Restorable(now time.Time) bool {
	return (p.Status == PromoStatusActive || p.Status == PromoStatusUsed) && !p.IsExpiredAt(now)
}
