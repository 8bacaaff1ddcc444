package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newPromo(amount string) *PromoFund {
	return &PromoFund{
		ID:              "promo-1",
		UserID:          "alice",
		Amount:          d(amount),
		OriginalAmount:  d(amount),
		RemainingAmount: d(amount),
		GrantedAt:       now,
		Status:          PromoStatusActive,
	}
}

func TestPromoFund_EligibleFor(t *testing.T) {
	t.Parallel()

	minOdds := d("1.8")
	high, low := d("2"), d("1.2")

	tests := []struct {
		name         string
		requirements PromoRequirements
		platform     string
		odds         *decimal.Decimal
		want         bool
	}{
		{name: "no requirements", platform: "sportsbook", want: true},
		{name: "listed platform", requirements: PromoRequirements{EligiblePlatforms: []string{"sportsbook"}}, platform: "sportsbook", want: true},
		{name: "unlisted platform", requirements: PromoRequirements{EligiblePlatforms: []string{"casino"}}, platform: "sportsbook", want: false},
		{name: "odds at least minimum", requirements: PromoRequirements{MinOdds: &minOdds}, platform: "sportsbook", odds: &high, want: true},
		{name: "odds below minimum", requirements: PromoRequirements{MinOdds: &minOdds}, platform: "sportsbook", odds: &low, want: false},
		{name: "odds missing", requirements: PromoRequirements{MinOdds: &minOdds}, platform: "sportsbook", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			promo := newPromo("10")
			promo.Requirements = tt.requirements
			assert.Equal(t, tt.want, promo.EligibleFor(tt.platform, tt.odds))
		})
	}
}

func TestPromoFund_WageringAndConversion(t *testing.T) {
	t.Parallel()

	multiplier := d("10")
	promo := newPromo("20")
	promo.Requirements.WageringMultiplier = &multiplier

	assert.True(t, promo.WageringTarget().Equal(d("200")))
	assert.False(t, promo.RequirementsMet())

	promo.RecordWager(d("150"), now)
	promo.RecordWager(d("50"), now)
	assert.True(t, promo.RequirementsMet())

	promo.RecordWager(d("-500"), now)
	assert.True(t, promo.Requirements.WageredAmount.IsZero())

	maxWinnings := d("15")
	promo.Requirements.MaxWinnings = &maxWinnings
	assert.True(t, promo.ConversionAmount().Equal(d("15")))

	moved := promo.Convert(now)
	assert.True(t, moved.Equal(d("20")))
	assert.Equal(t, PromoStatusConverted, promo.Status)
	assert.True(t, promo.RemainingAmount.IsZero())
}

func TestPromoFund_DrawRestoreExpire(t *testing.T) {
	t.Parallel()

	expiresAt := now.Add(24 * time.Hour)
	promo := newPromo("10")
	promo.ExpiresAt = &expiresAt

	promo.Draw(d("10"), now)
	assert.Equal(t, PromoStatusUsed, promo.Status)
	assert.True(t, promo.Restorable(now))

	promo.Restore(d("4"), now)
	assert.Equal(t, PromoStatusActive, promo.Status)
	assert.True(t, promo.RemainingAmount.Equal(d("4")))

	assert.False(t, promo.IsExpiredAt(now))
	assert.True(t, promo.IsExpiredAt(expiresAt))
	assert.False(t, promo.Restorable(expiresAt))

	forfeited := promo.Expire(expiresAt)
	assert.True(t, forfeited.Equal(d("4")))
	assert.Equal(t, PromoStatusExpired, promo.Status)
	assert.False(t, promo.Restorable(now))
}
