package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_EnvelopePreservesConcreteType(t *testing.T) {
	t.Parallel()

	original := BetMetadata{
		PlatformID:     "sportsbook",
		BetID:          "bet-1",
		TotalBetAmount: d("40"),
		PromoDraws:     []PromoDraw{{PromoID: "promo-1", Amount: d("20")}},
	}

	raw, err := MarshalMetadata(original)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"bet"`)

	decoded, err := UnmarshalMetadata(raw)
	require.NoError(t, err)
	bet, ok := decoded.(BetMetadata)
	require.True(t, ok)
	assert.Equal(t, "bet-1", bet.BetID)
	require.Len(t, bet.PromoDraws, 1)
	assert.True(t, bet.PromoDraws[0].Amount.Equal(d("20")))
}

func TestMetadata_EmptyAndUnknown(t *testing.T) {
	t.Parallel()

	raw, err := MarshalMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	decoded, err := UnmarshalMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	decoded, err = UnmarshalMetadata([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = UnmarshalMetadata([]byte(`{"kind":"lottery","data":{}}`))
	assert.Error(t, err)
}

func TestParseFundType(t *testing.T) {
	t.Parallel()

	ft, err := ParseFundType(" Cash ")
	require.NoError(t, err)
	assert.Equal(t, FundTypeCash, ft)

	_, err = ParseFundType("gold")
	assert.Error(t, err)

	assert.True(t, RulesFor(FundTypeCash).Withdrawable)
	assert.False(t, RulesFor(FundTypeSendable).Withdrawable)
	assert.False(t, RulesFor(FundTypePromo).Transferable)
	assert.False(t, RulesFor("gold").UsableForBets)
}
