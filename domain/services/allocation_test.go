package services

import (
	"testing"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocationStrategy_Allocate(t *testing.T) {
	t.Parallel()

	capacity := map[entities.FundType]decimal.Decimal{
		entities.FundTypePromo:    dec("20"),
		entities.FundTypeSendable: dec("10"),
		entities.FundTypeCash:     dec("100"),
	}

	tests := []struct {
		name     string
		amount   string
		priority []entities.FundType
		want     []entities.Allocation
		wantCode entities.ErrorCode
	}{
		{
			name:     "waterfall across all types",
			amount:   "40",
			priority: entities.DefaultBetPriority,
			want: []entities.Allocation{
				{FundType: entities.FundTypePromo, Amount: dec("20")},
				{FundType: entities.FundTypeSendable, Amount: dec("10")},
				{FundType: entities.FundTypeCash, Amount: dec("10")},
			},
		},
		{
			name:     "first type covers everything",
			amount:   "15",
			priority: []entities.FundType{entities.FundTypeCash, entities.FundTypePromo},
			want: []entities.Allocation{
				{FundType: entities.FundTypeCash, Amount: dec("15")},
			},
		},
		{
			name:     "duplicates in priority are ignored",
			amount:   "25",
			priority: []entities.FundType{entities.FundTypeSendable, entities.FundTypeSendable, entities.FundTypePromo},
			want: []entities.Allocation{
				{FundType: entities.FundTypeSendable, Amount: dec("10")},
				{FundType: entities.FundTypePromo, Amount: dec("15")},
			},
		},
		{
			name:     "fractional amounts",
			amount:   "20.75",
			priority: []entities.FundType{entities.FundTypeSendable, entities.FundTypeCash},
			want: []entities.Allocation{
				{FundType: entities.FundTypeSendable, Amount: dec("10")},
				{FundType: entities.FundTypeCash, Amount: dec("10.75")},
			},
		},
		{
			name:     "more than total capacity",
			amount:   "1000",
			priority: entities.DefaultBetPriority,
			wantCode: entities.ErrCodeInsufficientFunds,
		},
		{
			name:     "types outside the priority are not drawn",
			amount:   "35",
			priority: []entities.FundType{entities.FundTypePromo, entities.FundTypeSendable},
			wantCode: entities.ErrCodeInsufficientFunds,
		},
		{
			name:     "unknown types are skipped",
			amount:   "5",
			priority: []entities.FundType{"bitcoin"},
			wantCode: entities.ErrCodeInsufficientFunds,
		},
		{
			name:     "zero amount",
			amount:   "0",
			priority: entities.DefaultBetPriority,
			wantCode: entities.ErrCodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			allocations, err := AllocationStrategy{}.Allocate(capacity, dec(tt.amount), tt.priority)
			if tt.wantCode != "" {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantCode, err.Code)
				assert.Empty(t, allocations)
				return
			}

			require.Nil(t, err)
			require.Len(t, allocations, len(tt.want))
			total := decimal.Zero
			for i, want := range tt.want {
				assert.Equal(t, want.FundType, allocations[i].FundType)
				assertAmount(t, want.Amount.String(), allocations[i].Amount)
				total = total.Add(allocations[i].Amount)
			}
			assertAmount(t, tt.amount, total, "sum of allocations")
		})
	}

	// capacity is read only
	assertAmount(t, "20", capacity[entities.FundTypePromo])
}
