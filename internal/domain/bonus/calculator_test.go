package bonus

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

const defaultTiers = "bronze:0:1,silver:100:1.5,gold:500:2,platinum:2000:3"

func newCalculator(t *testing.T) *Calculator {
	tiers, err := ParseTiers(defaultTiers)
	require.NoError(t, err)
	return NewCalculator(decimal.NewFromInt(10), tiers)
}

func TestCalculate(t *testing.T) {
	c := newCalculator(t)

	tests := []struct {
		name   string
		amount string
		tier   string
		want   int64
	}{
		{"base tier", "50", "bronze", 500},
		{"double tier", "50", "gold", 1000},
		{"fractional multiplier", "50", "silver", 750},
		{"floors fractions", "0.15", "silver", 2},
		{"zero amount", "0", "platinum", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Calculate(decimal.RequireFromString(tt.amount), tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateUnknownTier(t *testing.T) {
	c := newCalculator(t)
	_, err := c.Calculate(decimal.NewFromInt(50), "diamond")
	assert.Error(t, err)
}

func TestTierFor(t *testing.T) {
	c := newCalculator(t)

	assert.Equal(t, "bronze", c.TierFor(decimal.Zero).Name)
	assert.Equal(t, "bronze", c.TierFor(decimal.RequireFromString("99.99")).Name)
	assert.Equal(t, "silver", c.TierFor(decimal.NewFromInt(100)).Name)
	assert.Equal(t, "gold", c.TierFor(decimal.NewFromInt(1999)).Name)
	assert.Equal(t, "platinum", c.TierFor(decimal.NewFromInt(5000)).Name)
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers("gold:500:2, bronze:0:1")
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "bronze", tiers[0].Name)

	for _, bad := range []string{"", "gold:500", "gold:x:2", "gold:500:y", "gold:-1:2"} {
		_, err = ParseTiers(bad)
		assert.Error(t, err, bad)
	}
}
