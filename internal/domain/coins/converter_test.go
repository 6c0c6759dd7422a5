package coins

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newConverter() *Converter {
	return NewConverter(decimal.NewFromInt(100), map[string]decimal.Decimal{
		"usd": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("1.08"),
	})
}

func TestCredit(t *testing.T) {
	c := newConverter()

	credit, err := c.Credit(decimal.NewFromInt(50), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), credit)

	credit, err = c.Credit(decimal.RequireFromString("10.005"), "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), credit)

	credit, err = c.Credit(decimal.NewFromInt(10), "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(1080), credit)
}

func TestReserveRoundsUp(t *testing.T) {
	c := newConverter()

	coins, err := c.Reserve(decimal.RequireFromString("10.001"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), coins)
}

func TestUnsupportedCurrency(t *testing.T) {
	c := newConverter()

	assert.False(t, c.Supports("JPY"))
	_, err := c.Credit(decimal.NewFromInt(1), "JPY")
	assert.Error(t, err)
}

func TestTotal(t *testing.T) {
	c := newConverter()

	total, err := c.Total(map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(10),
		"EUR": decimal.NewFromInt(19),
	})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("30.52")), total.String())

	total, err = c.Total(nil)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = c.Total(map[string]decimal.Decimal{"JPY": decimal.NewFromInt(1000)})
	assert.Error(t, err)
}
