// Package coins converts provider currency amounts into wallet coins.
package coins

import (
	"fmt"
	"github.com/shopspring/decimal"
	"strings"
)

type Converter struct {
	coinsPerUnit decimal.Decimal
	rates        map[string]decimal.Decimal
}

// NewConverter takes the coins paid per reference unit and the reference price of each currency.
func NewConverter(coinsPerUnit decimal.Decimal, rates map[string]decimal.Decimal) *Converter {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		normalized[strings.ToUpper(k)] = v
	}
	return &Converter{coinsPerUnit: coinsPerUnit, rates: normalized}
}

func (c *Converter) Supports(currency string) bool {
	_, ok := c.rates[strings.ToUpper(currency)]
	return ok
}

// Units converts amount into reference units.
func (c *Converter) Units(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	rate, ok := c.rates[strings.ToUpper(currency)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for currency %q", currency)
	}
	return amount.Mul(rate), nil
}

// Total converts amounts keyed by currency into one reference unit total.
func (c *Converter) Total(amounts map[string]decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for currency, amount := range amounts {
		units, err := c.Units(amount, currency)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(units)
	}
	return total, nil
}

// Credit is the coin amount credited for a deposit, rounded down.
func (c *Converter) Credit(amount decimal.Decimal, currency string) (int64, error) {
	units, err := c.Units(amount, currency)
	if err != nil {
		return 0, err
	}
	return units.Mul(c.coinsPerUnit).Floor().IntPart(), nil
}

// Reserve is the coin amount reserved for a withdrawal, rounded up.
func (c *Converter) Reserve(amount decimal.Decimal, currency string) (int64, error) {
	units, err := c.Units(amount, currency)
	if err != nil {
		return 0, err
	}
	return units.Mul(c.coinsPerUnit).Ceil().IntPart(), nil
}
