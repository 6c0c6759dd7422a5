// Package bonus computes deposit bonuses from the VIP tier table.
package bonus

import (
	"fmt"
	"github.com/shopspring/decimal"
	"sort"
	"strings"
)

// Tier is one VIP level: users whose cumulative completed deposits reach MinSpend
// get Multiplier applied to the base bonus.
type Tier struct {
	Name       string
	MinSpend   decimal.Decimal
	Multiplier decimal.Decimal
}

// ParseTiers reads "name:minSpend:multiplier" entries separated by commas.
func ParseTiers(value string) ([]Tier, error) {
	tiers := make([]Tier, 0)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid vip tier %q", entry)
		}
		minSpend, err := decimal.NewFromString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid vip tier %q: %w", entry, err)
		}
		multiplier, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid vip tier %q: %w", entry, err)
		}
		if minSpend.IsNegative() || multiplier.IsNegative() {
			return nil, fmt.Errorf("invalid vip tier %q: negative value", entry)
		}
		tiers = append(tiers, Tier{Name: strings.ToLower(parts[0]), MinSpend: minSpend, Multiplier: multiplier})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no vip tiers configured")
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinSpend.LessThan(tiers[j].MinSpend)
	})
	return tiers, nil
}

type Calculator struct {
	baseRate decimal.Decimal
	tiers    []Tier
}

// NewCalculator returns a calculator paying baseRate coins per currency unit before the tier multiplier.
func NewCalculator(baseRate decimal.Decimal, tiers []Tier) *Calculator {
	return &Calculator{baseRate: baseRate, tiers: tiers}
}

// TierFor returns the highest tier whose threshold cumulative reaches.
func (c *Calculator) TierFor(cumulative decimal.Decimal) Tier {
	tier := c.tiers[0]
	for _, t := range c.tiers {
		if cumulative.GreaterThanOrEqual(t.MinSpend) {
			tier = t
		}
	}
	return tier
}

// Tier looks a tier up by name.
func (c *Calculator) Tier(name string) (Tier, bool) {
	for _, t := range c.tiers {
		if t.Name == strings.ToLower(name) {
			return t, true
		}
	}
	return Tier{}, false
}

// Calculate returns the bonus coins for a deposit of amount currency units, floored.
func (c *Calculator) Calculate(amount decimal.Decimal, tierName string) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	tier, ok := c.Tier(tierName)
	if !ok {
		return 0, fmt.Errorf("unknown vip tier %q", tierName)
	}
	return amount.Mul(c.baseRate).Mul(tier.Multiplier).Floor().IntPart(), nil
}
