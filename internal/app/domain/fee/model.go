package fee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Breakdown is the platform fee and tax applied to one transaction.
type Breakdown struct {
	Platform decimal.Decimal
	Tax      decimal.Decimal
}

// Total returns the sum of all fee components.
func (b Breakdown) Total() decimal.Decimal {
	return b.Platform.Add(b.Tax)
}

// CommissionTier maps an amount range [Min, Max) to a commission. Tiers for a
// merchant class are contiguous and non-overlapping; exactly one tier matches
// any amount.
type CommissionTier struct {
	ID        string
	Min       decimal.Decimal
	Max       decimal.Decimal
	Percent   decimal.Decimal
	Flat      decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether amount falls in [Min, Max). An amount exactly at a
// boundary belongs to the tier declaring it as lower bound.
func (t CommissionTier) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(t.Min) && amount.LessThan(t.Max)
}

// Commission computes the commission this tier yields for amount: the
// percentage share plus the flat component.
func (t CommissionTier) Commission(amount decimal.Decimal) decimal.Decimal {
	pct := amount.Mul(t.Percent).Div(decimal.NewFromInt(100))
	return pct.Add(t.Flat)
}
