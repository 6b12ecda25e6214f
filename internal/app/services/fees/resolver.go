// Package fees resolves platform fees and merchant commissions. Resolution
// is pure: the same inputs always produce the same breakdown.
package fees

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/fee"
	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/internal/config"
)

var hundred = decimal.NewFromInt(100)

// Values exposes the named configuration the resolver consults. Missing
// optional keys mean "no fee".
type Values interface {
	Decimal(key string) (decimal.Decimal, bool)
	MandatoryDecimal(key string) (decimal.Decimal, error)
}

// Resolver computes fee breakdowns from configured rates and selects
// commission tiers for merchant-intermediated flows.
type Resolver struct {
	values Values
}

// New constructs a resolver over the given configuration values.
func New(values Values) *Resolver {
	return &Resolver{values: values}
}

// ResolveFee maps a transaction type and amount to its platform fee and tax.
// The platform fee is the configured percentage of the amount plus the
// configured flat component; tax is the configured tax percentage applied to
// the platform fee.
func (r *Resolver) ResolveFee(entryType journal.EntryType, amount decimal.Decimal) fee.Breakdown {
	var platform decimal.Decimal

	switch entryType {
	case journal.TypePayment, journal.TypeViewCardDetails:
		if pct, ok := r.values.Decimal(config.KeyCardTransactionPercent); ok {
			platform = platform.Add(amount.Mul(pct).Div(hundred))
		}
		if flat, ok := r.values.Decimal(config.KeyCardTransactionFlat); ok {
			platform = platform.Add(flat)
		}
	case journal.TypeTransfer, journal.TypeWalletToWallet,
		journal.TypeSharedPayment, journal.TypeFundRequestPayment:
		if pct, ok := r.values.Decimal(config.KeyTransferPercent); ok {
			platform = platform.Add(amount.Mul(pct).Div(hundred))
		}
	case journal.TypeTontinePayment:
		if flat, ok := r.values.Decimal(config.KeyTontineFee); ok {
			platform = platform.Add(flat)
		}
	}

	var tax decimal.Decimal
	if pct, ok := r.values.Decimal(config.KeyTaxPercent); ok && platform.IsPositive() {
		tax = platform.Mul(pct).Div(hundred)
	}
	return fee.Breakdown{Platform: platform, Tax: tax}
}

// DistributionFee returns the payout fee for a pooled amount. The
// distribution percentage is mandatory configuration for the payout flow.
func (r *Resolver) DistributionFee(pooled decimal.Decimal) (decimal.Decimal, error) {
	pct, err := r.values.MandatoryDecimal(config.KeyDistributionPercent)
	if err != nil {
		return decimal.Zero, err
	}
	return pooled.Mul(pct).Div(hundred), nil
}

// PenaltyAmount returns the configured late-penalty amount. Mandatory for
// the penalty sweep.
func (r *Resolver) PenaltyAmount() (decimal.Decimal, error) {
	return r.values.MandatoryDecimal(config.KeyPenaltyLateAmount)
}

// SelectTier picks the unique tier whose [Min, Max) range contains amount.
// Zero or multiple matches mean the tier table is corrupt: the error is
// fatal, never retried, and must be operator-corrected.
func SelectTier(tiers []fee.CommissionTier, amount decimal.Decimal) (fee.CommissionTier, error) {
	var (
		found fee.CommissionTier
		hits  int
	)
	for _, t := range tiers {
		if t.Contains(amount) {
			found = t
			hits++
		}
	}
	if hits != 1 {
		return fee.CommissionTier{}, fmt.Errorf("amount %s matched %d tiers: %w",
			amount.String(), hits, ledgererr.ErrTierMismatch)
	}
	return found, nil
}

// ResolveCommission selects the tier for a merchant amount from the given
// store and computes the commission it yields.
func (r *Resolver) ResolveCommission(ctx context.Context, tiers storage.TierStore, amount decimal.Decimal) (decimal.Decimal, error) {
	all, err := tiers.ListTiers(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load commission tiers: %w", err)
	}
	tier, err := SelectTier(all, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return tier.Commission(amount), nil
}
