package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/fee"
	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage/memory"
	"github.com/terangapay/ledger-engine/internal/config"
)

func testConfig(values map[string]string) *config.Config {
	cfg := &config.Config{}
	cfg.Values = values
	return cfg
}

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}

func TestResolveFeeTransferPercentWithTax(t *testing.T) {
	r := New(testConfig(map[string]string{
		config.KeyTransferPercent: "2",
		config.KeyTaxPercent:      "18",
	}))

	b := r.ResolveFee(journal.TypeTransfer, dec(t, "1000"))
	if !b.Platform.Equal(dec(t, "20")) {
		t.Fatalf("platform fee = %s, want 20", b.Platform)
	}
	// tax applies to the fee, not the amount
	if !b.Tax.Equal(dec(t, "3.6")) {
		t.Fatalf("tax = %s, want 3.6", b.Tax)
	}
	if !b.Total().Equal(dec(t, "23.6")) {
		t.Fatalf("total = %s, want 23.6", b.Total())
	}
}

func TestResolveFeeCardTransactionPercentPlusFlat(t *testing.T) {
	r := New(testConfig(map[string]string{
		config.KeyCardTransactionPercent: "1.5",
		config.KeyCardTransactionFlat:    "25",
	}))

	b := r.ResolveFee(journal.TypePayment, dec(t, "2000"))
	if !b.Platform.Equal(dec(t, "55")) {
		t.Fatalf("platform fee = %s, want 55", b.Platform)
	}
	if !b.Tax.IsZero() {
		t.Fatalf("tax = %s, want 0 when unconfigured", b.Tax)
	}
}

func TestResolveFeeMissingKeysMeanNoFee(t *testing.T) {
	r := New(testConfig(map[string]string{}))

	b := r.ResolveFee(journal.TypeTransfer, dec(t, "500"))
	if !b.Platform.IsZero() || !b.Tax.IsZero() {
		t.Fatalf("breakdown = %+v, want zero", b)
	}
}

func TestResolveFeeTontineFlat(t *testing.T) {
	r := New(testConfig(map[string]string{config.KeyTontineFee: "50"}))

	b := r.ResolveFee(journal.TypeTontinePayment, dec(t, "1000"))
	if !b.Platform.Equal(dec(t, "50")) {
		t.Fatalf("platform fee = %s, want 50", b.Platform)
	}
}

func TestDistributionFeeMandatory(t *testing.T) {
	r := New(testConfig(map[string]string{}))
	if _, err := r.DistributionFee(dec(t, "5000")); !errors.Is(err, ledgererr.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}

	r = New(testConfig(map[string]string{config.KeyDistributionPercent: "1"}))
	got, err := r.DistributionFee(dec(t, "5000"))
	if err != nil {
		t.Fatalf("DistributionFee: %v", err)
	}
	if !got.Equal(dec(t, "50")) {
		t.Fatalf("fee = %s, want 50", got)
	}
}

func tier(t *testing.T, min, max, percent, flat string) fee.CommissionTier {
	t.Helper()
	return fee.CommissionTier{
		Min: dec(t, min), Max: dec(t, max), Percent: dec(t, percent), Flat: dec(t, flat),
	}
}

func TestSelectTierBoundaryBelongsToLowerBound(t *testing.T) {
	tiers := []fee.CommissionTier{
		tier(t, "0", "1000", "1", "0"),
		tier(t, "1000", "5000", "2", "0"),
	}

	got, err := SelectTier(tiers, dec(t, "1000"))
	if err != nil {
		t.Fatalf("SelectTier: %v", err)
	}
	if !got.Min.Equal(dec(t, "1000")) {
		t.Fatalf("selected tier min = %s, want 1000", got.Min)
	}
}

func TestSelectTierNoMatch(t *testing.T) {
	tiers := []fee.CommissionTier{tier(t, "0", "1000", "1", "0")}
	if _, err := SelectTier(tiers, dec(t, "1000")); !errors.Is(err, ledgererr.ErrTierMismatch) {
		t.Fatalf("err = %v, want ErrTierMismatch", err)
	}
}

func TestSelectTierOverlappingTiers(t *testing.T) {
	tiers := []fee.CommissionTier{
		tier(t, "0", "2000", "1", "0"),
		tier(t, "1000", "5000", "2", "0"),
	}
	if _, err := SelectTier(tiers, dec(t, "1500")); !errors.Is(err, ledgererr.ErrTierMismatch) {
		t.Fatalf("err = %v, want ErrTierMismatch", err)
	}
}

func TestResolveCommission(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.CreateTier(ctx, tier(t, "0", "1000", "0", "10")); err != nil {
		t.Fatalf("CreateTier: %v", err)
	}
	if _, err := store.CreateTier(ctx, tier(t, "1000", "10000", "2", "5")); err != nil {
		t.Fatalf("CreateTier: %v", err)
	}

	r := New(testConfig(nil))
	got, err := r.ResolveCommission(ctx, store, dec(t, "3000"))
	if err != nil {
		t.Fatalf("ResolveCommission: %v", err)
	}
	// 2% of 3000 plus flat 5
	if !got.Equal(dec(t, "65")) {
		t.Fatalf("commission = %s, want 65", got)
	}
}
