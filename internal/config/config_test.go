package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  rate_limit: 25
database:
  dsn: "postgres://localhost/ledger"
  lock_timeout: 5s
scheduler:
  penalty_sweep: "0 0 * * * *"
values:
  fees.transfer_percent: "2"
  cards.free_first_card: "true"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.RateLimit != 25 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Database.DSN != "postgres://localhost/ledger" || cfg.Database.LockTimeout != 5*time.Second {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Scheduler.PenaltySweep != "0 0 * * * *" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if !cfg.Bool(KeyFreeFirstCard) {
		t.Fatalf("free first card flag not set")
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Database.MaxOpenConns != 20 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Scheduler.PenaltySweep != "0 */15 * * * *" || cfg.Scheduler.MaturityCheck != "0 */5 * * * *" {
		t.Fatalf("scheduler defaults = %+v", cfg.Scheduler)
	}
	if cfg.Values == nil {
		t.Fatalf("values map not initialized")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("LEDGER_ADDR", ":7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("addr = %s, want env override", cfg.Server.Addr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestDecimal(t *testing.T) {
	cfg := &Config{Values: map[string]string{
		KeyTransferPercent: "2.5",
		KeyTaxPercent:      "not-a-number",
	}}

	d, ok := cfg.Decimal(KeyTransferPercent)
	if !ok || !d.Equal(decimal.NewFromFloat(2.5)) {
		t.Fatalf("decimal = %s, ok = %v", d, ok)
	}
	// unparsable values count as unset
	if _, ok := cfg.Decimal(KeyTaxPercent); ok {
		t.Fatalf("unparsable value reported as set")
	}
	if _, ok := cfg.Decimal("missing"); ok {
		t.Fatalf("missing key reported as set")
	}
}

func TestMandatoryDecimal(t *testing.T) {
	cfg := &Config{Values: map[string]string{KeyPenaltyLateAmount: "25"}}

	d, err := cfg.MandatoryDecimal(KeyPenaltyLateAmount)
	if err != nil || !d.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("d = %s, err = %v", d, err)
	}
	if _, err := cfg.MandatoryDecimal(KeyDistributionPercent); !errors.Is(err, ledgererr.ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}
}
