// Package config loads the engine configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
)

// Named configuration value keys consumed by the engine. Optional keys
// resolve to "no fee" when absent; keys marked mandatory below are required
// by the flow that reads them.
const (
	KeyCardCreationFee        = "fees.card_creation"
	KeyCardTransactionPercent = "fees.card_transaction_percent"
	KeyCardTransactionFlat    = "fees.card_transaction_flat"
	KeyTransferPercent        = "fees.transfer_percent"
	KeyTaxPercent             = "fees.tax_percent"
	KeyFreeFirstCard          = "cards.free_first_card"
	KeyTontineFee             = "fees.tontine_contribution"
	KeyDistributionPercent    = "fees.tontine_distribution_percent" // mandatory for payouts
	KeyPenaltyLateAmount      = "penalties.late_amount"             // mandatory for sweeps
)

// Config is the full engine configuration.
type Config struct {
	Server struct {
		Addr      string  `yaml:"addr" env:"LEDGER_ADDR,default=:8080"`
		RateLimit float64 `yaml:"rate_limit" env:"LEDGER_RATE_LIMIT,default=50"`
		RateBurst int     `yaml:"rate_burst" env:"LEDGER_RATE_BURST,default=100"`
		JWTSecret string  `yaml:"jwt_secret" env:"LEDGER_JWT_SECRET"`
	} `yaml:"server"`

	Database struct {
		DSN          string        `yaml:"dsn" env:"LEDGER_DB_DSN"`
		MaxOpenConns int           `yaml:"max_open_conns" env:"LEDGER_DB_MAX_OPEN,default=20"`
		LockTimeout  time.Duration `yaml:"lock_timeout" env:"LEDGER_DB_LOCK_TIMEOUT,default=3s"`
	} `yaml:"database"`

	Scheduler struct {
		PenaltySweep  string `yaml:"penalty_sweep" env:"LEDGER_CRON_PENALTY,default=0 */15 * * * *"`
		MaturityCheck string `yaml:"maturity_check" env:"LEDGER_CRON_MATURITY,default=0 */5 * * * *"`
	} `yaml:"scheduler"`

	// Values holds the named numeric/string configuration the fee resolver
	// and tontine engine consult.
	Values map[string]string `yaml:"values"`
}

// Load reads the YAML file at path (when non-empty) and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{Values: map[string]string{}}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode env overrides: %w", err)
	}
	if cfg.Values == nil {
		cfg.Values = map[string]string{}
	}
	return cfg, nil
}

// String returns the raw named value and whether it is set.
func (c *Config) String(key string) (string, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Bool returns the named value as a boolean; unset keys are false.
func (c *Config) Bool(key string) bool {
	return c.Values[key] == "true"
}

// Decimal returns the named value as a decimal and whether it is set. A set
// but unparsable value is reported as unset; the fee resolver treats that as
// "no fee" per the optional-key contract.
func (c *Config) Decimal(key string) (decimal.Decimal, bool) {
	raw, ok := c.Values[key]
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MandatoryDecimal returns the named value or ErrMissingConfig when absent.
func (c *Config) MandatoryDecimal(key string) (decimal.Decimal, error) {
	d, ok := c.Decimal(key)
	if !ok {
		return decimal.Zero, fmt.Errorf("%q: %w", key, ledgererr.ErrMissingConfig)
	}
	return d, nil
}
