// Package ledger mutates wallet balances. Every mutation runs inside a
// caller-supplied atomic scope; the service holds no cross-call state.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Service applies credits and debits to wallet rows.
type Service struct {
	log *logger.Logger
}

// New constructs the ledger service.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{log: log}
}

// Balance returns the current balance of a wallet.
func (s *Service) Balance(ctx context.Context, tx storage.WalletStore, walletID string) (decimal.Decimal, error) {
	w, err := s.load(ctx, tx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// Credit adds amount to the wallet and returns the updated record. Blocked
// wallets reject credits.
func (s *Service) Credit(ctx context.Context, tx storage.WalletStore, walletID string, amount decimal.Decimal) (wallet.Wallet, error) {
	if !amount.IsPositive() {
		return wallet.Wallet{}, fmt.Errorf("credit %s: %w", amount.String(), ledgererr.ErrInvalidAmount)
	}
	w, err := s.load(ctx, tx, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if !w.Active() {
		return wallet.Wallet{}, fmt.Errorf("wallet %s: %w", w.ID, ledgererr.ErrWalletBlocked)
	}

	w.Balance = w.Balance.Add(amount)
	updated, err := tx.UpdateWallet(ctx, w)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("persist credit: %w", err)
	}
	return updated, nil
}

// Debit subtracts amount from the wallet and returns the updated record.
// Fails with InsufficientFunds when amount exceeds the balance.
func (s *Service) Debit(ctx context.Context, tx storage.WalletStore, walletID string, amount decimal.Decimal) (wallet.Wallet, error) {
	if !amount.IsPositive() {
		return wallet.Wallet{}, fmt.Errorf("debit %s: %w", amount.String(), ledgererr.ErrInvalidAmount)
	}
	w, err := s.load(ctx, tx, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if !w.Active() {
		return wallet.Wallet{}, fmt.Errorf("wallet %s: %w", w.ID, ledgererr.ErrWalletBlocked)
	}
	if amount.GreaterThan(w.Balance) {
		return wallet.Wallet{}, fmt.Errorf("wallet %s balance %s, debit %s: %w",
			w.ID, w.Balance.String(), amount.String(), ledgererr.ErrInsufficientFunds)
	}

	w.Balance = w.Balance.Sub(amount)
	updated, err := tx.UpdateWallet(ctx, w)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("persist debit: %w", err)
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, tx storage.WalletStore, walletID string) (wallet.Wallet, error) {
	w, err := tx.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return wallet.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, ledgererr.ErrWalletNotFound)
		}
		return wallet.Wallet{}, err
	}
	return w, nil
}
