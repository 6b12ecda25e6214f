package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage/memory"
)

func seedWallet(t *testing.T, store *memory.Store, balance string, status wallet.Status) wallet.Wallet {
	t.Helper()
	b, err := decimal.NewFromString(balance)
	if err != nil {
		t.Fatalf("parse balance: %v", err)
	}
	w, err := store.CreateWallet(context.Background(), wallet.Wallet{
		OwnerID:   "user-" + balance,
		OwnerKind: wallet.OwnerUser,
		Balance:   b,
		Currency:  "XOF",
		Status:    status,
	})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	return w
}

func TestCreditAndDebit(t *testing.T) {
	store := memory.New()
	svc := New(nil)
	ctx := context.Background()
	w := seedWallet(t, store, "100", wallet.StatusActive)

	credited, err := svc.Credit(ctx, store, w.ID, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !credited.Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("balance = %s, want 150", credited.Balance)
	}

	debited, err := svc.Debit(ctx, store, w.ID, decimal.NewFromInt(150))
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if !debited.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", debited.Balance)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	store := memory.New()
	svc := New(nil)
	w := seedWallet(t, store, "10", wallet.StatusActive)

	_, err := svc.Debit(context.Background(), store, w.ID, decimal.NewFromInt(11))
	if !errors.Is(err, ledgererr.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	// balance untouched after the refused debit
	got, err := store.GetWallet(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("balance = %s, want 10", got.Balance)
	}
}

func TestBlockedWalletRejectsMovement(t *testing.T) {
	store := memory.New()
	svc := New(nil)
	w := seedWallet(t, store, "100", wallet.StatusBlocked)

	if _, err := svc.Debit(context.Background(), store, w.ID, decimal.NewFromInt(1)); !errors.Is(err, ledgererr.ErrWalletBlocked) {
		t.Fatalf("debit err = %v, want ErrWalletBlocked", err)
	}
	if _, err := svc.Credit(context.Background(), store, w.ID, decimal.NewFromInt(1)); !errors.Is(err, ledgererr.ErrWalletBlocked) {
		t.Fatalf("credit err = %v, want ErrWalletBlocked", err)
	}
}

func TestNonPositiveAmounts(t *testing.T) {
	store := memory.New()
	svc := New(nil)
	w := seedWallet(t, store, "100", wallet.StatusActive)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if _, err := svc.Credit(context.Background(), store, w.ID, amount); !errors.Is(err, ledgererr.ErrInvalidAmount) {
			t.Fatalf("credit %s err = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := svc.Debit(context.Background(), store, w.ID, amount); !errors.Is(err, ledgererr.ErrInvalidAmount) {
			t.Fatalf("debit %s err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestUnknownWallet(t *testing.T) {
	svc := New(nil)
	if _, err := svc.Balance(context.Background(), memory.New(), "missing"); !errors.Is(err, ledgererr.ErrWalletNotFound) {
		t.Fatalf("err = %v, want ErrWalletNotFound", err)
	}
}
