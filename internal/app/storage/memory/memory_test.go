package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

func seedWallet(t *testing.T, s *Store, owner string, balance int64) wallet.Wallet {
	t.Helper()
	w, err := s.CreateWallet(context.Background(), wallet.Wallet{
		OwnerID:   owner,
		OwnerKind: wallet.OwnerUser,
		Balance:   decimal.NewFromInt(balance),
		Currency:  "XOF",
		Status:    wallet.StatusActive,
	})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	return w
}

func TestAtomicCommitIsVisible(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 100)

	err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetWallet(ctx, w.ID)
		if err != nil {
			return err
		}
		got.Balance = decimal.NewFromInt(250)
		_, err = tx.UpdateWallet(ctx, got)
		return err
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	got, err := s.GetWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("balance = %s, want 250", got.Balance)
	}
}

func TestAtomicErrorDiscardsScope(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := seedWallet(t, s, "alice", 100)
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		got, err := tx.GetWallet(ctx, w.ID)
		if err != nil {
			return err
		}
		got.Balance = decimal.Zero
		if _, err := tx.UpdateWallet(ctx, got); err != nil {
			return err
		}
		if _, err := tx.CreateWallet(ctx, wallet.Wallet{
			OwnerID: "bob", OwnerKind: wallet.OwnerUser,
			Currency: "XOF", Status: wallet.StatusActive,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, _ := s.GetWallet(ctx, w.ID)
	if !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want untouched 100", got.Balance)
	}
	if _, err := s.GetWalletByOwner(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("bob err = %v, want ErrNotFound", err)
	}
}

func TestAtomicDiscardsGeneratedIDs(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	_ = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.CreateWallet(ctx, wallet.Wallet{
			OwnerID: "ghost", OwnerKind: wallet.OwnerUser,
			Currency: "XOF", Status: wallet.StatusActive,
		}); err != nil {
			return err
		}
		return boom
	})

	// the rolled-back wallet's ID is reissued to the next create
	w := seedWallet(t, s, "alice", 0)
	if w.ID != "1" {
		t.Fatalf("id = %s, want 1", w.ID)
	}
}

func TestLockWalletsReturnsAscendingOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedWallet(t, s, "alice", 0)
	b := seedWallet(t, s, "bob", 0)

	locked, err := s.LockWallets(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("LockWallets: %v", err)
	}
	if len(locked) != 2 || locked[0].ID != a.ID || locked[1].ID != b.ID {
		t.Fatalf("locked = %+v, want ascending by ID", locked)
	}
}

func TestLockWalletsMissingIDFails(t *testing.T) {
	s := New()
	a := seedWallet(t, s, "alice", 0)

	_, err := s.LockWallets(context.Background(), a.ID, "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateWalletRejectsDuplicateOwner(t *testing.T) {
	s := New()
	seedWallet(t, s, "alice", 0)

	_, err := s.CreateWallet(context.Background(), wallet.Wallet{
		OwnerID: "alice", OwnerKind: wallet.OwnerUser,
		Currency: "XOF", Status: wallet.StatusActive,
	})
	if err == nil {
		t.Fatalf("duplicate owner accepted")
	}
}

func TestGetWalletNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetWallet(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
