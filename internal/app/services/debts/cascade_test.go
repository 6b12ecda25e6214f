package debts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	debtdomain "github.com/terangapay/ledger-engine/internal/app/domain/debt"
	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/services/journal"
	"github.com/terangapay/ledger-engine/internal/app/services/ledger"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/internal/app/storage/memory"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	user  wallet.Wallet
	card  debtdomain.Card
}

func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	user, err := store.CreateWallet(ctx, wallet.Wallet{
		OwnerID:   "user-1",
		OwnerKind: wallet.OwnerUser,
		Balance:   decimal.NewFromInt(balance),
		Currency:  "XOF",
		Status:    wallet.StatusActive,
	})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	card, err := store.CreateCard(ctx, debtdomain.Card{UserID: "user-1", Label: "main"})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	return &fixture{
		store: store,
		svc:   New(ledger.New(nil), journal.New(nil), nil),
		user:  user,
		card:  card,
	}
}

func (f *fixture) addDebt(t *testing.T, amount int64, age time.Duration) debtdomain.Debt {
	t.Helper()
	d, err := f.store.CreateDebt(context.Background(), debtdomain.Debt{
		UserID:    "user-1",
		CardID:    f.card.ID,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: time.Now().UTC().Add(-age),
	})
	if err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}
	return d
}

func TestCascadeOldestFirstPartialSecond(t *testing.T) {
	f := newFixture(t, 120)
	ctx := context.Background()
	older := f.addDebt(t, 100, 2*time.Hour)
	newer := f.addDebt(t, 50, time.Hour)

	settlements, err := f.svc.Cascade(ctx, f.store, "user-1")
	if err != nil {
		t.Fatalf("Cascade: %v", err)
	}
	if len(settlements) != 2 {
		t.Fatalf("settlements = %d, want 2", len(settlements))
	}
	if settlements[0].DebtID != older.ID || !settlements[0].Cleared {
		t.Fatalf("first settlement = %+v, want %s cleared", settlements[0], older.ID)
	}
	if settlements[1].DebtID != newer.ID || settlements[1].Cleared {
		t.Fatalf("second settlement = %+v, want %s partial", settlements[1], newer.ID)
	}
	if !settlements[1].Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("second repayment = %s, want 20", settlements[1].Amount)
	}

	// wallet drained to zero, second debt reduced to 30
	w, _ := f.store.GetWallet(ctx, f.user.ID)
	if !w.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", w.Balance)
	}
	remaining, err := f.store.ListDebtsByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListDebtsByUser: %v", err)
	}
	if len(remaining) != 1 || !remaining[0].Amount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("remaining = %+v, want one debt of 30", remaining)
	}
}

func TestCascadeJournalsEachRepayment(t *testing.T) {
	f := newFixture(t, 120)
	ctx := context.Background()
	f.addDebt(t, 100, 2*time.Hour)
	f.addDebt(t, 50, time.Hour)

	if _, err := f.svc.Cascade(ctx, f.store, "user-1"); err != nil {
		t.Fatalf("Cascade: %v", err)
	}

	entries, err := f.store.ListEntries(ctx, journaldomain.Filter{Type: journaldomain.TypeDebtSettlement})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want one per repayment", len(entries))
	}
	for _, e := range entries {
		if e.Status != journaldomain.StatusCompleted {
			t.Fatalf("entry %s status = %s, want COMPLETED", e.ID, e.Status)
		}
		if e.Method != "CASCADE" {
			t.Fatalf("entry %s method = %q", e.ID, e.Method)
		}
	}
}

func TestCascadeStopsAtZeroBalance(t *testing.T) {
	f := newFixture(t, 40)
	ctx := context.Background()
	f.addDebt(t, 100, time.Hour)

	settlements, err := f.svc.Cascade(ctx, f.store, "user-1")
	if err != nil {
		t.Fatalf("Cascade: %v", err)
	}
	if len(settlements) != 1 || settlements[0].Cleared {
		t.Fatalf("settlements = %+v, want one partial", settlements)
	}

	remaining, _ := f.store.ListDebtsByUser(ctx, "user-1")
	if len(remaining) != 1 || !remaining[0].Amount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("remaining = %+v, want one debt of 60", remaining)
	}
}

func TestCascadeNoDebtsNoMovement(t *testing.T) {
	f := newFixture(t, 100)
	settlements, err := f.svc.Cascade(context.Background(), f.store, "user-1")
	if err != nil {
		t.Fatalf("Cascade: %v", err)
	}
	if len(settlements) != 0 {
		t.Fatalf("settlements = %+v, want none", settlements)
	}
	w, _ := f.store.GetWallet(context.Background(), f.user.ID)
	if !w.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want untouched 100", w.Balance)
	}
}

func TestRejectionStreakLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.RecordRejectedPayment(ctx, f.store, f.card.ID, decimal.NewFromInt(30), "subscription"); err != nil {
			t.Fatalf("RecordRejectedPayment: %v", err)
		}
	}
	card, _ := f.store.GetCard(ctx, f.card.ID)
	if card.RejectionStreak != 2 {
		t.Fatalf("streak = %d, want 2", card.RejectionStreak)
	}

	// clearing every debt resets the streak
	if _, err := f.store.UpdateWallet(ctx, withBalance(f.user, 60)); err != nil {
		t.Fatalf("UpdateWallet: %v", err)
	}
	if _, err := f.svc.Cascade(ctx, f.store, "user-1"); err != nil {
		t.Fatalf("Cascade: %v", err)
	}
	card, _ = f.store.GetCard(ctx, f.card.ID)
	if card.RejectionStreak != 0 {
		t.Fatalf("streak = %d, want reset to 0", card.RejectionStreak)
	}
}

func TestRecordRejectedPaymentUnknownCard(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.svc.RecordRejectedPayment(context.Background(), f.store, "missing", decimal.NewFromInt(10), "x")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func withBalance(w wallet.Wallet, balance int64) wallet.Wallet {
	w.Balance = decimal.NewFromInt(balance)
	return w
}
