package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage/memory"
)

func TestOpenRecordsTotals(t *testing.T) {
	svc := New(nil)
	store := memory.New()

	entry, err := svc.Open(context.Background(), store, Spec{
		Type:        domain.TypeTransfer,
		Amount:      decimal.NewFromInt(1000),
		PlatformFee: decimal.NewFromInt(20),
		Tax:         decimal.NewFromInt(4),
		SenderID:    "alice",
		ReceiverID:  "bob",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if entry.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", entry.Status)
	}
	if !entry.Total.Equal(decimal.NewFromInt(1024)) {
		t.Fatalf("total = %s, want 1024", entry.Total)
	}
	if !entry.CompletedAt.IsZero() {
		t.Fatalf("completed_at set on open")
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	svc := New(nil)
	store := memory.New()
	ctx := context.Background()

	entry, err := svc.Open(ctx, store, Spec{Type: domain.TypeDeposit, Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	completed, err := svc.Complete(ctx, store, entry.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.CompletedAt.IsZero() {
		t.Fatalf("completed = %+v", completed)
	}

	if _, err := svc.Fail(ctx, store, entry.ID, "late"); !errors.Is(err, ledgererr.ErrInvalidStateTransition) {
		t.Fatalf("second transition err = %v, want ErrInvalidStateTransition", err)
	}
	if _, err := svc.Complete(ctx, store, entry.ID); !errors.Is(err, ledgererr.ErrInvalidStateTransition) {
		t.Fatalf("repeat complete err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestFailRecordsCause(t *testing.T) {
	svc := New(nil)
	store := memory.New()
	ctx := context.Background()

	entry, err := svc.Open(ctx, store, Spec{Type: domain.TypeWithdrawal, Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	failed, err := svc.Fail(ctx, store, entry.ID, "provider unreachable")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != domain.StatusFailed || failed.FailureCause != "provider unreachable" {
		t.Fatalf("failed = %+v", failed)
	}
	if !failed.CompletedAt.IsZero() {
		t.Fatalf("completed_at set on failure")
	}
}

func TestMarkRetry(t *testing.T) {
	svc := New(nil)
	store := memory.New()
	ctx := context.Background()

	entry, err := svc.Open(ctx, store, Spec{Type: domain.TypeWithdrawal, Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	retried, err := svc.MarkRetry(ctx, store, entry.ID)
	if err != nil {
		t.Fatalf("MarkRetry: %v", err)
	}
	if retried.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", retried.RetryCount)
	}

	if _, err := svc.Complete(ctx, store, entry.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := svc.MarkRetry(ctx, store, entry.ID); !errors.Is(err, ledgererr.ErrInvalidStateTransition) {
		t.Fatalf("retry after terminal err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestListFiltersByActor(t *testing.T) {
	svc := New(nil)
	store := memory.New()
	ctx := context.Background()

	for _, spec := range []Spec{
		{Type: domain.TypeTransfer, Amount: decimal.NewFromInt(1), SenderID: "alice", ReceiverID: "bob"},
		{Type: domain.TypeTransfer, Amount: decimal.NewFromInt(2), SenderID: "carol", ReceiverID: "alice"},
		{Type: domain.TypeTransfer, Amount: decimal.NewFromInt(3), SenderID: "carol", ReceiverID: "dan"},
	} {
		if _, err := svc.Open(ctx, store, spec); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}

	entries, err := svc.List(ctx, store, domain.Filter{ActorID: "alice"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 entries touching alice", len(entries))
	}
}
