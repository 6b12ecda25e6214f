// Package journal manages the transaction journal lifecycle: entries open
// PENDING and transition exactly once to a terminal status.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Spec describes the entry to open.
type Spec struct {
	Type         domain.EntryType
	Amount       decimal.Decimal
	PlatformFee  decimal.Decimal
	Tax          decimal.Decimal
	PartnerFee   decimal.Decimal
	SenderID     string
	ReceiverID   string
	ReceiverKind domain.ReceiverKind
	Method       string
	Provider     string
	ParentID     string
}

// Service records money movements.
type Service struct {
	log *logger.Logger
}

// New constructs the journal service.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("journal")
	}
	return &Service{log: log}
}

// Open creates a PENDING entry for one logical money movement. Total is the
// amount plus every fee component.
func (s *Service) Open(ctx context.Context, tx storage.JournalStore, spec Spec) (domain.Entry, error) {
	if spec.Type == "" {
		return domain.Entry{}, fmt.Errorf("entry type is required")
	}
	if spec.ReceiverKind == "" {
		spec.ReceiverKind = domain.ReceiverInternal
	}

	entry := domain.Entry{
		Type:         spec.Type,
		Status:       domain.StatusPending,
		Amount:       spec.Amount,
		PlatformFee:  spec.PlatformFee,
		Tax:          spec.Tax,
		PartnerFee:   spec.PartnerFee,
		Total:        spec.Amount.Add(spec.PlatformFee).Add(spec.Tax).Add(spec.PartnerFee),
		SenderID:     spec.SenderID,
		ReceiverID:   spec.ReceiverID,
		ReceiverKind: spec.ReceiverKind,
		Method:       spec.Method,
		Provider:     spec.Provider,
		ParentID:     spec.ParentID,
	}
	created, err := tx.CreateEntry(ctx, entry)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("open journal entry: %w", err)
	}
	return created, nil
}

// Complete transitions the entry to COMPLETED. A second terminal transition
// fails with InvalidStateTransition.
func (s *Service) Complete(ctx context.Context, tx storage.JournalStore, entryID string) (domain.Entry, error) {
	return s.close(ctx, tx, entryID, domain.StatusCompleted, "")
}

// Fail transitions the entry to FAILED, recording the reason.
func (s *Service) Fail(ctx context.Context, tx storage.JournalStore, entryID, reason string) (domain.Entry, error) {
	return s.close(ctx, tx, entryID, domain.StatusFailed, reason)
}

func (s *Service) close(ctx context.Context, tx storage.JournalStore, entryID string, status domain.EntryStatus, reason string) (domain.Entry, error) {
	entry, err := tx.GetEntry(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("load journal entry %s: %w", entryID, err)
	}
	if entry.Status.Terminal() {
		return domain.Entry{}, fmt.Errorf("entry %s already %s: %w",
			entry.ID, entry.Status, ledgererr.ErrInvalidStateTransition)
	}

	entry.Status = status
	entry.FailureCause = reason
	if status == domain.StatusCompleted {
		entry.CompletedAt = time.Now().UTC()
	}
	updated, err := tx.UpdateEntry(ctx, entry)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("persist journal transition: %w", err)
	}
	return updated, nil
}

// MarkRetry increments the retry bookkeeping on a non-terminal entry.
func (s *Service) MarkRetry(ctx context.Context, tx storage.JournalStore, entryID string) (domain.Entry, error) {
	entry, err := tx.GetEntry(ctx, entryID)
	if err != nil {
		return domain.Entry{}, err
	}
	if entry.Status.Terminal() {
		return domain.Entry{}, fmt.Errorf("entry %s already %s: %w",
			entry.ID, entry.Status, ledgererr.ErrInvalidStateTransition)
	}
	entry.RetryCount++
	return tx.UpdateEntry(ctx, entry)
}

// List queries entries for the audit/reporting reader.
func (s *Service) List(ctx context.Context, store storage.JournalStore, f domain.Filter) ([]domain.Entry, error) {
	return store.ListEntries(ctx, f)
}
