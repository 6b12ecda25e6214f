// Package debts sweeps outstanding card debts against freshly credited
// balance: a greedy, oldest-first, single-pass cascade.
package debts

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	debtdomain "github.com/terangapay/ledger-engine/internal/app/domain/debt"
	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/services/journal"
	"github.com/terangapay/ledger-engine/internal/app/services/ledger"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Settlement records one repayment made by a sweep.
type Settlement struct {
	DebtID  string
	Amount  decimal.Decimal
	Cleared bool
	Entry   journaldomain.Entry
}

// Service resolves debt cascades inside the caller's atomic scope.
type Service struct {
	ledger  *ledger.Service
	journal *journal.Service
	log     *logger.Logger
}

// New constructs the cascade resolver.
func New(ledgerSvc *ledger.Service, journalSvc *journal.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("debts")
	}
	return &Service{ledger: ledgerSvc, journal: journalSvc, log: log}
}

// Cascade sweeps the user's outstanding debts oldest first (debt ID breaking
// creation-time ties) while wallet balance remains. Each repayment debits the
// wallet and emits one DEBT_SETTLEMENT journal entry. The sweep stops at zero
// balance; remaining debts are untouched. When zero debts remain the card's
// rejection streak resets. Any error aborts the enclosing scope.
func (s *Service) Cascade(ctx context.Context, tx storage.Tx, userID string) ([]Settlement, error) {
	w, err := tx.GetWalletByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, ledgererr.ErrWalletNotFound)
		}
		return nil, err
	}

	outstanding, err := tx.ListDebtsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	if len(outstanding) == 0 {
		return nil, nil
	}

	var settlements []Settlement
	remaining := len(outstanding)

	for _, d := range outstanding {
		if !w.Balance.IsPositive() {
			break
		}
		repay := decimal.Min(w.Balance, d.Amount)

		w, err = s.ledger.Debit(ctx, tx, w.ID, repay)
		if err != nil {
			return nil, fmt.Errorf("debit for debt %s: %w", d.ID, err)
		}

		cleared := repay.GreaterThanOrEqual(d.Amount)
		if cleared {
			if err := tx.DeleteDebt(ctx, d.ID); err != nil {
				return nil, fmt.Errorf("delete debt %s: %w", d.ID, err)
			}
			remaining--
		} else {
			d.Amount = d.Amount.Sub(repay)
			if _, err := tx.UpdateDebt(ctx, d); err != nil {
				return nil, fmt.Errorf("reduce debt %s: %w", d.ID, err)
			}
		}

		entry, err := s.journal.Open(ctx, tx, journal.Spec{
			Type:     journaldomain.TypeDebtSettlement,
			Amount:   repay,
			SenderID: userID,
			Method:   "CASCADE",
			ParentID: d.CardID,
		})
		if err != nil {
			return nil, err
		}
		if entry, err = s.journal.Complete(ctx, tx, entry.ID); err != nil {
			return nil, err
		}

		settlements = append(settlements, Settlement{
			DebtID:  d.ID,
			Amount:  repay,
			Cleared: cleared,
			Entry:   entry,
		})
	}

	if remaining == 0 {
		if err := s.resetRejectionStreak(ctx, tx, userID); err != nil {
			return nil, err
		}
	}

	s.log.Info("debt cascade completed", "user", userID, "settled", len(settlements), "remaining", remaining)
	return settlements, nil
}

// RecordRejectedPayment books a new debt after a card payment was rejected
// for insufficient externally-settled funds, and bumps the card's
// consecutive-rejection streak.
func (s *Service) RecordRejectedPayment(ctx context.Context, tx storage.Tx, cardID string, amount decimal.Decimal, label string) (debtdomain.Debt, error) {
	if !amount.IsPositive() {
		return debtdomain.Debt{}, fmt.Errorf("debt amount %s: %w", amount.String(), ledgererr.ErrInvalidAmount)
	}
	card, err := tx.GetCard(ctx, cardID)
	if err != nil {
		return debtdomain.Debt{}, fmt.Errorf("load card %s: %w", cardID, err)
	}

	created, err := tx.CreateDebt(ctx, debtdomain.Debt{
		UserID: card.UserID,
		CardID: card.ID,
		Amount: amount,
		Label:  label,
	})
	if err != nil {
		return debtdomain.Debt{}, fmt.Errorf("create debt: %w", err)
	}

	card.RejectionStreak++
	if _, err := tx.UpdateCard(ctx, card); err != nil {
		return debtdomain.Debt{}, fmt.Errorf("bump rejection streak: %w", err)
	}
	return created, nil
}

// List returns the user's outstanding debts, oldest first.
func (s *Service) List(ctx context.Context, store storage.DebtStore, userID string) ([]debtdomain.Debt, error) {
	return store.ListDebtsByUser(ctx, userID)
}

func (s *Service) resetRejectionStreak(ctx context.Context, tx storage.Tx, userID string) error {
	card, err := tx.GetCardByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if card.RejectionStreak == 0 {
		return nil
	}
	card.RejectionStreak = 0
	if _, err := tx.UpdateCard(ctx, card); err != nil {
		return fmt.Errorf("reset rejection streak: %w", err)
	}
	return nil
}
