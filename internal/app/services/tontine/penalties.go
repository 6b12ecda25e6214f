package tontine

import (
	"context"
	"errors"
	"fmt"
	"time"

	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	domain "github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/metrics"
	"github.com/terangapay/ledger-engine/internal/app/notify"
	"github.com/terangapay/ledger-engine/internal/app/services/transfer"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

// PenaltySweep assesses a LATE penalty against every active member who has
// not contributed to an overdue round, then suspends members carrying too
// many unpaid penalties. Each member is penalised at most once per round.
func (s *Service) PenaltySweep(ctx context.Context) {
	rounds, err := s.store.ListOverdueRounds(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("penalty sweep", "error", err)
		return
	}

	for _, round := range rounds {
		if err := s.sweepRound(ctx, round); err != nil {
			s.log.Error("penalty sweep", "tontine", round.TontineID, "round", round.Number, "error", err)
		}
	}
}

func (s *Service) sweepRound(ctx context.Context, round domain.Round) error {
	var assessed []domain.Penalty
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		t, err := tx.GetTontine(ctx, round.TontineID)
		if err != nil {
			return err
		}
		if t.State != domain.StateActive {
			return nil
		}
		amount, err := s.fees.PenaltyAmount()
		if err != nil {
			return err
		}

		members, err := tx.ListMembers(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.State != domain.MemberActive {
				continue
			}
			// only a validated contribution exempts; pending and
			// rejected submissions are still late
			if c, err := tx.GetContributionForRound(ctx, m.ID, round.Number); err == nil {
				if c.State == domain.ContributionValidated {
					continue
				}
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			// one penalty per member per round
			existing, err := tx.ListPenalties(ctx, storage.PenaltyFilter{
				TontineID: t.ID,
				MemberID:  m.ID,
				Round:     round.Number,
			})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				continue
			}

			p, err := tx.CreatePenalty(ctx, domain.Penalty{
				TontineID: t.ID,
				MemberID:  m.ID,
				Round:     round.Number,
				Kind:      domain.PenaltyLate,
				Amount:    amount,
				State:     domain.PenaltyUnpaid,
			})
			if err != nil {
				return fmt.Errorf("assess penalty: %w", err)
			}
			assessed = append(assessed, p)
			s.log.Info("penalty assessed",
				"tontine", t.ID, "round", round.Number, "member", m.ID, "penalty", p.ID)

			if err := s.maybeSuspendLocked(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range assessed {
		metrics.RecordPenalty("assessed")
		s.notifier.Dispatch(ctx, notify.EventPenaltyAssessed, p.MemberID, journaldomain.Entry{
			Type:   journaldomain.TypeTontinePayment,
			Status: journaldomain.StatusPending,
			Amount: p.Amount,
		})
	}
	return nil
}

// maybeSuspendLocked suspends a member once their unpaid penalties reach the
// threshold. Runs inside the sweep scope.
func (s *Service) maybeSuspendLocked(ctx context.Context, tx storage.Tx, m domain.Member) error {
	unpaid, err := tx.ListPenalties(ctx, storage.PenaltyFilter{
		TontineID: m.TontineID,
		MemberID:  m.ID,
		State:     domain.PenaltyUnpaid,
	})
	if err != nil {
		return err
	}
	if len(unpaid) < suspendAfterUnpaid || !m.State.CanTransitionTo(domain.MemberSuspended) {
		return nil
	}
	m.State = domain.MemberSuspended
	if _, err := tx.UpdateMember(ctx, m); err != nil {
		return err
	}
	s.log.Warn("member suspended over unpaid penalties",
		"tontine", m.TontineID, "member", m.ID, "unpaid", len(unpaid))
	return nil
}

// PayPenalty collects an unpaid penalty from the member's wallet. A failed
// collection bumps the retry counter and leaves the penalty unpaid.
func (s *Service) PayPenalty(ctx context.Context, penaltyID string) (domain.Penalty, error) {
	var (
		paid   domain.Penalty
		result transfer.Result
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetPenalty(ctx, penaltyID)
		if err != nil {
			return err
		}
		if p.State == domain.PenaltyPaid {
			return fmt.Errorf("penalty %s already paid: %w", p.ID, ledgererr.ErrInvalidStateTransition)
		}

		member, err := tx.GetMember(ctx, p.MemberID)
		if err != nil {
			return err
		}
		w, err := tx.GetWalletByOwner(ctx, member.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("user %s: %w", member.UserID, ledgererr.ErrWalletNotFound)
			}
			return err
		}

		if result, err = s.transfer.DebitInScope(ctx, tx, w.ID, p.Amount, transfer.Options{
			Method: "PENALTY",
		}); err != nil {
			return err
		}

		p.State = domain.PenaltyPaid
		p.LastChecked = time.Now().UTC()
		paid, err = tx.UpdatePenalty(ctx, p)
		return err
	})
	if err != nil {
		s.recordPenaltyAttempt(ctx, penaltyID, err)
		return domain.Penalty{}, err
	}

	metrics.RecordPenalty("paid")
	s.notifier.Dispatch(ctx, notify.EventPenaltyPaid, paid.MemberID, result.Entry)
	return paid, nil
}

// recordPenaltyAttempt bumps the retry bookkeeping after a failed
// collection. Best effort, in its own scope.
func (s *Service) recordPenaltyAttempt(ctx context.Context, penaltyID string, cause error) {
	if errors.Is(cause, ledgererr.ErrInvalidStateTransition) {
		return
	}
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		p, err := tx.GetPenalty(ctx, penaltyID)
		if err != nil {
			return err
		}
		p.RetryCount++
		p.LastChecked = time.Now().UTC()
		_, err = tx.UpdatePenalty(ctx, p)
		return err
	})
	if err != nil {
		s.log.Error("record penalty attempt", "penalty", penaltyID, "error", err)
	}
}

// Penalties lists a tontine's penalties, optionally narrowed by member or
// state.
func (s *Service) Penalties(ctx context.Context, f storage.PenaltyFilter) ([]domain.Penalty, error) {
	return s.store.ListPenalties(ctx, f)
}
