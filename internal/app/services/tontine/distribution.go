package tontine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	domain "github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/metrics"
	"github.com/terangapay/ledger-engine/internal/app/notify"
	"github.com/terangapay/ledger-engine/internal/app/services/transfer"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

// DistributeRound pays out the current round to its beneficiary. The pooled
// amount is contribution x active members; the distribution fee is withheld
// from the payout. On success the round closes and the next one opens, or
// the tontine closes after the final round. An escrow shortfall blocks the
// round instead of failing the tontine.
func (s *Service) DistributeRound(ctx context.Context, tontineID string) (domain.Round, error) {
	var (
		closed      domain.Round
		blocked     domain.Round
		payout      transfer.Result
		beneficiary string
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		t, err := tx.GetTontine(ctx, tontineID)
		if err != nil {
			return err
		}
		if t.State != domain.StateActive {
			return fmt.Errorf("tontine %s is %s: %w", t.ID, t.State, ledgererr.ErrInvalidStateTransition)
		}

		round, err := currentRound(ctx, tx, t.ID)
		if err != nil {
			return err
		}

		members, err := tx.ListMembers(ctx, t.ID)
		if err != nil {
			return err
		}
		var active []domain.Member
		for _, m := range members {
			if m.State == domain.MemberActive {
				active = append(active, m)
			}
		}

		if err := s.payoutDue(ctx, tx, t, round, active); err != nil {
			return err
		}

		recipient, err := tx.GetMember(ctx, round.MemberID)
		if err != nil {
			return err
		}
		w, err := tx.GetWalletByOwner(ctx, recipient.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("user %s: %w", recipient.UserID, ledgererr.ErrWalletNotFound)
			}
			return err
		}
		beneficiary = recipient.UserID

		pooled := t.Contribution.Mul(decimal.NewFromInt(int64(len(active))))
		feeAmount, err := s.fees.DistributionFee(pooled)
		if err != nil {
			return err
		}

		payout, err = s.transfer.DistributeFromEscrow(ctx, tx, t.ID, w.ID, pooled, feeAmount)
		if err != nil {
			if errors.Is(err, ledgererr.ErrEscrowInsufficient) {
				blocked = round
			}
			return err
		}

		now := time.Now().UTC()
		round.State = domain.RoundSuccess
		round.Amount = pooled
		round.PaidAt = now
		if closed, err = tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		// an excluded or suspended member's position is skipped; the
		// rotation completes when nobody active holds a later position
		next, ok := nextBeneficiary(active, round.Number)
		if !ok {
			t.State = domain.StateClosed
			if _, err := tx.UpdateTontine(ctx, t); err != nil {
				return err
			}
			s.log.Info("tontine completed", "tontine", t.ID, "rounds", round.Number)
		} else {
			if _, err := tx.CreateRound(ctx, domain.Round{
				TontineID: t.ID,
				Number:    next.Position,
				MemberID:  next.ID,
				State:     domain.RoundPending,
				DueAt:     now.Add(interval(t.Frequency)),
			}); err != nil {
				return fmt.Errorf("open round %d: %w", next.Position, err)
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ledgererr.ErrEscrowInsufficient) && blocked.ID != "" {
			s.blockRound(ctx, blocked)
		} else {
			metrics.RecordDistribution("failed")
		}
		return domain.Round{}, err
	}

	metrics.RecordDistribution("distributed")
	s.notifier.Dispatch(ctx, notify.EventRoundDistributed, beneficiary, payout.Entry)
	s.log.Info("round distributed",
		"tontine", tontineID, "round", closed.Number, "beneficiary", beneficiary, "amount", closed.Amount.String())
	return closed, nil
}

// payoutDue enforces the tontine's payout policy before any money moves.
func (s *Service) payoutDue(ctx context.Context, tx storage.Tx, t domain.Tontine, round domain.Round, active []domain.Member) error {
	switch t.PayoutPolicy {
	case domain.PayoutDeadline:
		if time.Now().UTC().Before(round.DueAt) {
			return fmt.Errorf("round %d of %s due at %s: %w",
				round.Number, t.ID, round.DueAt.Format(time.RFC3339), ledgererr.ErrInvalidStateTransition)
		}
		return nil
	default: // ALL_CONTRIBUTED
		for _, m := range active {
			c, err := tx.GetContributionForRound(ctx, m.ID, round.Number)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("member %s has not contributed to round %d: %w",
						m.ID, round.Number, ledgererr.ErrInvalidStateTransition)
				}
				return err
			}
			if c.State != domain.ContributionValidated {
				return fmt.Errorf("contribution %s is %s: %w", c.ID, c.State, ledgererr.ErrInvalidStateTransition)
			}
		}
		return nil
	}
}

// blockRound persists the BLOCKED state in its own scope, after the failed
// distribution attempt rolled back.
func (s *Service) blockRound(ctx context.Context, round domain.Round) {
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		r, err := tx.GetRound(ctx, round.ID)
		if err != nil {
			return err
		}
		if r.State != domain.RoundPending {
			return nil
		}
		r.State = domain.RoundBlocked
		_, err = tx.UpdateRound(ctx, r)
		return err
	})
	if err != nil {
		s.log.Error("block round", "round", round.ID, "error", err)
		return
	}
	metrics.RecordDistribution("blocked")
	s.notifier.Dispatch(ctx, notify.EventRoundBlocked, round.MemberID, journaldomain.Entry{
		Type:   journaldomain.TypeTontinePayment,
		Status: journaldomain.StatusBlocked,
		Amount: round.Amount,
	})
	s.log.Warn("round blocked on escrow shortfall", "tontine", round.TontineID, "round", round.Number)
}

// UnblockRound reopens a blocked round once the escrow has been topped up,
// so distribution can be retried.
func (s *Service) UnblockRound(ctx context.Context, roundID string) (domain.Round, error) {
	r, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		return domain.Round{}, err
	}
	if r.State != domain.RoundBlocked {
		return domain.Round{}, fmt.Errorf("round %s is %s: %w", r.ID, r.State, ledgererr.ErrInvalidStateTransition)
	}
	r.State = domain.RoundPending
	return s.store.UpdateRound(ctx, r)
}

// MaturityCheck scans active deadline-policy tontines and distributes every
// round whose due date has passed. Run from the scheduler.
func (s *Service) MaturityCheck(ctx context.Context) {
	tontines, err := s.store.ListTontines(ctx)
	if err != nil {
		s.log.Error("maturity check", "error", err)
		return
	}
	now := time.Now().UTC()
	for _, t := range tontines {
		if t.State != domain.StateActive || t.PayoutPolicy != domain.PayoutDeadline || t.StartedAt.IsZero() {
			continue
		}
		round, err := s.CurrentRound(ctx, t.ID)
		if err != nil || now.Before(round.DueAt) {
			continue
		}
		if _, err := s.DistributeRound(ctx, t.ID); err != nil {
			s.log.Warn("deferred distribution failed", "tontine", t.ID, "round", round.Number, "error", err)
		}
	}
}

// nextBeneficiary finds the active member holding the lowest rotation
// position after the given one.
func nextBeneficiary(members []domain.Member, after int) (domain.Member, bool) {
	var next domain.Member
	found := false
	for _, m := range members {
		if m.Position <= after {
			continue
		}
		if !found || m.Position < next.Position {
			next, found = m, true
		}
	}
	return next, found
}

func currentRound(ctx context.Context, tx storage.Tx, tontineID string) (domain.Round, error) {
	rounds, err := tx.ListRounds(ctx, tontineID)
	if err != nil {
		return domain.Round{}, err
	}
	for _, r := range rounds {
		if r.State == domain.RoundPending {
			return r, nil
		}
	}
	return domain.Round{}, fmt.Errorf("tontine %s has no pending round: %w", tontineID, storage.ErrNotFound)
}
