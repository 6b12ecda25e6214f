// Package tontine drives the rotating-savings state machine: group and
// member lifecycle, contribution validation, penalty accrual, and payout
// rotation. Balances are only ever touched through the transfer
// orchestrator.
package tontine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/metrics"
	"github.com/terangapay/ledger-engine/internal/app/notify"
	"github.com/terangapay/ledger-engine/internal/app/services/fees"
	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/services/transfer"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// suspendAfterUnpaid is how many unpaid penalties a member accrues before the
// sweep suspends them.
const suspendAfterUnpaid = 2

// CreateSpec describes a new tontine.
type CreateSpec struct {
	Name         string
	Contribution string
	Currency     string
	Frequency    domain.Frequency
	RotationMode domain.RotationMode
	PayoutPolicy domain.PayoutPolicy
	MemberTarget int
	AdminUserID  string
}

// Service is the tontine engine.
type Service struct {
	store    storage.Store
	transfer *transfer.Service
	fees     *fees.Resolver
	notifier notify.Dispatcher
	log      *logger.Logger

	// shuffle draws the rotation order for RANDOM mode; injectable in tests.
	shuffle func(n int, swap func(i, j int))
}

// New constructs the engine with its collaborators.
func New(store storage.Store, transferSvc *transfer.Service, feeResolver *fees.Resolver, notifier notify.Dispatcher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tontine")
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		store:    store,
		transfer: transferSvc,
		fees:     feeResolver,
		notifier: notifier,
		log:      log,
		shuffle:  rand.Shuffle,
	}
}

// Create registers a tontine, its admin member and its escrow account. The
// admin joins ACTIVE; everyone else arrives through Join.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (domain.Tontine, error) {
	amount, err := parseAmount(spec.Contribution)
	if err != nil {
		return domain.Tontine{}, err
	}
	if spec.Name == "" {
		return domain.Tontine{}, fmt.Errorf("name is required")
	}
	if spec.MemberTarget < 2 {
		return domain.Tontine{}, fmt.Errorf("member target must be at least 2")
	}
	if spec.PayoutPolicy == "" {
		spec.PayoutPolicy = domain.PayoutAllContributed
	}
	if spec.RotationMode == "" {
		spec.RotationMode = domain.RotationFixed
	}
	if spec.Frequency == "" {
		spec.Frequency = domain.FrequencyMonthly
	}

	var created domain.Tontine
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		created, err = tx.CreateTontine(ctx, domain.Tontine{
			Name:         spec.Name,
			Contribution: amount,
			Currency:     spec.Currency,
			Frequency:    spec.Frequency,
			RotationMode: spec.RotationMode,
			PayoutPolicy: spec.PayoutPolicy,
			MemberTarget: spec.MemberTarget,
			InviteCode:   newInviteCode(),
			State:        domain.StateActive,
		})
		if err != nil {
			return fmt.Errorf("create tontine: %w", err)
		}

		admin, err := tx.CreateMember(ctx, domain.Member{
			TontineID: created.ID,
			UserID:    spec.AdminUserID,
			Role:      domain.RoleAdmin,
			State:     domain.MemberActive,
			JoinedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create admin member: %w", err)
		}

		if _, err := tx.CreateEscrow(ctx, domain.Escrow{
			TontineID: created.ID,
			ManagerID: admin.ID,
			State:     domain.EscrowActive,
		}); err != nil {
			return fmt.Errorf("create escrow: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Tontine{}, err
	}

	s.log.Info("tontine created", "tontine", created.ID, "invite", created.InviteCode)
	return created, nil
}

// Join adds a user to a tontine by invite code. The member starts PENDING
// until the admin approves.
func (s *Service) Join(ctx context.Context, inviteCode, userID string) (domain.Member, error) {
	t, err := s.store.GetTontineByInvite(ctx, strings.ToUpper(inviteCode))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Member{}, fmt.Errorf("invite code %s: %w", inviteCode, storage.ErrNotFound)
		}
		return domain.Member{}, err
	}
	if t.State != domain.StateActive {
		return domain.Member{}, fmt.Errorf("tontine %s is %s: %w", t.ID, t.State, ledgererr.ErrInvalidStateTransition)
	}
	if !t.StartedAt.IsZero() {
		return domain.Member{}, fmt.Errorf("tontine %s already started: %w", t.ID, ledgererr.ErrInvalidStateTransition)
	}

	members, err := s.store.ListMembers(ctx, t.ID)
	if err != nil {
		return domain.Member{}, err
	}
	if len(members) >= t.MemberTarget {
		return domain.Member{}, fmt.Errorf("tontine %s is full", t.ID)
	}

	member, err := s.store.CreateMember(ctx, domain.Member{
		TontineID: t.ID,
		UserID:    userID,
		Role:      domain.RoleMember,
		State:     domain.MemberPending,
	})
	if err != nil {
		return domain.Member{}, fmt.Errorf("join tontine: %w", err)
	}
	return member, nil
}

// ApproveMember activates a pending member.
func (s *Service) ApproveMember(ctx context.Context, memberID string) (domain.Member, error) {
	return s.transitionMember(ctx, memberID, domain.MemberActive)
}

// RejectMember permanently rejects a pending member.
func (s *Service) RejectMember(ctx context.Context, memberID string) (domain.Member, error) {
	return s.transitionMember(ctx, memberID, domain.MemberRejected)
}

// SuspendMember suspends an active member.
func (s *Service) SuspendMember(ctx context.Context, memberID string) (domain.Member, error) {
	return s.transitionMember(ctx, memberID, domain.MemberSuspended)
}

// ReinstateMember moves a suspended member back to active.
func (s *Service) ReinstateMember(ctx context.Context, memberID string) (domain.Member, error) {
	return s.transitionMember(ctx, memberID, domain.MemberActive)
}

// ExcludeMember permanently excludes a member, e.g. for repeated penalty
// non-payment.
func (s *Service) ExcludeMember(ctx context.Context, memberID string) (domain.Member, error) {
	return s.transitionMember(ctx, memberID, domain.MemberExcluded)
}

func (s *Service) transitionMember(ctx context.Context, memberID string, next domain.MemberState) (domain.Member, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return domain.Member{}, err
	}
	if !member.State.CanTransitionTo(next) {
		return domain.Member{}, fmt.Errorf("member %s is %s, cannot become %s: %w",
			member.ID, member.State, next, ledgererr.ErrInvalidStateTransition)
	}
	member.State = next
	if next == domain.MemberActive && member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	return s.store.UpdateMember(ctx, member)
}

// Suspend pauses an active tontine.
func (s *Service) Suspend(ctx context.Context, tontineID string) (domain.Tontine, error) {
	return s.transition(ctx, tontineID, domain.StateSuspended)
}

// Reactivate resumes a suspended tontine.
func (s *Service) Reactivate(ctx context.Context, tontineID string) (domain.Tontine, error) {
	return s.transition(ctx, tontineID, domain.StateActive)
}

// Close terminates a tontine. Terminal.
func (s *Service) Close(ctx context.Context, tontineID string) (domain.Tontine, error) {
	return s.transition(ctx, tontineID, domain.StateClosed)
}

func (s *Service) transition(ctx context.Context, tontineID string, next domain.State) (domain.Tontine, error) {
	t, err := s.store.GetTontine(ctx, tontineID)
	if err != nil {
		return domain.Tontine{}, err
	}
	if !t.State.CanTransitionTo(next) {
		return domain.Tontine{}, fmt.Errorf("tontine %s is %s, cannot become %s: %w",
			t.ID, t.State, next, ledgererr.ErrInvalidStateTransition)
	}
	t.State = next
	return s.store.UpdateTontine(ctx, t)
}

// Start fixes the rotation order and opens round 1. Every member must be
// ACTIVE and the member target met. For VOTE mode the ballot result arrives
// as voteOrder (member IDs, first beneficiary first); FIXED uses join order;
// RANDOM shuffles. The order is immutable afterwards.
func (s *Service) Start(ctx context.Context, tontineID string, voteOrder []string) (domain.Tontine, error) {
	var started domain.Tontine
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		t, err := tx.GetTontine(ctx, tontineID)
		if err != nil {
			return err
		}
		if t.State != domain.StateActive {
			return fmt.Errorf("tontine %s is %s: %w", t.ID, t.State, ledgererr.ErrInvalidStateTransition)
		}
		if !t.StartedAt.IsZero() {
			return fmt.Errorf("tontine %s already started: %w", t.ID, ledgererr.ErrInvalidStateTransition)
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
		if len(active) != t.MemberTarget {
			return fmt.Errorf("tontine %s has %d active members, target %d", t.ID, len(active), t.MemberTarget)
		}

		ordered, err := s.drawOrder(t, active, voteOrder)
		if err != nil {
			return err
		}
		for i, m := range ordered {
			m.Position = i + 1
			if _, err := tx.UpdateMember(ctx, m); err != nil {
				return fmt.Errorf("assign position: %w", err)
			}
		}

		now := time.Now().UTC()
		if _, err := tx.CreateRound(ctx, domain.Round{
			TontineID: t.ID,
			Number:    1,
			MemberID:  ordered[0].ID,
			State:     domain.RoundPending,
			DueAt:     now.Add(interval(t.Frequency)),
		}); err != nil {
			return fmt.Errorf("open first round: %w", err)
		}

		t.StartedAt = now
		started, err = tx.UpdateTontine(ctx, t)
		return err
	})
	if err != nil {
		return domain.Tontine{}, err
	}
	return started, nil
}

func (s *Service) drawOrder(t domain.Tontine, active []domain.Member, voteOrder []string) ([]domain.Member, error) {
	switch t.RotationMode {
	case domain.RotationVote:
		if len(voteOrder) != len(active) {
			return nil, fmt.Errorf("vote order names %d members, tontine has %d", len(voteOrder), len(active))
		}
		byID := make(map[string]domain.Member, len(active))
		for _, m := range active {
			byID[m.ID] = m
		}
		ordered := make([]domain.Member, 0, len(voteOrder))
		for _, id := range voteOrder {
			m, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("vote order references unknown member %s", id)
			}
			ordered = append(ordered, m)
			delete(byID, id)
		}
		return ordered, nil
	case domain.RotationRandom:
		ordered := append([]domain.Member(nil), active...)
		s.shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
		return ordered, nil
	default:
		// FIXED: join order. ListMembers returns position order, which is
		// creation order before positions are assigned.
		return active, nil
	}
}

// CurrentRound returns the lowest-numbered pending round.
func (s *Service) CurrentRound(ctx context.Context, tontineID string) (domain.Round, error) {
	rounds, err := s.store.ListRounds(ctx, tontineID)
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

// SubmitContribution records a member's payment intent for the current
// round. A second submission for the same round is rejected and the first
// left untouched.
func (s *Service) SubmitContribution(ctx context.Context, tontineID, userID, proofRef string) (domain.Contribution, error) {
	t, err := s.store.GetTontine(ctx, tontineID)
	if err != nil {
		return domain.Contribution{}, err
	}
	if t.State != domain.StateActive {
		return domain.Contribution{}, fmt.Errorf("tontine %s is %s: %w", t.ID, t.State, ledgererr.ErrInvalidStateTransition)
	}

	member, err := s.store.GetMemberByUser(ctx, tontineID, userID)
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("member of %s: %w", tontineID, err)
	}
	if member.State != domain.MemberActive {
		return domain.Contribution{}, fmt.Errorf("member %s is %s: %w", member.ID, member.State, ledgererr.ErrInvalidStateTransition)
	}

	round, err := s.CurrentRound(ctx, tontineID)
	if err != nil {
		return domain.Contribution{}, err
	}

	if _, err := s.store.GetContributionForRound(ctx, member.ID, round.Number); err == nil {
		return domain.Contribution{}, fmt.Errorf("member %s round %d: %w",
			member.ID, round.Number, ledgererr.ErrDuplicateContribution)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.Contribution{}, err
	}

	return s.store.CreateContribution(ctx, domain.Contribution{
		TontineID: t.ID,
		MemberID:  member.ID,
		Round:     round.Number,
		Amount:    t.Contribution,
		State:     domain.ContributionPending,
		ProofRef:  proofRef,
	})
}

// ValidateContribution marks a pending contribution VALIDATED and moves the
// money from the member's wallet into the escrow, with the tontine fee
// charged on top, in one atomic scope.
func (s *Service) ValidateContribution(ctx context.Context, contributionID string) (domain.Contribution, error) {
	var (
		validated domain.Contribution
		result    transfer.Result
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		c, err := tx.GetContribution(ctx, contributionID)
		if err != nil {
			return err
		}
		if c.State != domain.ContributionPending {
			return fmt.Errorf("contribution %s is %s: %w", c.ID, c.State, ledgererr.ErrInvalidStateTransition)
		}

		member, err := tx.GetMember(ctx, c.MemberID)
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

		breakdown := s.fees.ResolveFee(journaldomain.TypeTontinePayment, c.Amount)
		result, err = s.transfer.ContributeToEscrow(ctx, tx, w.ID, c.TontineID, c.Amount, breakdown)
		if err != nil {
			return err
		}

		c.State = domain.ContributionValidated
		validated, err = tx.UpdateContribution(ctx, c)
		return err
	})
	if err != nil {
		metrics.RecordContribution("failed")
		return domain.Contribution{}, err
	}

	metrics.RecordContribution("validated")
	s.notifier.Dispatch(ctx, notify.EventContributionPaid, result.Sender.OwnerID, result.Entry)
	return validated, nil
}

// RejectContribution marks a pending contribution REJECTED.
func (s *Service) RejectContribution(ctx context.Context, contributionID string) (domain.Contribution, error) {
	c, err := s.store.GetContribution(ctx, contributionID)
	if err != nil {
		return domain.Contribution{}, err
	}
	if c.State != domain.ContributionPending {
		return domain.Contribution{}, fmt.Errorf("contribution %s is %s: %w", c.ID, c.State, ledgererr.ErrInvalidStateTransition)
	}
	c.State = domain.ContributionRejected
	return s.store.UpdateContribution(ctx, c)
}

// Tontine returns one tontine.
func (s *Service) Tontine(ctx context.Context, id string) (domain.Tontine, error) {
	return s.store.GetTontine(ctx, id)
}

// Members lists a tontine's members in rotation order.
func (s *Service) Members(ctx context.Context, tontineID string) ([]domain.Member, error) {
	return s.store.ListMembers(ctx, tontineID)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("contribution amount %q: %w", raw, ledgererr.ErrInvalidAmount)
	}
	return amount, nil
}

func newInviteCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// interval maps a contribution frequency to the round length.
func interval(f domain.Frequency) time.Duration {
	switch f {
	case domain.FrequencyWeekly:
		return 7 * 24 * time.Hour
	case domain.FrequencyBiweekly:
		return 14 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
