// Package tontine holds the rotating-savings domain model: groups, members,
// contributions, payout rounds, escrow accounts and penalties.
package tontine

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a tontine. ACTIVE and SUSPENDED are
// mutually reachable; CLOSED is terminal.
type State string

const (
	StateActive    State = "ACTIVE"
	StateSuspended State = "SUSPENDED"
	StateClosed    State = "CLOSED"
)

// CanTransitionTo reports whether the state machine admits the transition.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateActive:
		return next == StateSuspended || next == StateClosed
	case StateSuspended:
		return next == StateActive || next == StateClosed
	default:
		return false
	}
}

// RotationMode controls how the initial rotation order is produced. It has no
// runtime effect once the order is fixed at creation.
type RotationMode string

const (
	RotationFixed  RotationMode = "FIXED"
	RotationRandom RotationMode = "RANDOM"
	RotationVote   RotationMode = "VOTE"
)

// PayoutPolicy says when a round becomes distributable.
type PayoutPolicy string

const (
	// PayoutAllContributed distributes once every active member has a
	// validated contribution for the round.
	PayoutAllContributed PayoutPolicy = "ALL_CONTRIBUTED"
	// PayoutDeadline distributes once the round due date has passed.
	PayoutDeadline PayoutPolicy = "DEADLINE"
)

// Frequency is the contribution cadence.
type Frequency string

const (
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// Tontine is a rotating-savings group. The rotation order is immutable once
// drawn at start.
type Tontine struct {
	ID           string
	Name         string
	Contribution decimal.Decimal
	Currency     string
	Frequency    Frequency
	RotationMode RotationMode
	PayoutPolicy PayoutPolicy
	MemberTarget int
	InviteCode   string
	State        State
	StartedAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MemberRole separates the group administrator from plain members.
type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// MemberState is the per-member lifecycle. REJECTED and EXCLUDED are
// terminal.
type MemberState string

const (
	MemberPending   MemberState = "PENDING"
	MemberActive    MemberState = "ACTIVE"
	MemberSuspended MemberState = "SUSPENDED"
	MemberExcluded  MemberState = "EXCLUDED"
	MemberRejected  MemberState = "REJECTED"
)

// CanTransitionTo reports whether the member state machine admits the
// transition.
func (s MemberState) CanTransitionTo(next MemberState) bool {
	switch s {
	case MemberPending:
		return next == MemberActive || next == MemberRejected
	case MemberActive:
		return next == MemberSuspended || next == MemberExcluded
	case MemberSuspended:
		return next == MemberActive || next == MemberExcluded
	default:
		return false
	}
}

// Member ties a user to a tontine. Unique per (user, tontine). Position is
// the member's slot in the rotation order; zero until the order is drawn.
type Member struct {
	ID        string
	TontineID string
	UserID    string
	Role      MemberRole
	State     MemberState
	Position  int
	JoinedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContributionState is the payment state of one contribution.
type ContributionState string

const (
	ContributionPending   ContributionState = "PENDING"
	ContributionValidated ContributionState = "VALIDATED"
	ContributionRejected  ContributionState = "REJECTED"
)

// Contribution is one member's payment for one round. At most one exists per
// (member, round).
type Contribution struct {
	ID        string
	TontineID string
	MemberID  string
	Round     int
	Amount    decimal.Decimal
	State     ContributionState
	ProofRef  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoundState is the payout state of a distribution round.
type RoundState string

const (
	RoundPending RoundState = "PENDING"
	RoundSuccess RoundState = "SUCCESS"
	RoundBlocked RoundState = "BLOCKED"
)

// Round is one turn of the rotation: which member receives the pool, how
// much was distributed, and whether the payout went through.
type Round struct {
	ID        string
	TontineID string
	Number    int
	MemberID  string
	Amount    decimal.Decimal
	State     RoundState
	DueAt     time.Time
	PaidAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EscrowState is the lifecycle state of an escrow account.
type EscrowState string

const (
	EscrowActive  EscrowState = "ACTIVE"
	EscrowBlocked EscrowState = "BLOCKED"
)

// Escrow pools validated contributions for a tontine between collection and
// distribution. Exactly one exists per tontine.
type Escrow struct {
	ID        string
	TontineID string
	ManagerID string
	Balance   decimal.Decimal
	Blocked   decimal.Decimal
	State     EscrowState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PenaltyKind classifies why a penalty was assessed.
type PenaltyKind string

const (
	PenaltyLate    PenaltyKind = "LATE"
	PenaltyAbsence PenaltyKind = "ABSENCE"
	PenaltyOther   PenaltyKind = "OTHER"
)

// PenaltyState is the payment state of a penalty.
type PenaltyState string

const (
	PenaltyUnpaid PenaltyState = "UNPAID"
	PenaltyPaid   PenaltyState = "PAID"
)

// Penalty is a charge against a member, usually for a missed or late
// contribution. RetryCount and LastChecked feed the external scheduler's
// backoff.
type Penalty struct {
	ID             string
	TontineID      string
	MemberID       string
	ContributionID string
	Round          int
	Kind           PenaltyKind
	Amount         decimal.Decimal
	State          PenaltyState
	RetryCount     int
	LastChecked    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
