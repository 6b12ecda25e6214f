package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terangapay/ledger-engine/internal/app/domain/debt"
	"github.com/terangapay/ledger-engine/internal/app/domain/fee"
	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
)

// ErrNotFound is returned by every store when the requested record does not
// exist. Services translate it into the domain taxonomy.
var ErrNotFound = errors.New("record not found")

// WalletStore persists wallet balance records.
type WalletStore interface {
	CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
	GetWallet(ctx context.Context, id string) (wallet.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID string) (wallet.Wallet, error)
	// LockWallets acquires row locks on the given wallets in ascending
	// wallet-ID order and returns them in that order. Inside an atomic scope
	// this pins the rows until commit or rollback.
	LockWallets(ctx context.Context, ids ...string) ([]wallet.Wallet, error)
	UpdateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error)
}

// JournalStore persists the transaction journal.
type JournalStore interface {
	CreateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error)
	UpdateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error)
	GetEntry(ctx context.Context, id string) (journal.Entry, error)
	ListEntries(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

// DebtStore persists card debts and the card rejection bookkeeping.
type DebtStore interface {
	CreateDebt(ctx context.Context, d debt.Debt) (debt.Debt, error)
	// ListDebtsByUser returns outstanding debts oldest first, debt ID as the
	// tie-break for equal creation times.
	ListDebtsByUser(ctx context.Context, userID string) ([]debt.Debt, error)
	UpdateDebt(ctx context.Context, d debt.Debt) (debt.Debt, error)
	DeleteDebt(ctx context.Context, id string) error

	CreateCard(ctx context.Context, c debt.Card) (debt.Card, error)
	GetCard(ctx context.Context, id string) (debt.Card, error)
	GetCardByUser(ctx context.Context, userID string) (debt.Card, error)
	UpdateCard(ctx context.Context, c debt.Card) (debt.Card, error)
}

// TierStore persists merchant commission tiers.
type TierStore interface {
	CreateTier(ctx context.Context, t fee.CommissionTier) (fee.CommissionTier, error)
	ListTiers(ctx context.Context) ([]fee.CommissionTier, error)
}

// PenaltyFilter narrows penalty queries.
type PenaltyFilter struct {
	TontineID string
	MemberID  string
	State     tontine.PenaltyState
	Round     int
}

// TontineStore persists rotating-savings groups and their child records.
type TontineStore interface {
	CreateTontine(ctx context.Context, t tontine.Tontine) (tontine.Tontine, error)
	GetTontine(ctx context.Context, id string) (tontine.Tontine, error)
	GetTontineByInvite(ctx context.Context, code string) (tontine.Tontine, error)
	UpdateTontine(ctx context.Context, t tontine.Tontine) (tontine.Tontine, error)
	ListTontines(ctx context.Context) ([]tontine.Tontine, error)

	CreateMember(ctx context.Context, m tontine.Member) (tontine.Member, error)
	GetMember(ctx context.Context, id string) (tontine.Member, error)
	GetMemberByUser(ctx context.Context, tontineID, userID string) (tontine.Member, error)
	// ListMembers returns members ordered by rotation position.
	ListMembers(ctx context.Context, tontineID string) ([]tontine.Member, error)
	UpdateMember(ctx context.Context, m tontine.Member) (tontine.Member, error)

	CreateContribution(ctx context.Context, c tontine.Contribution) (tontine.Contribution, error)
	GetContribution(ctx context.Context, id string) (tontine.Contribution, error)
	GetContributionForRound(ctx context.Context, memberID string, round int) (tontine.Contribution, error)
	ListContributions(ctx context.Context, tontineID string, round int) ([]tontine.Contribution, error)
	UpdateContribution(ctx context.Context, c tontine.Contribution) (tontine.Contribution, error)

	CreateRound(ctx context.Context, r tontine.Round) (tontine.Round, error)
	GetRound(ctx context.Context, id string) (tontine.Round, error)
	GetRoundByNumber(ctx context.Context, tontineID string, number int) (tontine.Round, error)
	ListRounds(ctx context.Context, tontineID string) ([]tontine.Round, error)
	// ListOverdueRounds returns PENDING rounds due before the cutoff, across
	// all tontines.
	ListOverdueRounds(ctx context.Context, cutoff time.Time) ([]tontine.Round, error)
	UpdateRound(ctx context.Context, r tontine.Round) (tontine.Round, error)

	CreateEscrow(ctx context.Context, e tontine.Escrow) (tontine.Escrow, error)
	GetEscrowByTontine(ctx context.Context, tontineID string) (tontine.Escrow, error)
	UpdateEscrow(ctx context.Context, e tontine.Escrow) (tontine.Escrow, error)

	CreatePenalty(ctx context.Context, p tontine.Penalty) (tontine.Penalty, error)
	GetPenalty(ctx context.Context, id string) (tontine.Penalty, error)
	ListPenalties(ctx context.Context, f PenaltyFilter) ([]tontine.Penalty, error)
	UpdatePenalty(ctx context.Context, p tontine.Penalty) (tontine.Penalty, error)
}

// Tx is the set of stores bound to one atomic scope. Everything executed
// against a Tx either commits together or rolls back together.
type Tx interface {
	WalletStore
	JournalStore
	DebtStore
	TierStore
	TontineStore
}

// Store serves reads outside any scope and opens atomic scopes for the
// balance-affecting operations. One logical operation maps to one scope.
type Store interface {
	Tx

	// Atomic runs fn inside a transactional scope. A non-nil error from fn
	// rolls back every mutation made through tx; nil commits them.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
