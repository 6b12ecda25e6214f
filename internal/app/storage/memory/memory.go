// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sync"

	"github.com/terangapay/ledger-engine/internal/app/domain/debt"
	"github.com/terangapay/ledger-engine/internal/app/domain/fee"
	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

// state holds every table. All records are value types, so copying the maps
// is a full snapshot.
type state struct {
	nextID           int64
	wallets          map[string]wallet.Wallet
	walletsByOwner   map[string]string
	entries          map[string]journal.Entry
	debts            map[string]debt.Debt
	cards            map[string]debt.Card
	cardsByUser      map[string]string
	tiers            map[string]fee.CommissionTier
	tontines         map[string]tontine.Tontine
	tontinesByInvite map[string]string
	members          map[string]tontine.Member
	contributions    map[string]tontine.Contribution
	rounds           map[string]tontine.Round
	escrowsByTontine map[string]tontine.Escrow
	penalties        map[string]tontine.Penalty
}

func newState() *state {
	return &state{
		nextID:           1,
		wallets:          make(map[string]wallet.Wallet),
		walletsByOwner:   make(map[string]string),
		entries:          make(map[string]journal.Entry),
		debts:            make(map[string]debt.Debt),
		cards:            make(map[string]debt.Card),
		cardsByUser:      make(map[string]string),
		tiers:            make(map[string]fee.CommissionTier),
		tontines:         make(map[string]tontine.Tontine),
		tontinesByInvite: make(map[string]string),
		members:          make(map[string]tontine.Member),
		contributions:    make(map[string]tontine.Contribution),
		rounds:           make(map[string]tontine.Round),
		escrowsByTontine: make(map[string]tontine.Escrow),
		penalties:        make(map[string]tontine.Penalty),
	}
}

func (st *state) clone() *state {
	dup := newState()
	dup.nextID = st.nextID
	for k, v := range st.wallets {
		dup.wallets[k] = v
	}
	for k, v := range st.walletsByOwner {
		dup.walletsByOwner[k] = v
	}
	for k, v := range st.entries {
		dup.entries[k] = v
	}
	for k, v := range st.debts {
		dup.debts[k] = v
	}
	for k, v := range st.cards {
		dup.cards[k] = v
	}
	for k, v := range st.cardsByUser {
		dup.cardsByUser[k] = v
	}
	for k, v := range st.tiers {
		dup.tiers[k] = v
	}
	for k, v := range st.tontines {
		dup.tontines[k] = v
	}
	for k, v := range st.tontinesByInvite {
		dup.tontinesByInvite[k] = v
	}
	for k, v := range st.members {
		dup.members[k] = v
	}
	for k, v := range st.contributions {
		dup.contributions[k] = v
	}
	for k, v := range st.rounds {
		dup.rounds[k] = v
	}
	for k, v := range st.escrowsByTontine {
		dup.escrowsByTontine[k] = v
	}
	for k, v := range st.penalties {
		dup.penalties[k] = v
	}
	return dup
}

// Store is the in-memory store. Atomic scopes run against a snapshot that is
// swapped in only when the scope body succeeds, so a failing scope leaves the
// observable state untouched.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// Atomic serializes scopes with the store mutex and runs fn against a cloned
// state. The clone replaces the live state only on success.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	child := &Store{st: s.st.clone()}
	if err := fn(ctx, child); err != nil {
		return err
	}
	s.st = child.st
	return nil
}

func (s *Store) nextIDLocked() string {
	id := s.st.nextID
	s.st.nextID++
	return fmt.Sprintf("%d", id)
}

// --- WalletStore -------------------------------------------------------------

func (s *Store) CreateWallet(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = s.nextIDLocked()
	}
	if _, exists := s.st.wallets[w.ID]; exists {
		return wallet.Wallet{}, fmt.Errorf("wallet %s already exists", w.ID)
	}
	if _, exists := s.st.walletsByOwner[w.OwnerID]; exists {
		return wallet.Wallet{}, fmt.Errorf("owner %s already has a wallet", w.OwnerID)
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	s.st.wallets[w.ID] = w
	s.st.walletsByOwner[w.OwnerID] = w.ID
	return w, nil
}

func (s *Store) GetWallet(_ context.Context, id string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.st.wallets[id]
	if !ok {
		return wallet.Wallet{}, storage.ErrNotFound
	}
	return w, nil
}

func (s *Store) GetWalletByOwner(_ context.Context, ownerID string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.st.walletsByOwner[ownerID]
	if !ok {
		return wallet.Wallet{}, storage.ErrNotFound
	}
	return s.st.wallets[id], nil
}

func (s *Store) LockWallets(_ context.Context, ids ...string) ([]wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	result := make([]wallet.Wallet, 0, len(sorted))
	for _, id := range sorted {
		w, ok := s.st.wallets[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		result = append(result, w)
	}
	return result, nil
}

func (s *Store) UpdateWallet(_ context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.wallets[w.ID]
	if !ok {
		return wallet.Wallet{}, storage.ErrNotFound
	}
	w.OwnerID = existing.OwnerID
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC()
	s.st.wallets[w.ID] = w
	return w, nil
}

// --- JournalStore ------------------------------------------------------------

func (s *Store) CreateEntry(_ context.Context, e journal.Entry) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.st.entries[e.ID] = e
	return e, nil
}

func (s *Store) UpdateEntry(_ context.Context, e journal.Entry) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.entries[e.ID]
	if !ok {
		return journal.Entry{}, storage.ErrNotFound
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.st.entries[e.ID] = e
	return e, nil
}

func (s *Store) GetEntry(_ context.Context, id string) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.st.entries[id]
	if !ok {
		return journal.Entry{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEntries(_ context.Context, f journal.Filter) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []journal.Entry
	for _, e := range s.st.entries {
		if f.ActorID != "" && e.SenderID != f.ActorID && e.ReceiverID != f.ActorID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.CreatedAt.After(f.To) {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return idLess(result[i].ID, result[j].ID)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// --- DebtStore ---------------------------------------------------------------

func (s *Store) CreateDebt(_ context.Context, d debt.Debt) (debt.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.st.debts[d.ID] = d
	return d, nil
}

func (s *Store) ListDebtsByUser(_ context.Context, userID string) ([]debt.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []debt.Debt
	for _, d := range s.st.debts {
		if d.UserID == userID {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return idLess(result[i].ID, result[j].ID)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateDebt(_ context.Context, d debt.Debt) (debt.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.debts[d.ID]
	if !ok {
		return debt.Debt{}, storage.ErrNotFound
	}
	d.UserID = existing.UserID
	d.CardID = existing.CardID
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	s.st.debts[d.ID] = d
	return d, nil
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.debts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.st.debts, id)
	return nil
}

func (s *Store) CreateCard(_ context.Context, c debt.Card) (debt.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.st.cards[c.ID] = c
	s.st.cardsByUser[c.UserID] = c.ID
	return c, nil
}

func (s *Store) GetCard(_ context.Context, id string) (debt.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.st.cards[id]
	if !ok {
		return debt.Card{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetCardByUser(_ context.Context, userID string) (debt.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.st.cardsByUser[userID]
	if !ok {
		return debt.Card{}, storage.ErrNotFound
	}
	return s.st.cards[id], nil
}

func (s *Store) UpdateCard(_ context.Context, c debt.Card) (debt.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.cards[c.ID]
	if !ok {
		return debt.Card{}, storage.ErrNotFound
	}
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.st.cards[c.ID] = c
	return c, nil
}

// --- TierStore ---------------------------------------------------------------

func (s *Store) CreateTier(_ context.Context, t fee.CommissionTier) (fee.CommissionTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.st.tiers[t.ID] = t
	return t, nil
}

func (s *Store) ListTiers(_ context.Context) ([]fee.CommissionTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]fee.CommissionTier, 0, len(s.st.tiers))
	for _, t := range s.st.tiers {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Min.LessThan(result[j].Min) })
	return result, nil
}

// --- TontineStore ------------------------------------------------------------

func (s *Store) CreateTontine(_ context.Context, t tontine.Tontine) (tontine.Tontine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	}
	if _, exists := s.st.tontinesByInvite[t.InviteCode]; exists {
		return tontine.Tontine{}, fmt.Errorf("invite code %s already in use", t.InviteCode)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.st.tontines[t.ID] = t
	s.st.tontinesByInvite[t.InviteCode] = t.ID
	return t, nil
}

func (s *Store) GetTontine(_ context.Context, id string) (tontine.Tontine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.st.tontines[id]
	if !ok {
		return tontine.Tontine{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTontineByInvite(_ context.Context, code string) (tontine.Tontine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.st.tontinesByInvite[code]
	if !ok {
		return tontine.Tontine{}, storage.ErrNotFound
	}
	return s.st.tontines[id], nil
}

func (s *Store) UpdateTontine(_ context.Context, t tontine.Tontine) (tontine.Tontine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.tontines[t.ID]
	if !ok {
		return tontine.Tontine{}, storage.ErrNotFound
	}
	t.InviteCode = existing.InviteCode
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.st.tontines[t.ID] = t
	return t, nil
}

func (s *Store) ListTontines(_ context.Context) ([]tontine.Tontine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]tontine.Tontine, 0, len(s.st.tontines))
	for _, t := range s.st.tontines {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) CreateMember(_ context.Context, m tontine.Member) (tontine.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.st.members {
		if existing.TontineID == m.TontineID && existing.UserID == m.UserID {
			return tontine.Member{}, fmt.Errorf("user %s already belongs to tontine %s", m.UserID, m.TontineID)
		}
	}
	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.st.members[m.ID] = m
	return m, nil
}

func (s *Store) GetMember(_ context.Context, id string) (tontine.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.st.members[id]
	if !ok {
		return tontine.Member{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) GetMemberByUser(_ context.Context, tontineID, userID string) (tontine.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.st.members {
		if m.TontineID == tontineID && m.UserID == userID {
			return m, nil
		}
	}
	return tontine.Member{}, storage.ErrNotFound
}

func (s *Store) ListMembers(_ context.Context, tontineID string) ([]tontine.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []tontine.Member
	for _, m := range s.st.members {
		if m.TontineID == tontineID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return idLess(result[i].ID, result[j].ID)
	})
	return result, nil
}

// idLess orders generated decimal IDs numerically.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func (s *Store) UpdateMember(_ context.Context, m tontine.Member) (tontine.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.members[m.ID]
	if !ok {
		return tontine.Member{}, storage.ErrNotFound
	}
	m.TontineID = existing.TontineID
	m.UserID = existing.UserID
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	s.st.members[m.ID] = m
	return m, nil
}

func (s *Store) CreateContribution(_ context.Context, c tontine.Contribution) (tontine.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.st.contributions[c.ID] = c
	return c, nil
}

func (s *Store) GetContribution(_ context.Context, id string) (tontine.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.st.contributions[id]
	if !ok {
		return tontine.Contribution{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) GetContributionForRound(_ context.Context, memberID string, round int) (tontine.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.st.contributions {
		if c.MemberID == memberID && c.Round == round {
			return c, nil
		}
	}
	return tontine.Contribution{}, storage.ErrNotFound
}

func (s *Store) ListContributions(_ context.Context, tontineID string, round int) ([]tontine.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []tontine.Contribution
	for _, c := range s.st.contributions {
		if c.TontineID == tontineID && c.Round == round {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) UpdateContribution(_ context.Context, c tontine.Contribution) (tontine.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.contributions[c.ID]
	if !ok {
		return tontine.Contribution{}, storage.ErrNotFound
	}
	c.TontineID = existing.TontineID
	c.MemberID = existing.MemberID
	c.Round = existing.Round
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.st.contributions[c.ID] = c
	return c, nil
}

func (s *Store) CreateRound(_ context.Context, r tontine.Round) (tontine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.st.rounds[r.ID] = r
	return r, nil
}

func (s *Store) GetRound(_ context.Context, id string) (tontine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.st.rounds[id]
	if !ok {
		return tontine.Round{}, storage.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetRoundByNumber(_ context.Context, tontineID string, number int) (tontine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.st.rounds {
		if r.TontineID == tontineID && r.Number == number {
			return r, nil
		}
	}
	return tontine.Round{}, storage.ErrNotFound
}

func (s *Store) ListRounds(_ context.Context, tontineID string) ([]tontine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []tontine.Round
	for _, r := range s.st.rounds {
		if r.TontineID == tontineID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (s *Store) ListOverdueRounds(_ context.Context, cutoff time.Time) ([]tontine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []tontine.Round
	for _, r := range s.st.rounds {
		if r.State == tontine.RoundPending && !r.DueAt.IsZero() && r.DueAt.Before(cutoff) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueAt.Before(result[j].DueAt) })
	return result, nil
}

func (s *Store) UpdateRound(_ context.Context, r tontine.Round) (tontine.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.rounds[r.ID]
	if !ok {
		return tontine.Round{}, storage.ErrNotFound
	}
	r.TontineID = existing.TontineID
	r.Number = existing.Number
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.st.rounds[r.ID] = r
	return r, nil
}

func (s *Store) CreateEscrow(_ context.Context, e tontine.Escrow) (tontine.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.escrowsByTontine[e.TontineID]; exists {
		return tontine.Escrow{}, fmt.Errorf("tontine %s already has an escrow account", e.TontineID)
	}
	if e.ID == "" {
		e.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.st.escrowsByTontine[e.TontineID] = e
	return e, nil
}

func (s *Store) GetEscrowByTontine(_ context.Context, tontineID string) (tontine.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.st.escrowsByTontine[tontineID]
	if !ok {
		return tontine.Escrow{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpdateEscrow(_ context.Context, e tontine.Escrow) (tontine.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.escrowsByTontine[e.TontineID]
	if !ok {
		return tontine.Escrow{}, storage.ErrNotFound
	}
	e.ID = existing.ID
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.st.escrowsByTontine[e.TontineID] = e
	return e, nil
}

func (s *Store) CreatePenalty(_ context.Context, p tontine.Penalty) (tontine.Penalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.st.penalties[p.ID] = p
	return p, nil
}

func (s *Store) GetPenalty(_ context.Context, id string) (tontine.Penalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.st.penalties[id]
	if !ok {
		return tontine.Penalty{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPenalties(_ context.Context, f storage.PenaltyFilter) ([]tontine.Penalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []tontine.Penalty
	for _, p := range s.st.penalties {
		if f.TontineID != "" && p.TontineID != f.TontineID {
			continue
		}
		if f.MemberID != "" && p.MemberID != f.MemberID {
			continue
		}
		if f.State != "" && p.State != f.State {
			continue
		}
		if f.Round != 0 && p.Round != f.Round {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return idLess(result[i].ID, result[j].ID) })
	return result, nil
}

func (s *Store) UpdatePenalty(_ context.Context, p tontine.Penalty) (tontine.Penalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.penalties[p.ID]
	if !ok {
		return tontine.Penalty{}, storage.ErrNotFound
	}
	p.TontineID = existing.TontineID
	p.MemberID = existing.MemberID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.st.penalties[p.ID] = p
	return p, nil
}
