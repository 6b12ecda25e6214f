// Package postgres backs the storage interfaces with PostgreSQL. Atomic
// scopes map to database transactions; wallet locks map to row locks taken
// in ascending ID order.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/debt"
	"github.com/terangapay/ledger-engine/internal/app/domain/fee"
	"github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Store implements storage.Store on a PostgreSQL pool.
type Store struct {
	queries
	db          *sqlx.DB
	lockTimeout time.Duration
	log         *logger.Logger
}

var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL and verifies the connection.
func Open(dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// New wraps an open pool. lockTimeout bounds how long an atomic scope waits
// for wallet row locks before failing with a retryable error.
func New(db *sqlx.DB, lockTimeout time.Duration, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("postgres")
	}
	return &Store{
		queries:     queries{q: db},
		db:          db,
		lockTimeout: lockTimeout,
		log:         log,
	}
}

// scope is one open transaction presented as a storage.Tx.
type scope struct {
	queries
}

var _ storage.Tx = (*scope)(nil)

// Atomic runs fn inside one database transaction. The scope's lock_timeout
// is set so a contended wallet lock surfaces as ledgererr.ErrLockTimeout
// instead of blocking the scope indefinitely.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			dbtx.Rollback() //nolint:errcheck
			panic(p)
		}
	}()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := dbtx.ExecContext(ctx, timeout); err != nil {
			dbtx.Rollback() //nolint:errcheck
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(ctx, &scope{queries{q: dbtx}}); err != nil {
		if rbErr := dbtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("rollback", "error", rbErr)
		}
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapError(err))
	}
	return nil
}

// queries carries every store method. It runs against the pool outside a
// scope and against the transaction inside one.
type queries struct {
	q sqlx.ExtContext
}

// mapError folds driver errors into the storage taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "55P03" { // lock_not_available
		return ledgererr.ErrLockTimeout
	}
	return err
}

func newID() string { return uuid.NewString() }

func toNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

// --- wallets ---

type walletRow struct {
	ID        string          `db:"id"`
	OwnerID   string          `db:"owner_id"`
	OwnerKind string          `db:"owner_kind"`
	Reference string          `db:"reference"`
	Balance   decimal.Decimal `db:"balance"`
	Currency  string          `db:"currency"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r walletRow) toDomain() wallet.Wallet {
	return wallet.Wallet{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		OwnerKind: wallet.OwnerKind(r.OwnerKind),
		Reference: r.Reference,
		Balance:   r.Balance,
		Currency:  r.Currency,
		Status:    wallet.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const walletColumns = `id, owner_id, owner_kind, reference, balance, currency, status, created_at, updated_at`

func (s queries) CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	if w.ID == "" {
		w.ID = newID()
	}
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO wallets (`+walletColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.OwnerID, string(w.OwnerKind), w.Reference, w.Balance, w.Currency,
		string(w.Status), w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("insert wallet: %w", mapError(err))
	}
	return w, nil
}

func (s queries) GetWallet(ctx context.Context, id string) (wallet.Wallet, error) {
	var row walletRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	if err != nil {
		return wallet.Wallet{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) GetWalletByOwner(ctx context.Context, ownerID string) (wallet.Wallet, error) {
	var row walletRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
	if err != nil {
		return wallet.Wallet{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) LockWallets(ctx context.Context, ids ...string) ([]wallet.Wallet, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var rows []walletRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+walletColumns+` FROM wallets
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, pq.Array(sorted))
	if err != nil {
		return nil, mapError(err)
	}
	if len(rows) != len(sorted) {
		return nil, storage.ErrNotFound
	}
	out := make([]wallet.Wallet, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) UpdateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	w.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, status = $2, reference = $3, updated_at = $4
		WHERE id = $5`,
		w.Balance, string(w.Status), w.Reference, w.UpdatedAt, w.ID)
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("update wallet: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wallet.Wallet{}, storage.ErrNotFound
	}
	return s.GetWallet(ctx, w.ID)
}

// --- journal ---

type entryRow struct {
	ID           string          `db:"id"`
	Type         string          `db:"entry_type"`
	Status       string          `db:"status"`
	Amount       decimal.Decimal `db:"amount"`
	PlatformFee  decimal.Decimal `db:"platform_fee"`
	Tax          decimal.Decimal `db:"tax"`
	PartnerFee   decimal.Decimal `db:"partner_fee"`
	Total        decimal.Decimal `db:"total"`
	SenderID     string          `db:"sender_id"`
	ReceiverID   string          `db:"receiver_id"`
	ReceiverKind string          `db:"receiver_kind"`
	Method       string          `db:"method"`
	Provider     string          `db:"provider"`
	ParentID     string          `db:"parent_id"`
	RetryCount   int             `db:"retry_count"`
	FailureCause string          `db:"failure_cause"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
	CompletedAt  sql.NullTime    `db:"completed_at"`
}

func (r entryRow) toDomain() journal.Entry {
	return journal.Entry{
		ID:           r.ID,
		Type:         journal.EntryType(r.Type),
		Status:       journal.EntryStatus(r.Status),
		Amount:       r.Amount,
		PlatformFee:  r.PlatformFee,
		Tax:          r.Tax,
		PartnerFee:   r.PartnerFee,
		Total:        r.Total,
		SenderID:     r.SenderID,
		ReceiverID:   r.ReceiverID,
		ReceiverKind: journal.ReceiverKind(r.ReceiverKind),
		Method:       r.Method,
		Provider:     r.Provider,
		ParentID:     r.ParentID,
		RetryCount:   r.RetryCount,
		FailureCause: r.FailureCause,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CompletedAt:  fromNullTime(r.CompletedAt),
	}
}

const entryColumns = `id, entry_type, status, amount, platform_fee, tax, partner_fee, total,
	sender_id, receiver_id, receiver_kind, method, provider, parent_id,
	retry_count, failure_cause, created_at, updated_at, completed_at`

func (s queries) CreateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		e.ID, string(e.Type), string(e.Status), e.Amount, e.PlatformFee, e.Tax, e.PartnerFee, e.Total,
		e.SenderID, e.ReceiverID, string(e.ReceiverKind), e.Method, e.Provider, e.ParentID,
		e.RetryCount, e.FailureCause, e.CreatedAt, e.UpdatedAt, toNullTime(e.CompletedAt))
	if err != nil {
		return journal.Entry{}, fmt.Errorf("insert entry: %w", mapError(err))
	}
	return e, nil
}

func (s queries) UpdateEntry(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE journal_entries
		SET status = $1, retry_count = $2, failure_cause = $3, updated_at = $4, completed_at = $5
		WHERE id = $6`,
		string(e.Status), e.RetryCount, e.FailureCause, e.UpdatedAt, toNullTime(e.CompletedAt), e.ID)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("update entry: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return journal.Entry{}, storage.ErrNotFound
	}
	return s.GetEntry(ctx, e.ID)
}

func (s queries) GetEntry(ctx context.Context, id string) (journal.Entry, error) {
	var row entryRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id)
	if err != nil {
		return journal.Entry{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) ListEntries(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.ActorID != "" {
		p := arg(f.ActorID)
		query += ` AND (sender_id = ` + p + ` OR receiver_id = ` + p + `)`
	}
	if f.Type != "" {
		query += ` AND entry_type = ` + arg(string(f.Type))
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(string(f.Status))
	}
	if !f.From.IsZero() {
		query += ` AND created_at >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		query += ` AND created_at < ` + arg(f.To)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	out := make([]journal.Entry, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// --- debts and cards ---

type debtRow struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	CardID    string          `db:"card_id"`
	Amount    decimal.Decimal `db:"amount"`
	Label     string          `db:"label"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r debtRow) toDomain() debt.Debt {
	return debt.Debt{
		ID: r.ID, UserID: r.UserID, CardID: r.CardID, Amount: r.Amount,
		Label: r.Label, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (s queries) CreateDebt(ctx context.Context, d debt.Debt) (debt.Debt, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO debts (id, user_id, card_id, amount, label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.UserID, d.CardID, d.Amount, d.Label, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return debt.Debt{}, fmt.Errorf("insert debt: %w", mapError(err))
	}
	return d, nil
}

func (s queries) ListDebtsByUser(ctx context.Context, userID string) ([]debt.Debt, error) {
	var rows []debtRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, user_id, card_id, amount, label, created_at, updated_at
		FROM debts WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]debt.Debt, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) UpdateDebt(ctx context.Context, d debt.Debt) (debt.Debt, error) {
	d.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE debts SET amount = $1, label = $2, updated_at = $3 WHERE id = $4`,
		d.Amount, d.Label, d.UpdatedAt, d.ID)
	if err != nil {
		return debt.Debt{}, fmt.Errorf("update debt: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return debt.Debt{}, storage.ErrNotFound
	}
	return d, nil
}

func (s queries) DeleteDebt(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM debts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete debt: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type cardRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	Label           string    `db:"label"`
	RejectionStreak int       `db:"rejection_streak"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r cardRow) toDomain() debt.Card {
	return debt.Card{
		ID: r.ID, UserID: r.UserID, Label: r.Label,
		RejectionStreak: r.RejectionStreak, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (s queries) CreateCard(ctx context.Context, c debt.Card) (debt.Card, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cards (id, user_id, label, rejection_streak, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Label, c.RejectionStreak, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return debt.Card{}, fmt.Errorf("insert card: %w", mapError(err))
	}
	return c, nil
}

func (s queries) GetCard(ctx context.Context, id string) (debt.Card, error) {
	var row cardRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT id, user_id, label, rejection_streak, created_at, updated_at
		FROM cards WHERE id = $1`, id)
	if err != nil {
		return debt.Card{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) GetCardByUser(ctx context.Context, userID string) (debt.Card, error) {
	var row cardRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT id, user_id, label, rejection_streak, created_at, updated_at
		FROM cards WHERE user_id = $1
		ORDER BY created_at LIMIT 1`, userID)
	if err != nil {
		return debt.Card{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) UpdateCard(ctx context.Context, c debt.Card) (debt.Card, error) {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE cards SET label = $1, rejection_streak = $2, updated_at = $3 WHERE id = $4`,
		c.Label, c.RejectionStreak, c.UpdatedAt, c.ID)
	if err != nil {
		return debt.Card{}, fmt.Errorf("update card: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return debt.Card{}, storage.ErrNotFound
	}
	return c, nil
}

// --- commission tiers ---

type tierRow struct {
	ID        string          `db:"id"`
	Min       decimal.Decimal `db:"tier_min"`
	Max       decimal.Decimal `db:"tier_max"`
	Percent   decimal.Decimal `db:"percent"`
	Flat      decimal.Decimal `db:"flat"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r tierRow) toDomain() fee.CommissionTier {
	return fee.CommissionTier{
		ID: r.ID, Min: r.Min, Max: r.Max, Percent: r.Percent, Flat: r.Flat,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (s queries) CreateTier(ctx context.Context, t fee.CommissionTier) (fee.CommissionTier, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO commission_tiers (id, tier_min, tier_max, percent, flat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Min, t.Max, t.Percent, t.Flat, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fee.CommissionTier{}, fmt.Errorf("insert tier: %w", mapError(err))
	}
	return t, nil
}

func (s queries) ListTiers(ctx context.Context) ([]fee.CommissionTier, error) {
	var rows []tierRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, tier_min, tier_max, percent, flat, created_at, updated_at
		FROM commission_tiers ORDER BY tier_min`)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]fee.CommissionTier, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}
