package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

type tontineRow struct {
	ID           string          `db:"id"`
	Name         string          `db:"name"`
	Contribution decimal.Decimal `db:"contribution"`
	Currency     string          `db:"currency"`
	Frequency    string          `db:"frequency"`
	RotationMode string          `db:"rotation_mode"`
	PayoutPolicy string          `db:"payout_policy"`
	MemberTarget int             `db:"member_target"`
	InviteCode   string          `db:"invite_code"`
	State        string          `db:"state"`
	StartedAt    sql.NullTime    `db:"started_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r tontineRow) toDomain() tontine.Tontine {
	return tontine.Tontine{
		ID:           r.ID,
		Name:         r.Name,
		Contribution: r.Contribution,
		Currency:     r.Currency,
		Frequency:    tontine.Frequency(r.Frequency),
		RotationMode: tontine.RotationMode(r.RotationMode),
		PayoutPolicy: tontine.PayoutPolicy(r.PayoutPolicy),
		MemberTarget: r.MemberTarget,
		InviteCode:   r.InviteCode,
		State:        tontine.State(r.State),
		StartedAt:    fromNullTime(r.StartedAt),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const tontineColumns = `id, name, contribution, currency, frequency, rotation_mode,
	payout_policy, member_target, invite_code, state, started_at, created_at, updated_at`

func (s queries) CreateTontine(ctx context.Context, t tontine.Tontine) (tontine.Tontine, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tontines (`+tontineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Name, t.Contribution, t.Currency, string(t.Frequency), string(t.RotationMode),
		string(t.PayoutPolicy), t.MemberTarget, t.InviteCode, string(t.State),
		toNullTime(t.StartedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return tontine.Tontine{}, fmt.Errorf("insert tontine: %w", mapError(err))
	}
	return t, nil
}

func (s queries) GetTontine(ctx context.Context, id string) (tontine.Tontine, error) {
	var row tontineRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+tontineColumns+` FROM tontines WHERE id = $1`, id)
	if err != nil {
		return tontine.Tontine{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) GetTontineByInvite(ctx context.Context, code string) (tontine.Tontine, error) {
	var row tontineRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+tontineColumns+` FROM tontines WHERE invite_code = $1`, code)
	if err != nil {
		return tontine.Tontine{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) UpdateTontine(ctx context.Context, t tontine.Tontine) (tontine.Tontine, error) {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE tontines
		SET name = $1, state = $2, started_at = $3, updated_at = $4
		WHERE id = $5`,
		t.Name, string(t.State), toNullTime(t.StartedAt), t.UpdatedAt, t.ID)
	if err != nil {
		return tontine.Tontine{}, fmt.Errorf("update tontine: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tontine.Tontine{}, storage.ErrNotFound
	}
	return s.GetTontine(ctx, t.ID)
}

func (s queries) ListTontines(ctx context.Context) ([]tontine.Tontine, error) {
	var rows []tontineRow
	err := sqlx.SelectContext(ctx, s.q, &rows,
		`SELECT `+tontineColumns+` FROM tontines ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]tontine.Tontine, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

type memberRow struct {
	ID        string       `db:"id"`
	TontineID string       `db:"tontine_id"`
	UserID    string       `db:"user_id"`
	Role      string       `db:"role"`
	State     string       `db:"state"`
	Position  int          `db:"rotation_position"`
	JoinedAt  sql.NullTime `db:"joined_at"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

func (r memberRow) toDomain() tontine.Member {
	return tontine.Member{
		ID:        r.ID,
		TontineID: r.TontineID,
		UserID:    r.UserID,
		Role:      tontine.MemberRole(r.Role),
		State:     tontine.MemberState(r.State),
		Position:  r.Position,
		JoinedAt:  fromNullTime(r.JoinedAt),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const memberColumns = `id, tontine_id, user_id, role, state, rotation_position, joined_at, created_at, updated_at`

func (s queries) CreateMember(ctx context.Context, m tontine.Member) (tontine.Member, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO tontine_members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.TontineID, m.UserID, string(m.Role), string(m.State), m.Position,
		toNullTime(m.JoinedAt), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return tontine.Member{}, fmt.Errorf("insert member: %w", mapError(err))
	}
	return m, nil
}

func (s queries) GetMember(ctx context.Context, id string) (tontine.Member, error) {
	var row memberRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+memberColumns+` FROM tontine_members WHERE id = $1`, id)
	if err != nil {
		return tontine.Member{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) GetMemberByUser(ctx context.Context, tontineID, userID string) (tontine.Member, error) {
	var row memberRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT `+memberColumns+` FROM tontine_members
		WHERE tontine_id = $1 AND user_id = $2`, tontineID, userID)
	if err != nil {
		return tontine.Member{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) ListMembers(ctx context.Context, tontineID string) ([]tontine.Member, error) {
	var rows []memberRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+memberColumns+` FROM tontine_members
		WHERE tontine_id = $1
		ORDER BY rotation_position, created_at, id`, tontineID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]tontine.Member, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) UpdateMember(ctx context.Context, m tontine.Member) (tontine.Member, error) {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE tontine_members
		SET role = $1, state = $2, rotation_position = $3, joined_at = $4, updated_at = $5
		WHERE id = $6`,
		string(m.Role), string(m.State), m.Position, toNullTime(m.JoinedAt), m.UpdatedAt, m.ID)
	if err != nil {
		return tontine.Member{}, fmt.Errorf("update member: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tontine.Member{}, storage.ErrNotFound
	}
	return m, nil
}

type contributionRow struct {
	ID        string          `db:"id"`
	TontineID string          `db:"tontine_id"`
	MemberID  string          `db:"member_id"`
	Round     int             `db:"round"`
	Amount    decimal.Decimal `db:"amount"`
	State     string          `db:"state"`
	ProofRef  string          `db:"proof_ref"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r contributionRow) toDomain() tontine.Contribution {
	return tontine.Contribution{
		ID:        r.ID,
		TontineID: r.TontineID,
		MemberID:  r.MemberID,
		Round:     r.Round,
		Amount:    r.Amount,
		State:     tontine.ContributionState(r.State),
		ProofRef:  r.ProofRef,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const contributionColumns = `id, tontine_id, member_id, round, amount, state, proof_ref, created_at, updated_at`

func (s queries) CreateContribution(ctx context.Context, c tontine.Contribution) (tontine.Contribution, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO contributions (`+contributionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.TontineID, c.MemberID, c.Round, c.Amount, string(c.State), c.ProofRef,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return tontine.Contribution{}, fmt.Errorf("insert contribution: %w", mapError(err))
	}
	return c, nil
}

func (s queries) GetContribution(ctx context.Context, id string) (tontine.Contribution, error) {
	var row contributionRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+contributionColumns+` FROM contributions WHERE id = $1`, id)
	if err != nil {
		return tontine.Contribution{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) GetContributionForRound(ctx context.Context, memberID string, round int) (tontine.Contribution, error) {
	var row contributionRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE member_id = $1 AND round = $2`, memberID, round)
	if err != nil {
		return tontine.Contribution{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) ListContributions(ctx context.Context, tontineID string, round int) ([]tontine.Contribution, error) {
	var rows []contributionRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+contributionColumns+` FROM contributions
		WHERE tontine_id = $1 AND round = $2
		ORDER BY created_at, id`, tontineID, round)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]tontine.Contribution, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) UpdateContribution(ctx context.Context, c tontine.Contribution) (tontine.Contribution, error) {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE contributions
		SET state = $1, proof_ref = $2, updated_at = $3
		WHERE id = $4`,
		string(c.State), c.ProofRef, c.UpdatedAt, c.ID)
	if err != nil {
		return tontine.Contribution{}, fmt.Errorf("update contribution: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tontine.Contribution{}, storage.ErrNotFound
	}
	return c, nil
}

type roundRow struct {
	ID        string          `db:"id"`
	TontineID string          `db:"tontine_id"`
	Number    int             `db:"number"`
	MemberID  string          `db:"member_id"`
	Amount    decimal.Decimal `db:"amount"`
	State     string          `db:"state"`
	DueAt     time.Time       `db:"due_at"`
	PaidAt    sql.NullTime    `db:"paid_at"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r roundRow) toDomain() tontine.Round {
	return tontine.Round{
		ID:        r.ID,
		TontineID: r.TontineID,
		Number:    r.Number,
		MemberID:  r.MemberID,
		Amount:    r.Amount,
		State:     tontine.RoundState(r.State),
		DueAt:     r.DueAt,
		PaidAt:    fromNullTime(r.PaidAt),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const roundColumns = `id, tontine_id, number, member_id, amount, state, due_at, paid_at, created_at, updated_at`

func (s queries) CreateRound(ctx context.Context, r tontine.Round) (tontine.Round, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.TontineID, r.Number, r.MemberID, r.Amount, string(r.State),
		r.DueAt, toNullTime(r.PaidAt), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return tontine.Round{}, fmt.Errorf("insert round: %w", mapError(err))
	}
	return r, nil
}

func (s queries) GetRound(ctx context.Context, id string) (tontine.Round, error) {
	var row roundRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	if err != nil {
		return tontine.Round{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) GetRoundByNumber(ctx context.Context, tontineID string, number int) (tontine.Round, error) {
	var row roundRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT `+roundColumns+` FROM rounds
		WHERE tontine_id = $1 AND number = $2`, tontineID, number)
	if err != nil {
		return tontine.Round{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) ListRounds(ctx context.Context, tontineID string) ([]tontine.Round, error) {
	var rows []roundRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+roundColumns+` FROM rounds
		WHERE tontine_id = $1
		ORDER BY number`, tontineID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]tontine.Round, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) ListOverdueRounds(ctx context.Context, cutoff time.Time) ([]tontine.Round, error) {
	var rows []roundRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+roundColumns+` FROM rounds
		WHERE state = $1 AND due_at < $2
		ORDER BY due_at, id`, string(tontine.RoundPending), cutoff)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]tontine.Round, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) UpdateRound(ctx context.Context, r tontine.Round) (tontine.Round, error) {
	r.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE rounds
		SET amount = $1, state = $2, due_at = $3, paid_at = $4, updated_at = $5
		WHERE id = $6`,
		r.Amount, string(r.State), r.DueAt, toNullTime(r.PaidAt), r.UpdatedAt, r.ID)
	if err != nil {
		return tontine.Round{}, fmt.Errorf("update round: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tontine.Round{}, storage.ErrNotFound
	}
	return r, nil
}

type escrowRow struct {
	ID        string          `db:"id"`
	TontineID string          `db:"tontine_id"`
	ManagerID string          `db:"manager_id"`
	Balance   decimal.Decimal `db:"balance"`
	Blocked   decimal.Decimal `db:"blocked"`
	State     string          `db:"state"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r escrowRow) toDomain() tontine.Escrow {
	return tontine.Escrow{
		ID:        r.ID,
		TontineID: r.TontineID,
		ManagerID: r.ManagerID,
		Balance:   r.Balance,
		Blocked:   r.Blocked,
		State:     tontine.EscrowState(r.State),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const escrowColumns = `id, tontine_id, manager_id, balance, blocked, state, created_at, updated_at`

func (s queries) CreateEscrow(ctx context.Context, e tontine.Escrow) (tontine.Escrow, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO escrows (`+escrowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.TontineID, e.ManagerID, e.Balance, e.Blocked, string(e.State),
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return tontine.Escrow{}, fmt.Errorf("insert escrow: %w", mapError(err))
	}
	return e, nil
}

func (s queries) GetEscrowByTontine(ctx context.Context, tontineID string) (tontine.Escrow, error) {
	var row escrowRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+escrowColumns+` FROM escrows WHERE tontine_id = $1 FOR UPDATE`, tontineID)
	if err != nil {
		return tontine.Escrow{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) UpdateEscrow(ctx context.Context, e tontine.Escrow) (tontine.Escrow, error) {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE escrows
		SET balance = $1, blocked = $2, state = $3, updated_at = $4
		WHERE id = $5`,
		e.Balance, e.Blocked, string(e.State), e.UpdatedAt, e.ID)
	if err != nil {
		return tontine.Escrow{}, fmt.Errorf("update escrow: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tontine.Escrow{}, storage.ErrNotFound
	}
	return e, nil
}

type penaltyRow struct {
	ID             string          `db:"id"`
	TontineID      string          `db:"tontine_id"`
	MemberID       string          `db:"member_id"`
	ContributionID string          `db:"contribution_id"`
	Round          int             `db:"round"`
	Kind           string          `db:"kind"`
	Amount         decimal.Decimal `db:"amount"`
	State          string          `db:"state"`
	RetryCount     int             `db:"retry_count"`
	LastChecked    sql.NullTime    `db:"last_checked"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r penaltyRow) toDomain() tontine.Penalty {
	return tontine.Penalty{
		ID:             r.ID,
		TontineID:      r.TontineID,
		MemberID:       r.MemberID,
		ContributionID: r.ContributionID,
		Round:          r.Round,
		Kind:           tontine.PenaltyKind(r.Kind),
		Amount:         r.Amount,
		State:          tontine.PenaltyState(r.State),
		RetryCount:     r.RetryCount,
		LastChecked:    fromNullTime(r.LastChecked),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const penaltyColumns = `id, tontine_id, member_id, contribution_id, round, kind, amount,
	state, retry_count, last_checked, created_at, updated_at`

func (s queries) CreatePenalty(ctx context.Context, p tontine.Penalty) (tontine.Penalty, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO penalties (`+penaltyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.TontineID, p.MemberID, p.ContributionID, p.Round, string(p.Kind), p.Amount,
		string(p.State), p.RetryCount, toNullTime(p.LastChecked), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return tontine.Penalty{}, fmt.Errorf("insert penalty: %w", mapError(err))
	}
	return p, nil
}

func (s queries) GetPenalty(ctx context.Context, id string) (tontine.Penalty, error) {
	var row penaltyRow
	err := sqlx.GetContext(ctx, s.q, &row,
		`SELECT `+penaltyColumns+` FROM penalties WHERE id = $1`, id)
	if err != nil {
		return tontine.Penalty{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s queries) ListPenalties(ctx context.Context, f storage.PenaltyFilter) ([]tontine.Penalty, error) {
	query := `SELECT ` + penaltyColumns + ` FROM penalties WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.TontineID != "" {
		query += ` AND tontine_id = ` + arg(f.TontineID)
	}
	if f.MemberID != "" {
		query += ` AND member_id = ` + arg(f.MemberID)
	}
	if f.State != "" {
		query += ` AND state = ` + arg(string(f.State))
	}
	if f.Round > 0 {
		query += ` AND round = ` + arg(f.Round)
	}
	query += ` ORDER BY created_at, id`

	var rows []penaltyRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	out := make([]tontine.Penalty, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s queries) UpdatePenalty(ctx context.Context, p tontine.Penalty) (tontine.Penalty, error) {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE penalties
		SET state = $1, retry_count = $2, last_checked = $3, updated_at = $4
		WHERE id = $5`,
		string(p.State), p.RetryCount, toNullTime(p.LastChecked), p.UpdatedAt, p.ID)
	if err != nil {
		return tontine.Penalty{}, fmt.Errorf("update penalty: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tontine.Penalty{}, storage.ErrNotFound
	}
	return p, nil
}
