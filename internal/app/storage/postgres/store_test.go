package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/ledgererr"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

func newMockStore(t *testing.T, lockTimeout time.Duration) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), lockTimeout, nil), mock
}

func expectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func walletRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "owner_id", "owner_kind", "reference", "balance",
		"currency", "status", "created_at", "updated_at",
	}).AddRow("w-1", "alice", "USER", "", "150.0000", "XOF", "ACTIVE", now, now)
}

func TestGetWalletScansRow(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE id = \$1`).
		WithArgs("w-1").
		WillReturnRows(walletRows())

	w, err := store.GetWallet(context.Background(), "w-1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.ID != "w-1" || !w.Balance.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("wallet = %+v", w)
	}
	expectations(t, mock)
}

func TestGetWalletMissingMapsToNotFound(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetWallet(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want storage.ErrNotFound", err)
	}
	expectations(t, mock)
}

func TestLockTimeoutMapsToRetryableError(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectQuery(`SELECT .* FROM wallets\s+WHERE id = ANY\(\$1\)`).
		WillReturnError(&pq.Error{Code: "55P03"})

	_, err := store.LockWallets(context.Background(), "w-1", "w-2")
	if !errors.Is(err, ledgererr.ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
	if !ledgererr.Retryable(err) {
		t.Fatalf("lock timeout should be retryable")
	}
	expectations(t, mock)
}

func TestLockWalletsRowCountMismatch(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectQuery(`SELECT .* FROM wallets\s+WHERE id = ANY\(\$1\)`).
		WillReturnRows(walletRows())

	_, err := store.LockWallets(context.Background(), "w-1", "w-2")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for the missing row", err)
	}
	expectations(t, mock)
}

func TestAtomicSetsLockTimeoutAndCommits(t *testing.T) {
	store, mock := newMockStore(t, 3*time.Second)
	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '3000ms'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE id = \$1`).
		WithArgs("w-1").
		WillReturnRows(walletRows())
	mock.ExpectCommit()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.GetWallet(ctx, "w-1")
		return err
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}
	expectations(t, mock)
}

func TestAtomicRollsBackOnScopeError(t *testing.T) {
	store, mock := newMockStore(t, 0)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	expectations(t, mock)
}

func TestUpdateWalletZeroRowsIsNotFound(t *testing.T) {
	store, mock := newMockStore(t, 0)
	mock.ExpectExec(`UPDATE wallets`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateWallet(context.Background(), wallet.Wallet{
		ID:     "w-1",
		Status: wallet.StatusActive,
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	expectations(t, mock)
}
