package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*ResponseCacheRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := &ResponseCacheRepository{db: db, now: func() time.Time { return fixedNow }}
	return repo, mock, func() { _ = db.Close() }
}

func TestGetIgnoresExpiredRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT value, expires_at FROM llm_cache").
		WithArgs("llm_cache:abc", fixedNow).
		WillReturnError(sql.ErrNoRows)

	_, _, ok, err := repo.Lookup(context.Background(), "llm_cache:abc")
	if err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReturnsStoredValue(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	expiresAt := fixedNow.Add(time.Hour)
	mock.ExpectQuery("SELECT value, expires_at FROM llm_cache").
		WithArgs("k", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"value", "expires_at"}).AddRow(`{"answer":"x"}`, expiresAt))

	v, gotExpiry, ok, err := repo.Lookup(context.Background(), "k")
	if err != nil || !ok || v != `{"answer":"x"}` {
		t.Fatalf("unexpected result %q %v %v", v, ok, err)
	}
	if !gotExpiry.Equal(expiresAt) {
		t.Fatalf("expected expiry %v, got %v", expiresAt, gotExpiry)
	}
}

func TestSetUpsertsWithExpiry(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO llm_cache").
		WithArgs("k", "v", fixedNow.Add(24*time.Hour), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Set(context.Background(), "k", "v", 24*time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClearReportsDeletedRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM llm_cache").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.Clear(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("expected 7 deleted, got %d %v", n, err)
	}
}

func TestLenCountsLiveRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Len(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("expected 3, got %d %v", n, err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(int64(2026101501)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS llm_cache").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPurgeExpiredPropagatesErrors(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM llm_cache WHERE expires_at").
		WithArgs(fixedNow).
		WillReturnError(errors.New("conn reset"))

	if _, err := repo.PurgeExpired(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
