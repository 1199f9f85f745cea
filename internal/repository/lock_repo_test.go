package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/encyclopedai/encyclopedai/internal/database"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/rs/zerolog"
)

var lockColumns = []string{"slug", "title", "token", "expires_at", "created_at", "updated_at"}

func newMockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return database.Wrap(conn, zerolog.Nop()), mock
}

func newLock(now time.Time) *models.ArticleCreationLock {
	return &models.ArticleCreationLock{
		Slug:      "alan-turing",
		Title:     "Alan Turing",
		Token:     "token-1",
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func TestLockRepo_AcquireInsertsFreshLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lock := newLock(now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM article_creation_locks WHERE expires_at < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("alan-turing").
		WillReturnRows(sqlmock.NewRows(lockColumns))
	mock.ExpectExec("INSERT INTO article_creation_locks").
		WithArgs("alan-turing", "Alan Turing", "token-1", lock.ExpiresAt, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Acquire(context.Background(), lock, now); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !lock.CreatedAt.Equal(now) {
		t.Errorf("Expected CreatedAt %v, got %v", now, lock.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLockRepo_AcquireRejectsUnexpiredLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM article_creation_locks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("alan-turing").
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow("alan-turing", "ALAN TURING (mathematician)", "other-token", now.Add(time.Minute), now, now))
	mock.ExpectRollback()

	err := repo.Acquire(context.Background(), newLock(now), now)
	if !errors.Is(err, models.ErrCreationInProgress) {
		t.Fatalf("Expected ErrCreationInProgress, got %v", err)
	}
	var inProgress *models.CreationInProgressError
	if !errors.As(err, &inProgress) || inProgress.Slug != "alan-turing" {
		t.Fatalf("Expected CreationInProgressError for alan-turing, got %#v", err)
	}
	if inProgress.Title != "ALAN TURING (mathematician)" {
		t.Errorf("Expected holder's title, got %q", inProgress.Title)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLockRepo_AcquireTakesOverExpiredLock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	created := now.Add(-10 * time.Minute)
	lock := newLock(now)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM article_creation_locks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("alan-turing").
		WillReturnRows(sqlmock.NewRows(lockColumns).
			AddRow("alan-turing", "Alan Turing", "stale-token", now, created, created))
	mock.ExpectExec("UPDATE article_creation_locks").
		WithArgs("Alan Turing", "token-1", lock.ExpiresAt, now, "alan-turing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Acquire(context.Background(), lock, now); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !lock.CreatedAt.Equal(created) {
		t.Errorf("Expected original CreatedAt to be kept, got %v", lock.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLockRepo_AcquireLosesInsertRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM article_creation_locks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows(lockColumns))
	mock.ExpectExec("INSERT INTO article_creation_locks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT title FROM article_creation_locks WHERE slug = $1")).
		WithArgs("alan-turing").
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("Turing, Alan"))
	mock.ExpectRollback()

	err := repo.Acquire(context.Background(), newLock(now), now)
	if !errors.Is(err, models.ErrCreationInProgress) {
		t.Fatalf("Expected ErrCreationInProgress, got %v", err)
	}
	var inProgress *models.CreationInProgressError
	if !errors.As(err, &inProgress) || inProgress.Title != "Turing, Alan" {
		t.Errorf("Expected winner's title, got %#v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLockRepo_AcquireRollsBackOnQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)
	now := time.Now()
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM article_creation_locks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnError(boom)
	mock.ExpectRollback()

	if err := repo.Acquire(context.Background(), newLock(now), now); !errors.Is(err, boom) {
		t.Fatalf("Expected query error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLockRepo_ReleaseMatchesToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM article_creation_locks WHERE slug = $1 AND token = $2")).
		WithArgs("alan-turing", "token-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Release(context.Background(), "alan-turing", "token-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestLockRepo_PurgeExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLockRepo(db)
	now := time.Now()

	mock.ExpectExec("DELETE FROM article_creation_locks WHERE expires_at").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := repo.PurgeExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 3 {
		t.Errorf("Expected 3 purged, got %d", purged)
	}
}
