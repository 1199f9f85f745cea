package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/database"
	"github.com/encyclopedai/encyclopedai/internal/models"
)

// lockRepo is the concrete implementation of LockRepository
type lockRepo struct {
	db *database.DB
}

// NewLockRepo creates a new creation lock repository
func NewLockRepo(db *database.DB) LockRepository {
	return &lockRepo{db: db}
}

// Acquire runs the whole check-and-claim sequence in one transaction. The
// existing row, if any, is locked with FOR UPDATE so two requests can never
// both observe it as expired and take it over.
func (r *lockRepo) Acquire(ctx context.Context, lock *models.ArticleCreationLock, now time.Time) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM article_creation_locks WHERE expires_at < $1`, now,
		); err != nil {
			return err
		}

		var existing models.ArticleCreationLock
		err := tx.QueryRowContext(ctx, `
			SELECT slug, title, token, expires_at, created_at, updated_at
			FROM article_creation_locks
			WHERE slug = $1
			FOR UPDATE
		`, lock.Slug).Scan(
			&existing.Slug, &existing.Title, &existing.Token,
			&existing.ExpiresAt, &existing.CreatedAt, &existing.UpdatedAt,
		)

		switch {
		case err == nil:
			if !existing.Expired(now) {
				return &models.CreationInProgressError{Slug: lock.Slug, Title: existing.Title}
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE article_creation_locks
				SET title = $1, token = $2, expires_at = $3, updated_at = $4
				WHERE slug = $5
			`, lock.Title, lock.Token, lock.ExpiresAt, now, lock.Slug)
			if err != nil {
				return err
			}
			lock.CreatedAt = existing.CreatedAt
			lock.UpdatedAt = now
			return nil

		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx, `
				INSERT INTO article_creation_locks (slug, title, token, expires_at, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $5)
				ON CONFLICT (slug) DO NOTHING
			`, lock.Slug, lock.Title, lock.Token, lock.ExpiresAt, now)
			if err != nil {
				return err
			}
			if rows, _ := result.RowsAffected(); rows == 0 {
				// A concurrent request inserted first and still holds it
				return &models.CreationInProgressError{Slug: lock.Slug, Title: holderTitle(ctx, tx, lock)}
			}
			lock.CreatedAt = now
			lock.UpdatedAt = now
			return nil

		default:
			return err
		}
	})
}

// holderTitle reads the title of the row that won the insert race. The
// requested title is used if the winner already released it.
func holderTitle(ctx context.Context, tx *sql.Tx, lock *models.ArticleCreationLock) string {
	var title string
	err := tx.QueryRowContext(ctx,
		`SELECT title FROM article_creation_locks WHERE slug = $1`, lock.Slug,
	).Scan(&title)
	if err != nil || title == "" {
		return lock.Title
	}
	return title
}

// Release deletes the lock only if the token still matches
func (r *lockRepo) Release(ctx context.Context, slug, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM article_creation_locks WHERE slug = $1 AND token = $2`,
		slug, token,
	)
	return err
}

// PurgeExpired deletes every lock that expired before now
func (r *lockRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM article_creation_locks WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountActive returns the number of unexpired locks
func (r *lockRepo) CountActive(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM article_creation_locks WHERE expires_at >= $1`, now,
	).Scan(&count)
	return count, err
}
