// Package lock provides a database-backed mutex keyed by name. A holder
// proves ownership with the token returned from Acquire; a crashed holder
// is superseded once its TTL passes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTTL bounds how long a crashed holder can block a key
const DefaultTTL = 5 * time.Minute

// Manager hands out and revokes creation locks
type Manager struct {
	repo     repository.LockRepository
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
	log      zerolog.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTokenSource overrides token generation
func WithTokenSource(fn func() string) Option {
	return func(m *Manager) { m.newToken = fn }
}

// NewManager creates a lock manager. A non-positive ttl means DefaultTTL.
func NewManager(repo repository.LockRepository, ttl time.Duration, log zerolog.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		repo:     repo,
		ttl:      ttl,
		now:      time.Now,
		newToken: uuid.NewString,
		log:      log.With().Str("component", "lock").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured lock lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Acquire claims key for the caller. If another unexpired holder exists the
// error matches models.ErrCreationInProgress.
func (m *Manager) Acquire(ctx context.Context, key, label string) (string, error) {
	now := m.now()
	lock := &models.ArticleCreationLock{
		Slug:      key,
		Title:     label,
		Token:     m.newToken(),
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.repo.Acquire(ctx, lock, now); err != nil {
		var inProgress *models.CreationInProgressError
		if errors.As(err, &inProgress) {
			m.log.Debug().Str("slug", key).Msg("Lock held by another request")
			return "", err
		}
		return "", fmt.Errorf("failed to acquire lock for %s: %w", key, err)
	}

	m.log.Debug().
		Str("slug", key).
		Time("expires_at", lock.ExpiresAt).
		Msg("Lock acquired")
	return lock.Token, nil
}

// Release drops the lock if token still owns it. Releasing a lock that was
// already taken over or purged is a no-op.
func (m *Manager) Release(ctx context.Context, key, token string) error {
	if err := m.repo.Release(ctx, key, token); err != nil {
		return fmt.Errorf("failed to release lock for %s: %w", key, err)
	}
	m.log.Debug().Str("slug", key).Msg("Lock released")
	return nil
}

// PurgeExpired removes every expired lock row
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.repo.PurgeExpired(ctx, m.now())
}

// CountActive reports how many keys are currently held
func (m *Manager) CountActive(ctx context.Context) (int, error) {
	return m.repo.CountActive(ctx, m.now())
}
