package repository

import (
	"context"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/database"
	"github.com/encyclopedai/encyclopedai/internal/models"
)

// ArticleRepository defines the interface for article data operations.
// Lookups that find nothing return (nil, nil).
type ArticleRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	GetByTitle(ctx context.Context, title string) (*models.Article, error)
	GetOrCreate(ctx context.Context, article *models.Article) (*models.Article, bool, error)
	BatchInsert(ctx context.Context, articles []*models.Article) (int, error)
	UpdateSummary(ctx context.Context, id int64, summary string) error
	UpdateOutgoingLinks(ctx context.Context, id int64, links []string) error
	Delete(ctx context.Context, slug string) (bool, error)
	ListLinkingTo(ctx context.Context, slug string) ([]*models.Article, error)
	ListMissingSummary(ctx context.Context, limit int) ([]*models.Article, error)
	Latest(ctx context.Context, limit int) ([]*models.Article, error)
	Random(ctx context.Context, limit int) ([]*models.Article, error)
	SearchSimilar(ctx context.Context, query string, threshold float64, limit int) ([]*models.Article, error)
	SearchSubstring(ctx context.Context, query string, limit int) ([]*models.Article, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Article) error) error
}

// LockRepository defines the interface for creation lock rows
type LockRepository interface {
	// Acquire stores lock for lock.Slug unless an unexpired lock exists,
	// in which case it returns *models.CreationInProgressError.
	Acquire(ctx context.Context, lock *models.ArticleCreationLock, now time.Time) error
	Release(ctx context.Context, slug, token string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Article ArticleRepository
	Lock    LockRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Article: NewArticleRepo(db),
		Lock:    NewLockRepo(db),
	}
}
