package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/cache"
	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/lock"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/rs/zerolog"
)

// CreateOptions carries optional hints for GetOrCreate
type CreateOptions struct {
	SummaryHint string
	SlugHint    string
}

// ArticleService defines the interface for article operations
type ArticleService interface {
	GetOrCreate(ctx context.Context, topic string, opts CreateOptions) (*models.Article, bool, error)
	IncomingBriefings(ctx context.Context, slug string) ([]models.LinkBriefing, error)
	GetBySlug(ctx context.Context, slug string) (*models.Article, error)
	Latest(ctx context.Context, limit int) ([]models.ArticleListItem, error)
	Random(ctx context.Context, limit int) ([]models.ArticleListItem, error)
	Delete(ctx context.Context, slug string) error
	Regenerate(ctx context.Context, slug string) error
	EnforceDailyLimit(ctx context.Context) error
	RefreshSummary(ctx context.Context, article *models.Article) error
	Render(article *models.Article) (*models.ArticleResponse, error)
	RebuildOutgoingLinks(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// SearchService defines the interface for catalogue search
type SearchService interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error
	GetCount(ctx context.Context) (int, error)
}

// ImportService defines the interface for catalogue restores
type ImportService interface {
	ImportNDJSON(ctx context.Context, r io.Reader) (*models.ImportResult, error)
}

// MaintenanceService defines the interface for the background worker
type MaintenanceService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	RunOnce(ctx context.Context)
}

// Services holds all service interfaces
type Services struct {
	Article     ArticleService
	Search      SearchService
	Export      ExportService
	Import      ImportService
	Maintenance MaintenanceService
}

// Deps are the collaborators shared by the services
type Deps struct {
	Repos     *repository.Repositories
	Generator generator.ContentGenerator
	Cache     cache.SearchCache
	// Now overrides the clock, mainly for tests
	Now func() time.Time
}

// NewServices creates all services
func NewServices(deps Deps, cfg *config.Config, log zerolog.Logger) *Services {
	if deps.Cache == nil {
		deps.Cache = cache.NoopSearchCache{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	locks := lock.NewManager(deps.Repos.Lock, cfg.Encyclopedia.LockTTL, log, lock.WithClock(deps.Now))
	articleSvc := newArticleService(deps, locks, cfg, log)

	return &Services{
		Article:     articleSvc,
		Search:      newSearchService(deps, cfg, log),
		Export:      newExportService(deps.Repos, log),
		Import:      newImportService(deps.Repos, deps.Cache, cfg, log),
		Maintenance: newMaintenanceService(deps.Repos.Article, articleSvc, locks, cfg, log),
	}
}
