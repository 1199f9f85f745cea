package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/cache"
	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/encyclopedai/encyclopedai/internal/lock"
	"github.com/encyclopedai/encyclopedai/internal/markdown"
	"github.com/encyclopedai/encyclopedai/internal/metrics"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/encyclopedai/encyclopedai/internal/slug"
	"github.com/rs/zerolog"
)

// lockReleaseTimeout bounds the release of a creation lock after the
// request context is gone
const lockReleaseTimeout = 5 * time.Second

// articleService is the concrete implementation of ArticleService
type articleService struct {
	articles   repository.ArticleRepository
	locks      *lock.Manager
	gen        generator.ContentGenerator
	cache      cache.SearchCache
	briefings  *briefingCollector
	dailyLimit int
	now        func() time.Time
	log        zerolog.Logger
}

// newArticleService creates a new ArticleService
func newArticleService(deps Deps, locks *lock.Manager, cfg *config.Config, log zerolog.Logger) *articleService {
	return &articleService{
		articles:   deps.Repos.Article,
		locks:      locks,
		gen:        deps.Generator,
		cache:      deps.Cache,
		briefings:  newBriefingCollector(deps.Repos.Article),
		dailyLimit: cfg.Encyclopedia.DailyArticleLimit,
		now:        deps.Now,
		log:        log.With().Str("service", "article").Logger(),
	}
}

// GetOrCreate returns the article for topic, generating it when the
// catalogue has no match. Concurrent callers for the same slug are
// serialized through the creation lock; losers get
// *models.CreationInProgressError.
func (s *articleService) GetOrCreate(ctx context.Context, topic string, opts CreateOptions) (*models.Article, bool, error) {
	title := strings.TrimSpace(topic)
	if title == "" {
		return nil, false, fmt.Errorf("%w: topic must not be empty", models.ErrInvalidInput)
	}
	summary := strings.TrimSpace(opts.SummaryHint)

	existing, err := s.articles.GetByTitle(ctx, title)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up title: %w", err)
	}
	if existing != nil {
		return s.existing(ctx, existing, summary)
	}

	preferred := ""
	if opts.SlugHint != "" {
		preferred = slug.Normalize(opts.SlugHint)
	}
	if preferred != "" {
		existing, err := s.articles.GetBySlug(ctx, preferred)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up slug: %w", err)
		}
		if existing != nil {
			return s.existing(ctx, existing, summary)
		}
	}

	// A disambiguated title beats a hint that lost its parentheses
	if titleSlug := slug.Normalize(title); titleSlug != "" {
		if slug.HasParentheses(title) && slug.HasParentheses(titleSlug) && preferred != "" && !slug.HasParentheses(preferred) {
			preferred = titleSlug
		} else if preferred == "" {
			preferred = titleSlug
		}
	}
	if preferred == "" {
		preferred = slug.Fallback()
	}

	if existing, err = s.articles.GetBySlug(ctx, preferred); err != nil {
		return nil, false, fmt.Errorf("failed to look up slug: %w", err)
	}
	if existing != nil {
		return s.existing(ctx, existing, summary)
	}

	if err := s.EnforceDailyLimit(ctx); err != nil {
		if errors.Is(err, models.ErrDailyLimitExceeded) {
			metrics.RecordMaterialization("quota")
		}
		return nil, false, err
	}

	token, err := s.locks.Acquire(ctx, preferred, title)
	if err != nil {
		if errors.Is(err, models.ErrCreationInProgress) {
			metrics.RecordMaterialization("in_progress")
		}
		return nil, false, err
	}
	defer s.release(ctx, preferred, token)

	if existing, err = s.articles.GetBySlug(ctx, preferred); err != nil {
		return nil, false, fmt.Errorf("failed to look up slug: %w", err)
	}
	if existing != nil {
		return s.existing(ctx, existing, summary)
	}

	briefings, err := s.briefings.collect(ctx, preferred, DefaultBriefingOptions)
	if err != nil {
		return nil, false, fmt.Errorf("failed to collect link briefings: %w", err)
	}

	content, err := s.gen.GenerateContent(ctx, generator.GenerateRequest{
		Topic:       title,
		SummaryHint: summary,
		Briefings:   briefings,
	})
	if err != nil {
		metrics.RecordMaterialization("failed")
		s.log.Error().Err(err).Str("topic", title).Str("slug", preferred).Msg("Article generation failed")
		return nil, false, err
	}

	article, created, err := s.articles.GetOrCreate(ctx, &models.Article{
		Title:          title,
		Slug:           preferred,
		Content:        content,
		SummarySnippet: summary,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store article: %w", err)
	}
	if !created {
		return s.existing(ctx, article, summary)
	}

	metrics.RecordMaterialization("created")
	s.invalidateSearch(ctx)
	s.log.Info().
		Int64("article_id", article.ID).
		Str("slug", article.Slug).
		Int("briefings", len(briefings)).
		Msg("Article created")
	return article, true, nil
}

// existing applies a newer summary hint to an article that is already stored
func (s *articleService) existing(ctx context.Context, article *models.Article, summary string) (*models.Article, bool, error) {
	metrics.RecordMaterialization("existing")
	if summary != "" && article.SummarySnippet != summary {
		if err := s.articles.UpdateSummary(ctx, article.ID, summary); err != nil {
			return nil, false, fmt.Errorf("failed to update summary: %w", err)
		}
		article.SummarySnippet = summary
	}
	return article, false, nil
}

func (s *articleService) release(ctx context.Context, key, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := s.locks.Release(releaseCtx, key, token); err != nil {
		s.log.Warn().Err(err).Str("slug", key).Msg("Lock release failed, waiting for expiry")
	}
}

func (s *articleService) invalidateSearch(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Search cache invalidation failed")
	}
}

// IncomingBriefings returns excerpts of articles linking to slug. The slug
// is normalized first, so raw path segments are accepted.
func (s *articleService) IncomingBriefings(ctx context.Context, rawSlug string) ([]models.LinkBriefing, error) {
	cleaned := slug.Normalize(strings.TrimSpace(rawSlug))
	if cleaned == "" {
		return []models.LinkBriefing{}, nil
	}
	return s.briefings.collect(ctx, cleaned, DefaultBriefingOptions)
}

// GetBySlug returns models.ErrNotFound when the slug has no article
func (s *articleService) GetBySlug(ctx context.Context, slugValue string) (*models.Article, error) {
	article, err := s.articles.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, models.ErrNotFound
	}
	return article, nil
}

func (s *articleService) Latest(ctx context.Context, limit int) ([]models.ArticleListItem, error) {
	articles, err := s.articles.Latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toListItems(articles), nil
}

func (s *articleService) Random(ctx context.Context, limit int) ([]models.ArticleListItem, error) {
	articles, err := s.articles.Random(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toListItems(articles), nil
}

func toListItems(articles []*models.Article) []models.ArticleListItem {
	items := make([]models.ArticleListItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, models.ArticleListItem{
			ID:             a.ID,
			Title:          a.Title,
			Slug:           a.Slug,
			URL:            a.URL(),
			SummarySnippet: a.SummarySnippet,
			Preview:        markdown.Preview(a.Content),
			CreatedAt:      a.CreatedAt,
		})
	}
	return items
}

// Delete removes an article. Returns models.ErrNotFound for unknown slugs.
func (s *articleService) Delete(ctx context.Context, slugValue string) error {
	deleted, err := s.articles.Delete(ctx, slugValue)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if !deleted {
		return models.ErrNotFound
	}
	s.invalidateSearch(ctx)
	s.log.Info().Str("slug", slugValue).Msg("Article deleted")
	return nil
}

// Regenerate drops the stored article so the next fetch generates it anew
func (s *articleService) Regenerate(ctx context.Context, slugValue string) error {
	if err := s.Delete(ctx, slugValue); err != nil {
		return err
	}
	s.log.Info().Str("slug", slugValue).Msg("Article queued for regeneration")
	return nil
}

// EnforceDailyLimit returns models.ErrDailyLimitExceeded once the number of
// articles created since midnight UTC reaches the configured limit
func (s *articleService) EnforceDailyLimit(ctx context.Context) error {
	count, err := s.articles.CountCreatedSince(ctx, startOfDay(s.now()))
	if err != nil {
		return fmt.Errorf("failed to count articles: %w", err)
	}
	if count >= s.dailyLimit {
		return models.ErrDailyLimitExceeded
	}
	return nil
}

// startOfDay is pinned to UTC so every instance agrees on the quota day
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RefreshSummary asks the provider for a fresh summary and stores it when it
// is non-empty and differs from the current one
func (s *articleService) RefreshSummary(ctx context.Context, article *models.Article) error {
	summary, err := s.gen.GenerateSummary(ctx, article.Title, article.Content)
	if err != nil {
		return err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" || summary == article.SummarySnippet {
		return nil
	}
	if err := s.articles.UpdateSummary(ctx, article.ID, summary); err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}
	article.SummarySnippet = summary
	return nil
}

// Render converts the article body to sanitized HTML
func (s *articleService) Render(article *models.Article) (*models.ArticleResponse, error) {
	html, err := markdown.Render(article.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to render article %s: %w", article.Slug, err)
	}
	return &models.ArticleResponse{
		Article:      *article,
		RenderedBody: html,
		URL:          article.URL(),
	}, nil
}

// RebuildOutgoingLinks recomputes outgoing_links for every article and
// returns how many rows changed
func (s *articleService) RebuildOutgoingLinks(ctx context.Context) (int, error) {
	type change struct {
		id    int64
		links []string
	}
	var changes []change

	err := s.articles.StreamAll(ctx, func(article *models.Article) error {
		outgoing := links.ExtractOutgoing(article.Content)
		if !slices.Equal(outgoing, article.OutgoingLinks) {
			changes = append(changes, change{id: article.ID, links: outgoing})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan articles: %w", err)
	}

	for _, c := range changes {
		if err := s.articles.UpdateOutgoingLinks(ctx, c.id, c.links); err != nil {
			return 0, fmt.Errorf("failed to update links for article %d: %w", c.id, err)
		}
	}

	s.log.Info().Int("updated", len(changes)).Msg("Outgoing links rebuilt")
	return len(changes), nil
}

func (s *articleService) Stats(ctx context.Context) (*models.Stats, error) {
	total, err := s.articles.Count(ctx)
	if err != nil {
		return nil, err
	}
	today, err := s.articles.CountCreatedSince(ctx, startOfDay(s.now()))
	if err != nil {
		return nil, err
	}
	active, err := s.locks.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Stats{
		Articles:     total,
		CreatedToday: today,
		DailyLimit:   s.dailyLimit,
		ActiveLocks:  active,
	}, nil
}
