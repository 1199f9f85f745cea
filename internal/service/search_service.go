package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/cache"
	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/markdown"
	"github.com/encyclopedai/encyclopedai/internal/metrics"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/encyclopedai/encyclopedai/internal/slug"
	"github.com/encyclopedai/encyclopedai/internal/validation"
	"github.com/rs/zerolog"
)

const (
	// searchCandidateLimit is how many catalogue matches are briefed
	searchCandidateLimit = 5
	// maxSearchResults caps what patrons see
	maxSearchResults = 5
)

// searchService is the concrete implementation of SearchService
type searchService struct {
	articles  repository.ArticleRepository
	gen       generator.ContentGenerator
	cache     cache.SearchCache
	prefilter string
	threshold float64
	log       zerolog.Logger
}

// newSearchService creates a new SearchService
func newSearchService(deps Deps, cfg *config.Config, log zerolog.Logger) *searchService {
	return &searchService{
		articles:  deps.Repos.Article,
		gen:       deps.Generator,
		cache:     deps.Cache,
		prefilter: cfg.Encyclopedia.SearchPrefilter,
		threshold: cfg.Encyclopedia.SimilarityThreshold,
		log:       log.With().Str("service", "search").Logger(),
	}
}

// Search asks the provider for entries matching query, briefed with the
// closest catalogue articles so existing entries are linked rather than
// reinvented
func (s *searchService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: query must not be empty", models.ErrInvalidInput)
	}

	cached, hit, err := s.cache.Get(ctx, cleaned)
	if err != nil {
		s.log.Warn().Err(err).Msg("Search cache read failed")
	}
	metrics.RecordCacheLookup(hit)
	if hit {
		return cached, nil
	}

	matches, err := s.locate(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalogue: %w", err)
	}

	catalogue := make(map[int64]*models.Article, len(matches))
	candidates := make([]generator.SearchCandidate, 0, len(matches))
	for _, article := range matches {
		catalogue[article.ID] = article
		candidates = append(candidates, generator.SearchCandidate{
			ID:      article.ID,
			Title:   article.Title,
			Snippet: generator.CandidateSnippet(article),
		})
	}

	raw, err := s.gen.GenerateSearchResults(ctx, generator.SearchRequest{
		Query:      cleaned,
		Candidates: candidates,
	})
	if err != nil {
		s.log.Error().Err(err).Str("query", cleaned).Msg("Search generation failed")
		return nil, err
	}

	results, err := s.assemble(ctx, raw, catalogue)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, generator.Failed("search returned no usable results", nil)
	}

	if err := s.cache.Set(ctx, cleaned, results); err != nil {
		s.log.Warn().Err(err).Msg("Search cache write failed")
	}
	return results, nil
}

func (s *searchService) locate(ctx context.Context, query string) ([]*models.Article, error) {
	if s.prefilter == "substring" {
		return s.articles.SearchSubstring(ctx, query, searchCandidateLimit)
	}
	return s.articles.SearchSimilar(ctx, query, s.threshold, searchCandidateLimit)
}

// assemble validates provider items, assigns unique slugs and resolves
// references to existing articles
func (s *searchService) assemble(ctx context.Context, raw []generator.RawSearchResult, catalogue map[int64]*models.Article) ([]models.SearchResult, error) {
	validator := validation.NewValidator()
	used := make(map[string]bool)
	results := make([]models.SearchResult, 0, len(raw))

	for _, item := range raw {
		title := strings.TrimSpace(item.Title)
		snippet := strings.TrimSpace(item.Snippet)
		rawSlug := strings.TrimSpace(item.Slug)
		if errs := validator.ValidateSearchItem(title, snippet, rawSlug); len(errs) > 0 {
			s.log.Debug().Str("title", title).Str("reason", validation.Messages(errs)).Msg("Skipping search result")
			continue
		}

		candidate := ""
		if rawSlug != "" {
			candidate = slug.Normalize(rawSlug)
		}
		if candidate == "" {
			candidate = slug.Normalize(title)
		}
		base := candidate
		for suffix := 2; used[candidate]; suffix++ {
			candidate = fmt.Sprintf("%s-%d", base, suffix)
		}

		result := models.SearchResult{
			Title:   title,
			Snippet: markdown.RenderInlineSnippet(snippet),
			Slug:    candidate,
		}

		if item.ArticleID != nil {
			matched, err := s.resolve(ctx, *item.ArticleID, catalogue)
			if err != nil {
				return nil, err
			}
			if matched != nil {
				id := matched.ID
				result.ArticleID = &id
				result.ArticleURL = matched.URL()
				result.Slug = matched.Slug
			}
		}

		result.EntryURL = entryURL(result.Slug, title, snippet)
		used[result.Slug] = true
		results = append(results, result)
	}

	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results, nil
}

func (s *searchService) resolve(ctx context.Context, id int64, catalogue map[int64]*models.Article) (*models.Article, error) {
	if article, ok := catalogue[id]; ok {
		return article, nil
	}
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve article %d: %w", id, err)
	}
	if article != nil {
		catalogue[id] = article
	}
	return article, nil
}

// entryURL links to the pending page for slug, carrying the title and the
// unrendered snippet as hints
func entryURL(slugValue, title, snippet string) string {
	query := "title=" + url.QueryEscape(title)
	if snippet != "" {
		query += "&snippet=" + url.QueryEscape(snippet)
	}
	return models.EntryPath(slugValue) + "?" + query
}
