package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/service"
	"github.com/encyclopedai/encyclopedai/internal/slug"
	"github.com/encyclopedai/encyclopedai/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	latestArticleCount = 4
	randomArticleCount = 20
)

// Patron-facing messages
const (
	msgBotsRefused       = "I'm sorry, the archivists do not work for bots."
	msgInProgress        = "Another archivist is already transcribing that entry. The reading room will refresh when the volume is shelved."
	msgArchivesSuspended = "Access to the archives is briefly suspended. Please try again in a moment."
	msgInvalidEntry      = "That selection does not appear to be a valid entry."
	msgTopicDeclined     = "The archives declined to release that manuscript. Please choose another topic."
	msgResultDeclined    = "The archives declined to release that manuscript. Please choose another result."
	msgBadSelection      = "We could not understand that selection."
	msgIncompleteResult  = "A valid entry requires both a title and a summary snippet."
)

// ArticleHandler handles the reading room endpoints
type ArticleHandler struct {
	services  *service.Services
	validator *validation.Validator
	log       zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services:  services,
		validator: validation.NewValidator(),
		log:       log.With().Str("handler", "article").Logger(),
	}
}

// Index handles GET /?q=<topic>
func (h *ArticleHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()
	query := strings.TrimSpace(c.Query("q"))
	errorMessage := ""

	if query != "" {
		if errs := h.validator.ValidateTopic(query); len(errs) > 0 {
			h.log.Warn().Str("query", query).Str("reason", validation.Messages(errs)).Msg("Ignoring invalid topic")
		} else {
			article, _, err := h.services.Article.GetOrCreate(ctx, query, service.CreateOptions{})
			var inProgress *models.CreationInProgressError
			switch {
			case err == nil:
				c.Redirect(http.StatusFound, article.URL())
				return
			case errors.As(err, &inProgress):
				params := url.Values{"fetch": {"1"}}
				if !strings.EqualFold(query, inProgress.Title) {
					params.Set("title", query)
				}
				c.Redirect(http.StatusFound, models.EntryPath(inProgress.Slug)+"?"+params.Encode())
				return
			case errors.Is(err, models.ErrDailyLimitExceeded):
				errorMessage = models.ErrDailyLimitExceeded.Error()
			default:
				// The index still renders; the patron can retry
				h.log.Warn().Err(err).Str("query", query).Msg("Materialization from index failed")
			}
		}
	}

	var latest, random []models.ArticleListItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		latest, err = h.services.Article.Latest(gctx, latestArticleCount)
		return err
	})
	g.Go(func() error {
		var err error
		random, err = h.services.Article.Random(gctx, randomArticleCount)
		return err
	})
	if err := g.Wait(); err != nil {
		h.log.Error().Err(err).Msg("Failed to list articles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":  query,
		"latest": emptyIfNil(latest),
		"random": emptyIfNil(random),
		"error":  errorMessage,
	})
}

// Entry handles GET /entries/<slug>/
func (h *ArticleHandler) Entry(c *gin.Context) {
	ctx := c.Request.Context()
	slugValue := entrySlug(c.Param("path"))
	if slugValue == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}

	article, err := h.services.Article.GetBySlug(ctx, slugValue)
	if err == nil {
		h.renderArticle(c, article)
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		h.log.Error().Err(err).Str("slug", slugValue).Msg("Failed to load article")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}

	titleHint := strings.TrimSpace(c.Query("title"))
	snippetHint := strings.TrimSpace(c.Query("snippet"))
	displayTitle := titleHint
	if displayTitle == "" {
		displayTitle = slug.Humanize(slugValue)
	}

	briefings, err := h.services.Article.IncomingBriefings(ctx, slugValue)
	if err != nil {
		h.log.Warn().Err(err).Str("slug", slugValue).Msg("Failed to collect link briefings")
	}
	pending := models.PendingResponse{
		Pending:       true,
		Title:         displayTitle,
		Snippet:       snippetHint,
		FetchURL:      fetchURL(c.Request.URL),
		LinkBriefings: emptyIfNil(briefings),
	}

	if c.Query("fetch") != "1" {
		status := http.StatusAccepted
		if err := h.services.Article.EnforceDailyLimit(ctx); err != nil {
			if errors.Is(err, models.ErrDailyLimitExceeded) {
				pending.Error = models.ErrDailyLimitExceeded.Error()
				status = http.StatusServiceUnavailable
			} else {
				h.log.Warn().Err(err).Msg("Daily limit check failed")
			}
		}
		c.JSON(status, pending)
		return
	}

	if !IsBrowserUserAgent(c.Request.UserAgent()) {
		h.log.Info().Str("slug", slugValue).Str("user_agent", c.Request.UserAgent()).Msg("Refused fetch from unrecognised client")
		pending.Error = msgBotsRefused
		c.JSON(http.StatusForbidden, pending)
		return
	}

	topic := titleHint
	if topic == "" {
		topic = displayTitle
	}
	article, created, err := h.services.Article.GetOrCreate(ctx, topic, service.CreateOptions{
		SummaryHint: snippetHint,
		SlugHint:    slugValue,
	})
	if err == nil {
		if created {
			if err := h.services.Article.RefreshSummary(ctx, article); err != nil {
				h.log.Warn().Err(err).Str("slug", article.Slug).Msg("Summary refresh failed")
			}
		}
		h.renderArticle(c, article)
		return
	}

	status := http.StatusServiceUnavailable
	var inProgress *models.CreationInProgressError
	switch {
	case errors.As(err, &inProgress):
		if inProgress.Title != "" {
			pending.Title = inProgress.Title
		}
		pending.Notice = msgInProgress
		status = http.StatusAccepted
	case errors.Is(err, models.ErrDailyLimitExceeded):
		pending.Error = models.ErrDailyLimitExceeded.Error()
	case errors.Is(err, models.ErrProviderMisconfigured):
		pending.Error = msgArchivesSuspended
	case errors.Is(err, models.ErrInvalidInput):
		pending.Error = msgInvalidEntry
		status = http.StatusBadRequest
	default:
		h.log.Error().Err(err).Str("slug", slugValue).Msg("Article generation failed")
		pending.Error = msgTopicDeclined
	}
	c.JSON(status, pending)
}

// FromResult handles POST /entries/from-result/
func (h *ArticleHandler) FromResult(c *gin.Context) {
	var req models.FromResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBadSelection})
		return
	}

	title := strings.TrimSpace(req.Title)
	snippet := strings.TrimSpace(req.Snippet)
	if title == "" || snippet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgIncompleteResult})
		return
	}
	if errs := h.validator.ValidateFromResult(&req); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidEntry, "details": errs})
		return
	}

	article, _, err := h.services.Article.GetOrCreate(c.Request.Context(), title, service.CreateOptions{SummaryHint: snippet})
	var inProgress *models.CreationInProgressError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"url": article.URL()})
	case errors.As(err, &inProgress):
		params := url.Values{"title": {title}, "snippet": {snippet}}
		c.JSON(http.StatusAccepted, gin.H{
			"pending": true,
			"url":     models.EntryPath(inProgress.Slug) + "?" + params.Encode(),
			"slug":    inProgress.Slug,
		})
	case errors.Is(err, models.ErrDailyLimitExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": models.ErrDailyLimitExceeded.Error()})
	case errors.Is(err, models.ErrProviderMisconfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgArchivesSuspended})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidEntry})
	default:
		h.log.Error().Err(err).Str("title", title).Msg("Article generation from search result failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgResultDeclined})
	}
}

// Delete handles POST /entries/<slug>/delete/
func (h *ArticleHandler) Delete(c *gin.Context, slugValue string) {
	if err := h.services.Article.Delete(c.Request.Context(), slugValue); err != nil {
		h.respondStaffError(c, err, slugValue, "delete")
		return
	}
	h.log.Info().Str("slug", slugValue).Str("staff", c.GetString("staff_subject")).Msg("Article deleted")
	c.Redirect(http.StatusFound, "/")
}

// Regenerate handles POST /entries/<slug>/regenerate/
func (h *ArticleHandler) Regenerate(c *gin.Context, slugValue string) {
	if err := h.services.Article.Regenerate(c.Request.Context(), slugValue); err != nil {
		h.respondStaffError(c, err, slugValue, "regenerate")
		return
	}
	h.log.Info().Str("slug", slugValue).Str("staff", c.GetString("staff_subject")).Msg("Article queued for regeneration")
	c.Redirect(http.StatusFound, models.EntryPath(slugValue))
}

// RebuildLinks handles POST /admin/links/rebuild
func (h *ArticleHandler) RebuildLinks(c *gin.Context) {
	updated, err := h.services.Article.RebuildOutgoingLinks(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Outgoing link rebuild failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rebuild links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Stats handles GET /stats
func (h *ArticleHandler) Stats(c *gin.Context) {
	stats, err := h.services.Article.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ArticleHandler) renderArticle(c *gin.Context, article *models.Article) {
	resp, err := h.services.Article.Render(article)
	if err != nil {
		h.log.Error().Err(err).Str("slug", article.Slug).Msg("Failed to render article")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render article"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ArticleHandler) respondStaffError(c *gin.Context, err error, slugValue, action string) {
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	h.log.Error().Err(err).Str("slug", slugValue).Str("action", action).Msg("Staff action failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action + " article"})
}

// entrySlug turns the catch-all path "/<slug>/" into the slug. Slugs may
// themselves contain slashes.
func entrySlug(path string) string {
	return strings.Trim(path, "/")
}

// fetchURL is the current path and query with fetch=1 set
func fetchURL(u *url.URL) string {
	params := u.Query()
	params.Set("fetch", "1")
	return u.Path + "?" + params.Encode()
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
