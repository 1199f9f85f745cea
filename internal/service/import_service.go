package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/cache"
	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/encyclopedai/encyclopedai/internal/validation"
	"github.com/rs/zerolog"
)

// maxImportLine is the longest NDJSON line accepted
const maxImportLine = 1024 * 1024

// importService is the concrete implementation of ImportService
type importService struct {
	repos     *repository.Repositories
	cache     cache.SearchCache
	batchSize int
	log       zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, searchCache cache.SearchCache, cfg *config.Config, log zerolog.Logger) *importService {
	batchSize := cfg.Import.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &importService{
		repos:     repos,
		cache:     searchCache,
		batchSize: batchSize,
		log:       log.With().Str("service", "import").Logger(),
	}
}

// ImportNDJSON restores articles from an NDJSON export. Slugs that already
// exist are skipped, invalid lines are reported with their line number.
func (s *importService) ImportNDJSON(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	started := time.Now()
	result := &models.ImportResult{}

	scanner := bufio.NewScanner(r)
	// Increase buffer size for long articles
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxImportLine)

	validator := validation.NewValidator()
	var batch []*models.Article
	lineNum := 0

	flush := func() {
		if len(batch) == 0 {
			return
		}
		inserted, err := s.repos.Article.BatchInsert(ctx, batch)
		if err != nil {
			s.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch insert failed")
			result.FailedCount += len(batch)
		} else {
			result.SuccessfulCount += inserted
			result.SkippedCount += len(batch) - inserted
		}
		batch = batch[:0]
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		result.TotalRecords++

		// Respect context cancellation for long-running imports
		if lineNum%1000 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		var record models.ImportRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			result.FailedCount++
			addImportError(result, models.ValidationError{
				Line:    lineNum,
				Field:   "json",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		// Validate
		if errs := validator.ValidateImportRecord(&record, lineNum); len(errs) > 0 {
			result.FailedCount++
			for _, e := range errs {
				addImportError(result, models.ValidationError{
					Line:    lineNum,
					Field:   e.Field,
					Message: e.Message,
					Value:   e.Value,
				})
			}
			continue
		}

		batch = append(batch, convertImportRecord(&record))
		validator.AddImportSlug(record.Slug)

		if len(batch) >= s.batchSize {
			flush()
			s.log.Debug().Int("line", lineNum).Int("inserted", result.SuccessfulCount).Msg("Batch processed")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import: %w", err)
	}

	// Process remaining batch
	flush()

	if result.SuccessfulCount > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Search cache invalidation failed")
		}
	}

	result.DurationMs = time.Since(started).Milliseconds()
	s.log.Info().
		Int("total", result.TotalRecords).
		Int("inserted", result.SuccessfulCount).
		Int("skipped", result.SkippedCount).
		Int("failed", result.FailedCount).
		Int64("duration_ms", result.DurationMs).
		Msg("Import completed")
	return result, nil
}

func addImportError(result *models.ImportResult, e models.ValidationError) {
	if len(result.Errors) < models.MaxReportedErrors {
		result.Errors = append(result.Errors, e)
	}
}

// convertImportRecord converts a validated record to an Article
func convertImportRecord(record *models.ImportRecord) *models.Article {
	article := &models.Article{
		Title:          strings.TrimSpace(record.Title),
		Slug:           record.Slug,
		Content:        record.Content,
		SummarySnippet: strings.TrimSpace(record.SummarySnippet),
	}
	if record.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, record.CreatedAt); err == nil {
			article.CreatedAt = t
		}
	}
	return article
}
