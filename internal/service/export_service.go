package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/rs/zerolog"
)

// exportFlushEvery is how many records are written between flushes
const exportFlushEvery = 100

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamArticles streams the catalogue in the specified format
func (s *exportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	s.log.Info().Str("format", format).Msg("Starting articles export")

	switch format {
	case "ndjson":
		return s.streamNDJSON(ctx, w)
	case "json":
		return s.streamJSON(ctx, w)
	case "csv":
		return s.streamCSV(ctx, w)
	default:
		return fmt.Errorf("%w: unsupported format: %s", models.ErrInvalidInput, format)
	}
}

func toExport(article *models.Article) models.ArticleExport {
	outgoing := article.OutgoingLinks
	if outgoing == nil {
		outgoing = []string{}
	}
	return models.ArticleExport{
		ID:             article.ID,
		Title:          article.Title,
		Slug:           article.Slug,
		Content:        article.Content,
		SummarySnippet: article.SummarySnippet,
		OutgoingLinks:  outgoing,
		CreatedAt:      article.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      article.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *exportService) streamNDJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repos.Article.StreamAll(ctx, func(article *models.Article) error {
		data, err := json.Marshal(toExport(article))
		if err != nil {
			return err
		}
		w.Write(data)
		w.Write([]byte("\n"))
		count++

		// Flush periodically so large catalogues stream
		if count%exportFlushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("Articles export completed")
	return err
}

func (s *exportService) streamJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.json")

	w.Write([]byte("["))
	first := true

	err := s.repos.Article.StreamAll(ctx, func(article *models.Article) error {
		if !first {
			w.Write([]byte(","))
		}
		first = false

		data, err := json.Marshal(toExport(article))
		if err != nil {
			return err
		}
		w.Write(data)
		return nil
	})

	w.Write([]byte("]"))
	return err
}

func (s *exportService) streamCSV(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"id", "title", "slug", "summary_snippet", "outgoing_links", "content", "created_at", "updated_at"})

	return s.repos.Article.StreamAll(ctx, func(article *models.Article) error {
		record := toExport(article)
		return writer.Write([]string{
			fmt.Sprintf("%d", record.ID),
			record.Title,
			record.Slug,
			record.SummarySnippet,
			strings.Join(record.OutgoingLinks, " "),
			record.Content,
			record.CreatedAt,
			record.UpdatedAt,
		})
	})
}

// GetCount returns the number of stored articles
func (s *exportService) GetCount(ctx context.Context) (int, error) {
	return s.repos.Article.Count(ctx)
}
