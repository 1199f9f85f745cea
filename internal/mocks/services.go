package mocks

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/service"
)

// MockContentGenerator is a scriptable ContentGenerator. When Gate is set,
// GenerateContent signals Entered and then blocks until Gate is closed.
type MockContentGenerator struct {
	mu sync.Mutex

	ContentFunc func(ctx context.Context, req generator.GenerateRequest) (string, error)
	SummaryFunc func(ctx context.Context, title, body string) (string, error)
	SearchFunc  func(ctx context.Context, req generator.SearchRequest) ([]generator.RawSearchResult, error)

	Gate    chan struct{}
	Entered chan struct{}

	ContentCalls   int
	SummaryCalls   int
	SearchCalls    int
	Requests       []generator.GenerateRequest
	SearchRequests []generator.SearchRequest
}

// Verify interface compliance
var _ generator.ContentGenerator = (*MockContentGenerator)(nil)

func NewMockContentGenerator() *MockContentGenerator {
	return &MockContentGenerator{}
}

func (m *MockContentGenerator) GenerateContent(ctx context.Context, req generator.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.ContentCalls++
	m.Requests = append(m.Requests, req)
	gate, entered, fn := m.Gate, m.Entered, m.ContentFunc
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return "An article about " + req.Topic + ".", nil
}

func (m *MockContentGenerator) GenerateSummary(ctx context.Context, title, body string) (string, error) {
	m.mu.Lock()
	m.SummaryCalls++
	fn := m.SummaryFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, title, body)
	}
	return "Summary of " + title + ".", nil
}

func (m *MockContentGenerator) GenerateSearchResults(ctx context.Context, req generator.SearchRequest) ([]generator.RawSearchResult, error) {
	m.mu.Lock()
	m.SearchCalls++
	m.SearchRequests = append(m.SearchRequests, req)
	fn := m.SearchFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return []generator.RawSearchResult{
		{Title: req.Query, Snippet: "An entry about " + req.Query + "."},
	}, nil
}

// Calls returns the number of GenerateContent calls so far
func (m *MockContentGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ContentCalls
}

// MockArticleService is a mock implementation of ArticleService. Unset
// funcs fall back to simple defaults.
type MockArticleService struct {
	GetOrCreateFunc       func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error)
	GetBySlugFunc         func(ctx context.Context, slug string) (*models.Article, error)
	EnforceDailyLimitFunc func(ctx context.Context) error
	DeleteFunc            func(ctx context.Context, slug string) error
	RefreshSummaryFunc    func(ctx context.Context, article *models.Article) error
	LatestItems           []models.ArticleListItem
	RandomItems           []models.ArticleListItem
	Briefings             []models.LinkBriefing
	LatestError           error

	mu               sync.Mutex
	GetOrCreateCalls []service.CreateOptions
	DeletedSlugs     []string
	Regenerated      []string
	SummaryRefreshes int
	LinkRebuilds     int
}

// Verify interface compliance
var _ service.ArticleService = (*MockArticleService)(nil)

func NewMockArticleService() *MockArticleService {
	return &MockArticleService{
		LatestItems: []models.ArticleListItem{},
		RandomItems: []models.ArticleListItem{},
		Briefings:   []models.LinkBriefing{},
	}
}

func (m *MockArticleService) GetOrCreate(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
	m.mu.Lock()
	m.GetOrCreateCalls = append(m.GetOrCreateCalls, opts)
	m.mu.Unlock()
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, topic, opts)
	}
	return &models.Article{ID: 1, Title: topic, Slug: "test-article", Content: "Body"}, true, nil
}

func (m *MockArticleService) IncomingBriefings(ctx context.Context, slug string) ([]models.LinkBriefing, error) {
	return m.Briefings, nil
}

func (m *MockArticleService) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(ctx, slug)
	}
	return nil, models.ErrNotFound
}

func (m *MockArticleService) Latest(ctx context.Context, limit int) ([]models.ArticleListItem, error) {
	if m.LatestError != nil {
		return nil, m.LatestError
	}
	return m.LatestItems, nil
}

func (m *MockArticleService) Random(ctx context.Context, limit int) ([]models.ArticleListItem, error) {
	return m.RandomItems, nil
}

func (m *MockArticleService) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	m.DeletedSlugs = append(m.DeletedSlugs, slug)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, slug)
	}
	return nil
}

func (m *MockArticleService) Regenerate(ctx context.Context, slug string) error {
	m.mu.Lock()
	m.Regenerated = append(m.Regenerated, slug)
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, slug)
	}
	return nil
}

func (m *MockArticleService) EnforceDailyLimit(ctx context.Context) error {
	if m.EnforceDailyLimitFunc != nil {
		return m.EnforceDailyLimitFunc(ctx)
	}
	return nil
}

func (m *MockArticleService) RefreshSummary(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	m.SummaryRefreshes++
	m.mu.Unlock()
	if m.RefreshSummaryFunc != nil {
		return m.RefreshSummaryFunc(ctx, article)
	}
	return nil
}

func (m *MockArticleService) Render(article *models.Article) (*models.ArticleResponse, error) {
	return &models.ArticleResponse{
		Article:      *article,
		RenderedBody: "<p>" + article.Content + "</p>",
		URL:          article.URL(),
	}, nil
}

func (m *MockArticleService) RebuildOutgoingLinks(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkRebuilds++
	return 0, nil
}

func (m *MockArticleService) Stats(ctx context.Context) (*models.Stats, error) {
	return &models.Stats{Articles: len(m.LatestItems), DailyLimit: 100}, nil
}

// MockSearchService is a mock implementation of SearchService
type MockSearchService struct {
	SearchFunc func(ctx context.Context, query string) ([]models.SearchResult, error)
	Queries    []string
}

// Verify interface compliance
var _ service.SearchService = (*MockSearchService)(nil)

func NewMockSearchService() *MockSearchService {
	return &MockSearchService{}
}

func (m *MockSearchService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	m.Queries = append(m.Queries, query)
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return []models.SearchResult{}, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamFunc func(ctx context.Context, w http.ResponseWriter, format string) error
	Count      int
	Formats    []string
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{}
}

func (m *MockExportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	m.Formats = append(m.Formats, format)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, w, format)
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Write([]byte("{}\n"))
	return nil
}

func (m *MockExportService) GetCount(ctx context.Context) (int, error) {
	return m.Count, nil
}

// MockImportService is a mock implementation of ImportService
type MockImportService struct {
	ImportFunc func(ctx context.Context, r io.Reader) (*models.ImportResult, error)
	Payloads   []string
}

// Verify interface compliance
var _ service.ImportService = (*MockImportService)(nil)

func NewMockImportService() *MockImportService {
	return &MockImportService{}
}

func (m *MockImportService) ImportNDJSON(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.Payloads = append(m.Payloads, string(data))
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, r)
	}
	return &models.ImportResult{}, nil
}
