package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/api"
	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/mocks"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	testSecret = "test-secret"
	browserUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
)

type testEnv struct {
	router   *gin.Engine
	articles *mocks.MockArticleService
	search   *mocks.MockSearchService
	export   *mocks.MockExportService
	imports  *mocks.MockImportService
}

func setupTestRouter(mutate ...func(*config.Config)) *testEnv {
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		articles: mocks.NewMockArticleService(),
		search:   mocks.NewMockSearchService(),
		export:   mocks.NewMockExportService(),
		imports:  mocks.NewMockImportService(),
	}

	services := &service.Services{
		Article: env.articles,
		Search:  env.search,
		Export:  env.export,
		Import:  env.imports,
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080"},
		Auth:   config.AuthConfig{AdminJWTSecret: testSecret},
		Import: config.ImportConfig{
			BatchSize:   500,
			MaxFileSize: 1024 * 1024,
		},
	}
	for _, m := range mutate {
		m(cfg)
	}

	env.router = api.NewRouter(services, cfg, zerolog.Nop())
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func staffToken(t *testing.T, staff bool) string {
	t.Helper()
	claims := api.StaffClaims{
		Staff: staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "curator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter()

	w := env.do(httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	response := decode(t, w)
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "encyclopedai" {
		t.Errorf("Expected service name, got %v", response["service"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestRouter()
	env.do(httptest.NewRequest("GET", "/health", nil))

	w := env.do(httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "encyclopedai_http_requests_total") {
		t.Error("Expected request counter in metrics output")
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := setupTestRouter()
	env.articles.LatestItems = []models.ArticleListItem{{Title: "A"}, {Title: "B"}}

	w := env.do(httptest.NewRequest("GET", "/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := decode(t, w)
	if response["articles"] != float64(2) {
		t.Errorf("Expected 2 articles, got %v", response["articles"])
	}
}

func TestIndex_ListsArticles(t *testing.T) {
	env := setupTestRouter()
	env.articles.LatestItems = []models.ArticleListItem{{Title: "Newest", Slug: "newest"}}
	env.articles.RandomItems = []models.ArticleListItem{{Title: "Odd", Slug: "odd"}, {Title: "Even", Slug: "even"}}

	w := env.do(httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := decode(t, w)
	if latest, _ := response["latest"].([]interface{}); len(latest) != 1 {
		t.Errorf("Expected 1 latest article, got %v", response["latest"])
	}
	if random, _ := response["random"].([]interface{}); len(random) != 2 {
		t.Errorf("Expected 2 random articles, got %v", response["random"])
	}
	if len(env.articles.GetOrCreateCalls) != 0 {
		t.Error("Expected no materialization without a query")
	}
}

func TestIndex_ListingFailure(t *testing.T) {
	env := setupTestRouter()
	env.articles.LatestError = errors.New("db down")

	w := env.do(httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestIndex_RedirectsToArticle(t *testing.T) {
	env := setupTestRouter()
	env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
		if topic != "Ancient Rome" {
			t.Errorf("Expected topic 'Ancient Rome', got %q", topic)
		}
		return &models.Article{ID: 7, Title: topic, Slug: "ancient-rome"}, true, nil
	}

	w := env.do(httptest.NewRequest("GET", "/?q=+Ancient+Rome+", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/entries/ancient-rome/" {
		t.Errorf("Expected redirect to the entry, got %q", loc)
	}
}

func TestIndex_InProgressRedirect(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"same title", "mercury", "/entries/mercury/?fetch=1"},
		{"different title", "Planet Mercury", "/entries/mercury/?fetch=1&title=Planet+Mercury"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter()
			env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
				return nil, false, &models.CreationInProgressError{Slug: "mercury", Title: "Mercury"}
			}

			w := env.do(httptest.NewRequest("GET", "/?q="+strings.ReplaceAll(tt.query, " ", "+"), nil))

			if w.Code != http.StatusFound {
				t.Fatalf("Expected status 302, got %d", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != tt.expected {
				t.Errorf("Expected redirect %q, got %q", tt.expected, loc)
			}
		})
	}
}

func TestIndex_QuotaAndSwallowedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"quota", models.ErrDailyLimitExceeded, models.ErrDailyLimitExceeded.Error()},
		{"generation failed", fmt.Errorf("%w: empty", models.ErrGenerationFailed), ""},
		{"misconfigured", models.ErrProviderMisconfigured, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter()
			env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
				return nil, false, tt.err
			}

			w := env.do(httptest.NewRequest("GET", "/?q=Tides", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			response := decode(t, w)
			if response["error"] != tt.expected {
				t.Errorf("Expected error %q, got %v", tt.expected, response["error"])
			}
			if response["query"] != "Tides" {
				t.Errorf("Expected query echoed, got %v", response["query"])
			}
		})
	}
}

func TestIndex_OverlongTopicIsIgnored(t *testing.T) {
	env := setupTestRouter()

	w := env.do(httptest.NewRequest("GET", "/?q="+strings.Repeat("a", 300), nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if len(env.articles.GetOrCreateCalls) != 0 {
		t.Error("Expected overlong topic not to be materialized")
	}
}

func TestEntry_ExistingArticle(t *testing.T) {
	env := setupTestRouter()
	env.articles.GetBySlugFunc = func(ctx context.Context, slug string) (*models.Article, error) {
		return &models.Article{ID: 3, Title: "Tides", Slug: slug, Content: "Water moves."}, nil
	}

	w := env.do(httptest.NewRequest("GET", "/entries/tides/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := decode(t, w)
	if response["rendered_body"] != "<p>Water moves.</p>" {
		t.Errorf("Expected rendered body, got %v", response["rendered_body"])
	}
	if response["url"] != "/entries/tides/" {
		t.Errorf("Expected url, got %v", response["url"])
	}
}

func TestEntry_SlugWithSlash(t *testing.T) {
	env := setupTestRouter()
	var requested string
	env.articles.GetBySlugFunc = func(ctx context.Context, slug string) (*models.Article, error) {
		requested = slug
		return &models.Article{Title: "AC/DC", Slug: slug}, nil
	}

	w := env.do(httptest.NewRequest("GET", "/entries/ac/dc/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if requested != "ac/dc" {
		t.Errorf("Expected slug 'ac/dc', got %q", requested)
	}
}

func TestEntry_Pending(t *testing.T) {
	env := setupTestRouter()
	env.articles.Briefings = []models.LinkBriefing{{Title: "Italy", Excerpt: "See Rome.", AnchorText: "Rome"}}

	w := env.do(httptest.NewRequest("GET", "/entries/ancient-rome/?snippet=Empire", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	var pending models.PendingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !pending.Pending {
		t.Error("Expected pending flag")
	}
	if pending.Title != "Ancient Rome" {
		t.Errorf("Expected humanized title, got %q", pending.Title)
	}
	if pending.Snippet != "Empire" {
		t.Errorf("Expected snippet, got %q", pending.Snippet)
	}
	if pending.FetchURL != "/entries/ancient-rome/?fetch=1&snippet=Empire" {
		t.Errorf("Unexpected fetch url %q", pending.FetchURL)
	}
	if len(pending.LinkBriefings) != 1 {
		t.Errorf("Expected 1 briefing, got %d", len(pending.LinkBriefings))
	}
	if len(env.articles.GetOrCreateCalls) != 0 {
		t.Error("Expected no generation without fetch")
	}
}

func TestEntry_PendingQuotaExhausted(t *testing.T) {
	env := setupTestRouter()
	env.articles.EnforceDailyLimitFunc = func(ctx context.Context) error {
		return models.ErrDailyLimitExceeded
	}

	w := env.do(httptest.NewRequest("GET", "/entries/ancient-rome/?title=Rome", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
	response := decode(t, w)
	if response["error"] != models.ErrDailyLimitExceeded.Error() {
		t.Errorf("Expected quota message, got %v", response["error"])
	}
	if response["title"] != "Rome" {
		t.Errorf("Expected title hint, got %v", response["title"])
	}
}

func TestEntry_FetchRefusesBots(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("GET", "/entries/ancient-rome/?fetch=1", nil)
	req.Header.Set("User-Agent", "curl/8.4.0")
	w := env.do(req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", w.Code)
	}
	response := decode(t, w)
	if response["error"] != "I'm sorry, the archivists do not work for bots." {
		t.Errorf("Unexpected error %v", response["error"])
	}
	if len(env.articles.GetOrCreateCalls) != 0 {
		t.Error("Expected no generation for bots")
	}
}

func TestEntry_FetchCreatesArticle(t *testing.T) {
	env := setupTestRouter()
	var topic string
	env.articles.GetOrCreateFunc = func(ctx context.Context, tp string, opts service.CreateOptions) (*models.Article, bool, error) {
		topic = tp
		return &models.Article{ID: 9, Title: tp, Slug: "ancient-rome", Content: "Rome."}, true, nil
	}

	req := httptest.NewRequest("GET", "/entries/ancient-rome/?fetch=1&snippet=Empire", nil)
	req.Header.Set("User-Agent", browserUA)
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if topic != "Ancient Rome" {
		t.Errorf("Expected humanized topic, got %q", topic)
	}
	opts := env.articles.GetOrCreateCalls[0]
	if opts.SlugHint != "ancient-rome" || opts.SummaryHint != "Empire" {
		t.Errorf("Unexpected create options %+v", opts)
	}
	if env.articles.SummaryRefreshes != 1 {
		t.Errorf("Expected 1 summary refresh, got %d", env.articles.SummaryRefreshes)
	}
}

func TestEntry_FetchExistingSkipsSummary(t *testing.T) {
	env := setupTestRouter()
	env.articles.GetOrCreateFunc = func(ctx context.Context, tp string, opts service.CreateOptions) (*models.Article, bool, error) {
		return &models.Article{Title: tp, Slug: "ancient-rome"}, false, nil
	}

	req := httptest.NewRequest("GET", "/entries/ancient-rome/?fetch=1&title=Rome", nil)
	req.Header.Set("User-Agent", browserUA)
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if env.articles.SummaryRefreshes != 0 {
		t.Errorf("Expected no summary refresh, got %d", env.articles.SummaryRefreshes)
	}
}

func TestEntry_FetchErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
		expectedNotice string
		expectedTitle  string
	}{
		{
			name:           "in progress",
			err:            &models.CreationInProgressError{Slug: "ancient-rome", Title: "Ancient rome"},
			expectedStatus: http.StatusAccepted,
			expectedNotice: "Another archivist is already transcribing that entry. The reading room will refresh when the volume is shelved.",
			expectedTitle:  "Ancient rome",
		},
		{
			name:           "quota",
			err:            models.ErrDailyLimitExceeded,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  models.ErrDailyLimitExceeded.Error(),
			expectedTitle:  "Ancient Rome",
		},
		{
			name:           "misconfigured",
			err:            models.ErrProviderMisconfigured,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "Access to the archives is briefly suspended. Please try again in a moment.",
			expectedTitle:  "Ancient Rome",
		},
		{
			name:           "invalid",
			err:            models.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "That selection does not appear to be a valid entry.",
			expectedTitle:  "Ancient Rome",
		},
		{
			name:           "generation failed",
			err:            fmt.Errorf("%w: timeout", models.ErrGenerationFailed),
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "The archives declined to release that manuscript. Please choose another topic.",
			expectedTitle:  "Ancient Rome",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter()
			env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
				return nil, false, tt.err
			}

			req := httptest.NewRequest("GET", "/entries/ancient-rome/?fetch=1", nil)
			req.Header.Set("User-Agent", browserUA)
			w := env.do(req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var pending models.PendingResponse
			if err := json.Unmarshal(w.Body.Bytes(), &pending); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if pending.Error != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, pending.Error)
			}
			if pending.Notice != tt.expectedNotice {
				t.Errorf("Expected notice %q, got %q", tt.expectedNotice, pending.Notice)
			}
			if pending.Title != tt.expectedTitle {
				t.Errorf("Expected title %q, got %q", tt.expectedTitle, pending.Title)
			}
			if pending.FetchURL != "/entries/ancient-rome/?fetch=1" {
				t.Errorf("Unexpected fetch url %q", pending.FetchURL)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	env := setupTestRouter()
	env.search.SearchFunc = func(ctx context.Context, query string) ([]models.SearchResult, error) {
		return []models.SearchResult{{Title: "Tides", Slug: "tides", EntryURL: "/entries/tides/?title=Tides&snippet=x"}}, nil
	}

	w := env.do(httptest.NewRequest("GET", "/search/?q=+tides+", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var response models.SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(response.Results) != 1 || response.Results[0].Slug != "tides" {
		t.Errorf("Unexpected results %+v", response.Results)
	}
	if env.search.Queries[0] != "tides" {
		t.Errorf("Expected trimmed query, got %q", env.search.Queries[0])
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"empty query", "", nil, http.StatusBadRequest, "Please tell us what you're looking for."},
		{"misconfigured", "tides", models.ErrProviderMisconfigured, http.StatusServiceUnavailable, "The reference desk is calibrating its shelves. Kindly try again shortly."},
		{"failed", "tides", models.ErrGenerationFailed, http.StatusServiceUnavailable, "We could not retrieve catalogue entries just now. Please try another topic."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter()
			env.search.SearchFunc = func(ctx context.Context, query string) ([]models.SearchResult, error) {
				return nil, tt.err
			}

			w := env.do(httptest.NewRequest("GET", "/search/?q="+tt.query, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var response models.SearchResponse
			json.Unmarshal(w.Body.Bytes(), &response)
			if response.Error != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, response.Error)
			}
			if response.Results == nil {
				t.Error("Expected an empty results array")
			}
		})
	}
}

func TestFromResult_Success(t *testing.T) {
	env := setupTestRouter()
	env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
		if opts.SummaryHint != "Moon-driven water" {
			t.Errorf("Expected summary hint, got %q", opts.SummaryHint)
		}
		return &models.Article{Title: topic, Slug: "tides"}, true, nil
	}

	body := `{"title":" Tides ","snippet":"Moon-driven water"}`
	w := env.do(httptest.NewRequest("POST", "/entries/from-result/", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if response := decode(t, w); response["url"] != "/entries/tides/" {
		t.Errorf("Expected entry url, got %v", response["url"])
	}
}

func TestFromResult_InProgress(t *testing.T) {
	env := setupTestRouter()
	env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
		return nil, false, &models.CreationInProgressError{Slug: "tides", Title: "Tides"}
	}

	body := `{"title":"Tides","snippet":"Moon water"}`
	w := env.do(httptest.NewRequest("POST", "/entries/from-result/", strings.NewReader(body)))

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	response := decode(t, w)
	if response["pending"] != true {
		t.Errorf("Expected pending, got %v", response["pending"])
	}
	if response["url"] != "/entries/tides/?snippet=Moon+water&title=Tides" {
		t.Errorf("Unexpected url %v", response["url"])
	}
	if response["slug"] != "tides" {
		t.Errorf("Expected slug, got %v", response["slug"])
	}
}

func TestFromResult_Errors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"bad json", `{not json`, nil, http.StatusBadRequest, "We could not understand that selection."},
		{"missing snippet", `{"title":"Tides","snippet":"  "}`, nil, http.StatusBadRequest, "A valid entry requires both a title and a summary snippet."},
		{"overlong title", `{"title":"` + strings.Repeat("t", 300) + `","snippet":"s"}`, nil, http.StatusBadRequest, "That selection does not appear to be a valid entry."},
		{"quota", `{"title":"Tides","snippet":"s"}`, models.ErrDailyLimitExceeded, http.StatusServiceUnavailable, models.ErrDailyLimitExceeded.Error()},
		{"misconfigured", `{"title":"Tides","snippet":"s"}`, models.ErrProviderMisconfigured, http.StatusServiceUnavailable, "Access to the archives is briefly suspended. Please try again in a moment."},
		{"invalid", `{"title":"Tides","snippet":"s"}`, models.ErrInvalidInput, http.StatusBadRequest, "That selection does not appear to be a valid entry."},
		{"failed", `{"title":"Tides","snippet":"s"}`, models.ErrGenerationFailed, http.StatusServiceUnavailable, "The archives declined to release that manuscript. Please choose another result."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter()
			env.articles.GetOrCreateFunc = func(ctx context.Context, topic string, opts service.CreateOptions) (*models.Article, bool, error) {
				return nil, false, tt.err
			}

			w := env.do(httptest.NewRequest("POST", "/entries/from-result/", strings.NewReader(tt.body)))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if response := decode(t, w); response["error"] != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, response["error"])
			}
		})
	}
}

func TestStaffActions_RequireToken(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"not staff", "Bearer " + staffToken(t, false), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter()

			req := httptest.NewRequest("POST", "/entries/tides/delete/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := env.do(req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if len(env.articles.DeletedSlugs) != 0 {
				t.Error("Expected no deletion")
			}
		})
	}
}

func TestStaffActions_EmptySecretDeniesAll(t *testing.T) {
	env := setupTestRouter(func(cfg *config.Config) { cfg.Auth.AdminJWTSecret = "" })

	req := httptest.NewRequest("POST", "/admin/links/rebuild", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestDelete(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("POST", "/entries/mercury-(planet)/delete/", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Expected redirect to index, got %q", loc)
	}
	if len(env.articles.DeletedSlugs) != 1 || env.articles.DeletedSlugs[0] != "mercury-(planet)" {
		t.Errorf("Unexpected deleted slugs %v", env.articles.DeletedSlugs)
	}
}

func TestDelete_NotFound(t *testing.T) {
	env := setupTestRouter()
	env.articles.DeleteFunc = func(ctx context.Context, slug string) error {
		return models.ErrNotFound
	}

	req := httptest.NewRequest("POST", "/entries/ghost/delete/", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestRegenerate(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("POST", "/entries/tides/regenerate/", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/entries/tides/" {
		t.Errorf("Expected redirect to entry, got %q", loc)
	}
	if len(env.articles.Regenerated) != 1 {
		t.Errorf("Expected 1 regeneration, got %d", len(env.articles.Regenerated))
	}
}

func TestUnknownEntryAction(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("POST", "/entries/tides/publish/", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestAdminExport(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("GET", "/admin/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if len(env.export.Formats) != 1 || env.export.Formats[0] != "csv" {
		t.Errorf("Expected csv export, got %v", env.export.Formats)
	}
}

func TestAdminExport_Validation(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("GET", "/admin/export?format=xml", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if len(env.export.Formats) != 0 {
		t.Error("Expected no export for invalid format")
	}
}

func TestAdminImport_RawBody(t *testing.T) {
	env := setupTestRouter()
	env.imports.ImportFunc = func(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
		return &models.ImportResult{TotalRecords: 1, SuccessfulCount: 1}, nil
	}

	payload := `{"title":"Tides","slug":"tides","content":"Water."}` + "\n"
	req := httptest.NewRequest("POST", "/admin/import", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.imports.Payloads) != 1 || env.imports.Payloads[0] != payload {
		t.Errorf("Unexpected payloads %v", env.imports.Payloads)
	}
	var result models.ImportResult
	json.Unmarshal(w.Body.Bytes(), &result)
	if result.SuccessfulCount != 1 {
		t.Errorf("Expected 1 inserted record, got %d", result.SuccessfulCount)
	}
}

func TestAdminImport_WrongFileExtension(t *testing.T) {
	env := setupTestRouter()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "catalogue.csv")
	part.Write([]byte("title,slug\n"))
	writer.Close()

	req := httptest.NewRequest("POST", "/admin/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if len(env.imports.Payloads) != 0 {
		t.Error("Expected no import")
	}
}

func TestAdminImport_Multipart(t *testing.T) {
	env := setupTestRouter()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "catalogue.ndjson")
	part.Write([]byte(`{"title":"Tides"}` + "\n"))
	writer.Close()

	req := httptest.NewRequest("POST", "/admin/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.imports.Payloads) != 1 || !strings.Contains(env.imports.Payloads[0], "Tides") {
		t.Errorf("Unexpected payloads %v", env.imports.Payloads)
	}
}

func TestAdminImport_TooLarge(t *testing.T) {
	env := setupTestRouter(func(cfg *config.Config) { cfg.Import.MaxFileSize = 16 })

	req := httptest.NewRequest("POST", "/admin/import", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestAdminLinksRebuild(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest("POST", "/admin/links/rebuild", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, true))
	w := env.do(req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if env.articles.LinkRebuilds != 1 {
		t.Errorf("Expected 1 rebuild, got %d", env.articles.LinkRebuilds)
	}
}

func TestRateLimit(t *testing.T) {
	env := setupTestRouter(func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
	})

	first := env.do(httptest.NewRequest("GET", "/", nil))
	second := env.do(httptest.NewRequest("GET", "/", nil))

	if first.Code != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Errorf("Expected Retry-After 1, got %q", second.Header().Get("Retry-After"))
	}

	// Health checks are not limited
	if w := env.do(httptest.NewRequest("GET", "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("Expected health to bypass the limiter, got %d", w.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	env := setupTestRouter()

	w := env.do(httptest.NewRequest("OPTIONS", "/search/", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
	}
	if allowOrigin := w.Header().Get("Access-Control-Allow-Origin"); allowOrigin != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin '*', got '%s'", allowOrigin)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Expected Access-Control-Allow-Methods header")
	}
}
