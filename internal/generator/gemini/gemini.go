// Package gemini generates content through the Gemini API using the
// google.golang.org/genai SDK. It drafts articles in a single pass and
// requests search results as schema-constrained JSON.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	defaultModel     = "gemini-2.5-flash"
	summaryMaxTokens = 1000
	searchMaxTokens  = 2000
)

// Config holds model and sampling settings
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float64
}

// contentModel is the subset of *genai.Models the generator uses
type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator implements generator.ContentGenerator with the genai SDK
type Generator struct {
	cfg    Config
	models contentModel
	log    zerolog.Logger
}

var _ generator.ContentGenerator = (*Generator)(nil)

// New creates a Gemini generator. Without an API key the generator is
// constructed but every call fails with models.ErrProviderMisconfigured.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Generator, error) {
	g := newGenerator(cfg, nil, log)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.models = client.Models
	return g, nil
}

func newGenerator(cfg Config, m contentModel, log zerolog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 16000
	}
	return &Generator{
		cfg:    cfg,
		models: m,
		log:    log.With().Str("component", "generator").Str("provider", "gemini").Logger(),
	}
}

func (g *Generator) config(system string, maxTokens int) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(float32(g.cfg.Temperature)),
		MaxOutputTokens:   int32(maxTokens),
	}
}

func (g *Generator) generate(ctx context.Context, subject, op, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	if g.models == nil {
		return "", fmt.Errorf("%w: LLM_API_KEY must be configured to generate articles", models.ErrProviderMisconfigured)
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), cfg)
	if err != nil {
		g.log.Error().Err(err).Str("subject", subject).Str("op", op).Msg("Provider request failed")
		return "", generator.Failed(op, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.log.Warn().Str("subject", subject).Str("op", op).Msg("Provider returned an empty response")
		return "", generator.Failed(op+" returned an empty response", nil)
	}
	return text, nil
}

// GenerateContent drafts the article in one pass, without the
// cross-reference round.
func (g *Generator) GenerateContent(ctx context.Context, req generator.GenerateRequest) (string, error) {
	body, err := g.generate(ctx, req.Topic, "article draft", generator.BuildArticlePrompt(req),
		g.config(generator.ArticleSystemPrompt, g.cfg.MaxOutputTokens))
	if err != nil {
		return "", err
	}
	return links.CleanupBody(body), nil
}

// GenerateSummary writes the catalogue blurb for an article body
func (g *Generator) GenerateSummary(ctx context.Context, title, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: article body must be provided to generate a summary", models.ErrInvalidInput)
	}
	prompt := generator.BuildSummaryPrompt(title, generator.SummaryExcerpt(body))
	return g.generate(ctx, title, "summary", prompt, g.config(generator.SummarySystemPrompt, summaryMaxTokens))
}

// GenerateSearchResults requests JSON matching the search result schema
func (g *Generator) GenerateSearchResults(ctx context.Context, req generator.SearchRequest) ([]generator.RawSearchResult, error) {
	cfg := g.config(generator.SearchSystemPrompt, searchMaxTokens)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = searchSchema()

	text, err := g.generate(ctx, req.Query, "search", generator.BuildSearchPrompt(req), cfg)
	if err != nil {
		return nil, err
	}

	results, err := generator.ParseSearchPayload(text)
	if err != nil {
		g.log.Warn().Err(err).Str("query", req.Query).Msg("Provider returned malformed search JSON")
		return nil, generator.Failed("search returned malformed JSON", err)
	}
	return results, nil
}

func searchSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"results": {
				Type:     genai.TypeArray,
				MinItems: genai.Ptr[int64](generator.MinSearchResults),
				MaxItems: genai.Ptr[int64](generator.MaxSearchResults),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"article_id": {
							Type:        genai.TypeInteger,
							Description: "The existing catalogue article identifier, when the result corresponds to a pre-existing entry.",
						},
						"title": {
							Type:        genai.TypeString,
							Description: "The formal article title the patron should see.",
						},
						"snippet": {
							Type:        genai.TypeString,
							Description: "A concise description of the article's contents.",
						},
						"slug": {
							Type:        genai.TypeString,
							Description: "A disambiguated, URL-ready slug in lowercase with hyphens that can be appended to /entries/. It must remain unique within the list.",
						},
					},
					Required: []string{"title", "snippet", "slug"},
				},
			},
		},
		Required: []string{"results"},
	}
}
