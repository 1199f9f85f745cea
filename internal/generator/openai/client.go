// Package openai talks to any OpenAI-compatible chat-completions endpoint
// (Gemini's compatibility layer by default). Articles are written in two
// rounds: a plain draft, then a cross-reference pass that adds /entries/ links.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/generator"
	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/rs/zerolog"
)

const (
	summaryMaxTokens = 1000
	searchMaxTokens  = 2000
)

// Config holds endpoint and sampling settings
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	Timeout         time.Duration
}

// Generator implements generator.ContentGenerator over HTTP
type Generator struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

var _ generator.ContentGenerator = (*Generator)(nil)

// New creates a generator. A missing API key is reported on first use so the
// server can still start and serve existing articles.
func New(cfg Config, log zerolog.Logger) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 16000
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Generator{
		cfg:        cfg,
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Transport: tr},
		log:        log.With().Str("component", "generator").Str("provider", "openai").Logger(),
	}
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, log zerolog.Logger, httpClient *http.Client) *Generator {
	g := New(cfg, log)
	if httpClient != nil {
		g.httpClient = httpClient
	}
	return g
}

// ---------------- Wire types ----------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Tools       []tool        `json:"tools,omitempty"`
	ToolChoice  *toolChoice   `json:"tool_choice,omitempty"`
}

type toolCall struct {
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content   json.RawMessage `json:"content"`
			ToolCalls []toolCall      `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPError is returned for non-2xx upstream responses
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// ---------------- Transport ----------------

func (g *Generator) complete(ctx context.Context, req chatRequest) (*chatResponse, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY must be configured to generate articles", models.ErrProviderMisconfigured)
	}
	req.Model = g.cfg.Model
	req.Temperature = g.cfg.Temperature

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// textBlocks collects the text of the first choice that has any. Content may
// be a plain string or an array of typed parts.
func textBlocks(resp *chatResponse) []string {
	for _, choice := range resp.Choices {
		if choice.Message == nil || len(choice.Message.Content) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(choice.Message.Content, &s); err == nil {
			if s != "" {
				return []string{s}
			}
			continue
		}
		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(choice.Message.Content, &parts); err != nil {
			continue
		}
		var blocks []string
		for _, p := range parts {
			if p.Type == "text" && p.Text != "" {
				blocks = append(blocks, p.Text)
			}
		}
		if len(blocks) > 0 {
			return blocks
		}
	}
	return nil
}

// ---------------- ContentGenerator ----------------

// GenerateContent drafts the article, then asks for cross-reference links.
// Both rounds are cleaned of leading headings and absolute entry URLs.
func (g *Generator) GenerateContent(ctx context.Context, req generator.GenerateRequest) (string, error) {
	draft, err := g.chatText(ctx, req.Topic, "article draft", generator.ArticleSystemPrompt,
		generator.BuildArticlePrompt(req), g.cfg.MaxOutputTokens, "\n\n")
	if err != nil {
		return "", err
	}
	draft = links.CleanupBody(draft)

	linked, err := g.chatText(ctx, req.Topic, "link enrichment", generator.LinkSystemPrompt,
		generator.BuildLinkPrompt(req.Topic, draft), g.cfg.MaxOutputTokens, "\n\n")
	if err != nil {
		return "", err
	}
	return links.CleanupBody(linked), nil
}

// GenerateSummary writes the catalogue blurb for an article body
func (g *Generator) GenerateSummary(ctx context.Context, title, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: article body must be provided to generate a summary", models.ErrInvalidInput)
	}
	prompt := generator.BuildSummaryPrompt(title, generator.SummaryExcerpt(body))
	return g.chatText(ctx, title, "summary", generator.SummarySystemPrompt, prompt, summaryMaxTokens, " ")
}

func (g *Generator) chatText(ctx context.Context, subject, op, system, prompt string, maxTokens int, sep string) (string, error) {
	resp, err := g.complete(ctx, chatRequest{
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", g.fail(subject, op, err)
	}

	blocks := textBlocks(resp)
	for i := range blocks {
		blocks[i] = strings.TrimSpace(blocks[i])
	}
	text := strings.TrimSpace(strings.Join(blocks, sep))
	if text == "" {
		g.log.Warn().Str("subject", subject).Str("op", op).Msg("Provider returned an empty response")
		return "", generator.Failed(op+" returned an empty response", nil)
	}
	return text, nil
}

// GenerateSearchResults forces a single submit_search_results tool call and
// returns its unvalidated items.
func (g *Generator) GenerateSearchResults(ctx context.Context, req generator.SearchRequest) ([]generator.RawSearchResult, error) {
	choice := &toolChoice{Type: "function"}
	choice.Function.Name = generator.SearchToolName

	resp, err := g.complete(ctx, chatRequest{
		MaxTokens: searchMaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: generator.SearchSystemPrompt},
			{Role: "user", Content: generator.BuildSearchPrompt(req)},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name: generator.SearchToolName,
				Description: "Record the final set of search results prepared for a patron. Use polished titles " +
					"and two-sentence snippets that summarise the entry.",
				Parameters: generator.SearchResultsSchema(),
			},
		}},
		ToolChoice: choice,
	})
	if err != nil {
		return nil, g.fail(req.Query, "search", err)
	}

	for _, c := range resp.Choices {
		if c.Message == nil || len(c.Message.ToolCalls) == 0 {
			continue
		}
		for _, call := range c.Message.ToolCalls {
			if call.Function.Name != generator.SearchToolName {
				continue
			}
			results, err := generator.ParseSearchPayload(toolArguments(call.Function.Arguments))
			if err != nil {
				g.log.Warn().Err(err).Str("query", req.Query).Msg("Provider returned malformed tool arguments")
				continue
			}
			return results, nil
		}
		break
	}
	return nil, generator.Failed("search returned no tool results", nil)
}

// toolArguments unwraps arguments sent either as a JSON-encoded string (the
// OpenAI convention) or as a raw object.
func toolArguments(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (g *Generator) fail(subject, op string, err error) error {
	if errors.Is(err, models.ErrProviderMisconfigured) {
		return err
	}
	g.log.Error().Err(err).Str("subject", subject).Str("op", op).Msg("Provider request failed")
	return generator.Failed(op, err)
}
