// Package generator defines the content provider contract and the prompts
// shared by every provider adapter.
package generator

import (
	"context"
	"fmt"

	"github.com/encyclopedai/encyclopedai/internal/models"
)

// ContentGenerator produces article bodies, summaries and search results.
// Implementations never retry; failures surface as models.ErrGenerationFailed
// or models.ErrProviderMisconfigured.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (string, error)
	GenerateSummary(ctx context.Context, title, body string) (string, error)
	GenerateSearchResults(ctx context.Context, req SearchRequest) ([]RawSearchResult, error)
}

// GenerateRequest describes an article to draft
type GenerateRequest struct {
	Topic       string
	SummaryHint string
	Briefings   []models.LinkBriefing
}

// SearchCandidate is an existing catalogue entry offered to the provider
type SearchCandidate struct {
	ID      int64
	Title   string
	Snippet string
}

// SearchRequest carries a patron query and the catalogue pre-filter matches
type SearchRequest struct {
	Query      string
	Candidates []SearchCandidate
}

// RawSearchResult is one unvalidated item returned by a provider
type RawSearchResult struct {
	ArticleID *int64
	Title     string
	Snippet   string
	Slug      string
}

// Failed wraps a provider failure behind the generic generation error. The
// cause stays in the chain for logging but is not part of the message
// patrons see.
func Failed(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", models.ErrGenerationFailed, op)
	}
	return &failure{op: op, cause: cause}
}

type failure struct {
	op    string
	cause error
}

func (f *failure) Error() string {
	return fmt.Sprintf("%s: %s", models.ErrGenerationFailed, f.op)
}

func (f *failure) Unwrap() []error {
	return []error{models.ErrGenerationFailed, f.cause}
}
