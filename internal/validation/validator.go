package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/slug"
)

const (
	// MaxTitleLength matches the articles.title column
	MaxTitleLength = 255
	// MaxSnippetLength bounds snippets posted back from search results
	MaxSnippetLength = 2000
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator provides validation methods. It remembers slugs seen during an
// import so duplicates within one file are reported.
type Validator struct {
	importSlugCache map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		importSlugCache: make(map[string]bool),
	}
}

// AddImportSlug adds a slug to the uniqueness cache
func (v *Validator) AddImportSlug(s string) {
	v.importSlugCache[s] = true
}

// ValidateTopic validates a topic typed by a patron
func (v *Validator) ValidateTopic(topic string) []ValidationError {
	var errors []ValidationError

	cleaned := strings.TrimSpace(topic)
	if cleaned == "" {
		errors = append(errors, ValidationError{Field: "q", Message: "topic is required"})
	} else if utf8.RuneCountInString(cleaned) > MaxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "q",
			Message: fmt.Sprintf("topic exceeds maximum of %d characters", MaxTitleLength),
		})
	}

	return errors
}

// ValidateFromResult validates the payload posted when a patron opens a
// search result
func (v *Validator) ValidateFromResult(req *models.FromResultRequest) []ValidationError {
	var errors []ValidationError

	title := strings.TrimSpace(req.Title)
	if title == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds maximum of %d characters", MaxTitleLength),
		})
	}

	snippet := strings.TrimSpace(req.Snippet)
	if snippet == "" {
		errors = append(errors, ValidationError{Field: "snippet", Message: "snippet is required"})
	} else if utf8.RuneCountInString(snippet) > MaxSnippetLength {
		errors = append(errors, ValidationError{
			Field:   "snippet",
			Message: fmt.Sprintf("snippet exceeds maximum of %d characters", MaxSnippetLength),
		})
	}

	return errors
}

// ValidateSearchItem checks one provider search result. The slug is
// optional because it can be derived from the title.
func (v *Validator) ValidateSearchItem(title, snippet, rawSlug string) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	}
	if strings.TrimSpace(snippet) == "" {
		errors = append(errors, ValidationError{Field: "snippet", Message: "snippet is required"})
	}
	if slug.Normalize(strings.TrimSpace(rawSlug)) == "" && slug.Normalize(strings.TrimSpace(title)) == "" {
		errors = append(errors, ValidationError{Field: "slug", Message: "no usable slug", Value: rawSlug})
	}

	return errors
}

// ValidateImportRecord validates a catalogue restore record
func (v *Validator) ValidateImportRecord(record *models.ImportRecord, lineNum int) []ValidationError {
	var errors []ValidationError

	// Validate title
	if strings.TrimSpace(record.Title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(record.Title) > MaxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds maximum of %d characters", MaxTitleLength),
		})
	}

	// Validate slug
	if record.Slug == "" {
		errors = append(errors, ValidationError{Field: "slug", Message: "slug is required"})
	} else if slug.Normalize(record.Slug) != record.Slug {
		errors = append(errors, ValidationError{Field: "slug", Message: "slug is not in canonical form", Value: record.Slug})
	} else if v.importSlugCache[record.Slug] {
		errors = append(errors, ValidationError{Field: "slug", Message: "duplicate slug", Value: record.Slug})
	}

	// Validate content
	if strings.TrimSpace(record.Content) == "" {
		errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
	}

	// Validate created_at format if present
	if record.CreatedAt != "" {
		if _, err := time.Parse(time.RFC3339, record.CreatedAt); err != nil {
			errors = append(errors, ValidationError{Field: "created_at", Message: "invalid ISO 8601 date format", Value: record.CreatedAt})
		}
	}

	return errors
}

// Messages joins error messages for a single-line response
func Messages(errors []ValidationError) string {
	parts := make([]string, len(errors))
	for i, e := range errors {
		parts[i] = e.Message
	}
	return strings.Join(parts, "; ")
}
