package models

// ImportRecord is one NDJSON line of a catalogue restore. It accepts the
// records written by the catalogue export.
type ImportRecord struct {
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	Content        string `json:"content"`
	SummarySnippet string `json:"summary_snippet"`
	CreatedAt      string `json:"created_at"`
}

// ValidationError represents a validation error for a specific line
type ValidationError struct {
	Line    int    `json:"line,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ImportResult summarises a catalogue restore
type ImportResult struct {
	TotalRecords    int               `json:"total_records"`
	SuccessfulCount int               `json:"successful_count"`
	SkippedCount    int               `json:"skipped_count"`
	FailedCount     int               `json:"failed_count"`
	DurationMs      int64             `json:"duration_ms"`
	Errors          []ValidationError `json:"errors,omitempty"`
}

// MaxReportedErrors caps the errors echoed back in an ImportResult
const MaxReportedErrors = 100
