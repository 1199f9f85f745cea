package models

import (
	"time"
)

// Article represents a generated encyclopedia entry
type Article struct {
	ID             int64     `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	Slug           string    `json:"slug" db:"slug"`
	Content        string    `json:"content" db:"content"`
	SummarySnippet string    `json:"summary_snippet" db:"summary_snippet"`
	OutgoingLinks  []string  `json:"outgoing_links" db:"outgoing_links"` // Postgres text[]
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// URL returns the site-relative detail URL of the article
func (a *Article) URL() string {
	return EntryPath(a.Slug)
}

// EntryPath returns the detail path for a slug
func EntryPath(slug string) string {
	return "/entries/" + slug + "/"
}

// ArticleCreationLock marks a slug whose content is currently being generated
type ArticleCreationLock struct {
	Slug      string    `json:"slug" db:"slug"`
	Title     string    `json:"title" db:"title"`
	Token     string    `json:"-" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the lock is past its expiry at the given instant
func (l *ArticleCreationLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// LinkBriefing is an excerpt from an article that links to a target slug
type LinkBriefing struct {
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	AnchorText string `json:"anchor_text"`
}

// ArticleListItem is the compact representation used on the index page
type ArticleListItem struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	URL            string    `json:"url"`
	SummarySnippet string    `json:"summary_snippet,omitempty"`
	Preview        string    `json:"preview,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ArticleResponse is the API response for a materialized article
type ArticleResponse struct {
	Article
	RenderedBody string `json:"rendered_body"`
	URL          string `json:"url"`
}

// PendingResponse describes a slug that has no article yet
type PendingResponse struct {
	Pending       bool           `json:"pending"`
	Title         string         `json:"title"`
	Snippet       string         `json:"snippet,omitempty"`
	FetchURL      string         `json:"fetch_url"`
	Error         string         `json:"error,omitempty"`
	Notice        string         `json:"notice,omitempty"`
	LinkBriefings []LinkBriefing `json:"link_briefings"`
}

// ArticleExport is the record written by catalogue exports
type ArticleExport struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Content        string   `json:"content"`
	SummarySnippet string   `json:"summary_snippet"`
	OutgoingLinks  []string `json:"outgoing_links"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// Stats summarises the catalogue for the /stats endpoint
type Stats struct {
	Articles     int `json:"articles"`
	CreatedToday int `json:"created_today"`
	DailyLimit   int `json:"daily_limit"`
	ActiveLocks  int `json:"active_locks"`
}
