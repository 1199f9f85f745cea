package models

// SearchResult is a single entry returned to patrons by the search endpoint
type SearchResult struct {
	Title      string `json:"title"`
	Snippet    string `json:"snippet"` // rendered HTML
	Slug       string `json:"slug"`
	ArticleID  *int64 `json:"article_id,omitempty"`
	ArticleURL string `json:"article_url,omitempty"`
	EntryURL   string `json:"entry_url"`
}

// SearchResponse is the JSON envelope of GET /search/
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// FromResultRequest is the body of POST /entries/from-result/
type FromResultRequest struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
