package generator

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type searchPayload struct {
	Results []json.RawMessage `json:"results"`
}

type searchItem struct {
	ArticleID json.RawMessage `json:"article_id"`
	Title     any             `json:"title"`
	Snippet   any             `json:"snippet"`
	Slug      any             `json:"slug"`
}

// ParseSearchPayload decodes the {"results": [...]} object produced by the
// search tool call or JSON response mode. Items that are not objects are
// skipped; validation of their fields is left to the caller.
func ParseSearchPayload(data string) ([]RawSearchResult, error) {
	cleaned := stripCodeFence(data)
	if cleaned == "" {
		return nil, errors.New("empty search payload")
	}

	var payload searchPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, err
	}

	results := make([]RawSearchResult, 0, len(payload.Results))
	for _, raw := range payload.Results {
		var item searchItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		results = append(results, RawSearchResult{
			ArticleID: parseArticleID(item.ArticleID),
			Title:     stringify(item.Title),
			Snippet:   stringify(item.Snippet),
			Slug:      stringify(item.Slug),
		})
	}
	return results, nil
}

// parseArticleID accepts a JSON integer or a numeric string
func parseArticleID(raw json.RawMessage) *int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != float64(int64(f)) {
			return nil
		}
		id = int64(f)
	}
	return &id
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// stripCodeFence removes a ```json fence some models wrap around JSON output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
