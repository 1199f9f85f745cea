// Package markdown renders article markdown to safe HTML and reduces it to plain text.
package markdown

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var (
	boldStars       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderscores = regexp.MustCompile(`__(.+?)__`)
	italicStar      = regexp.MustCompile(`\*(.+?)\*`)
	italicUnderline = regexp.MustCompile(`_(.+?)_`)
	inlineLink      = regexp.MustCompile(`\[([^\]]+)\]\(((?:[^()]+|\([^)]*\))+)\)`)
	inlineCode      = regexp.MustCompile("`([^`]+)`")

	blockquoteMarker = regexp.MustCompile(`^\s{0,3}>\s?`)
	headingMarker    = regexp.MustCompile(`^\s{0,3}#{1,6}\s*`)
	bulletMarker     = regexp.MustCompile(`^\s{0,3}[-*+]\s+`)
	numberedMarker   = regexp.MustCompile(`^\s*\d+\.\s+`)
	horizontalSpace  = regexp.MustCompile(`[ \t]+`)
	markdownLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	bodyPolicy  = newBodyPolicy()
	renderer    = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
)

func newBodyPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("code", "span", "div")
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6", "li", "sup")
	return p
}

// RenderInlineSnippet renders the inline subset used by search snippets: bold,
// italic, links and inline code. The input is HTML-escaped before any tag is
// introduced, so markup supplied by the model never reaches the page.
func RenderInlineSnippet(text string) string {
	text = html.EscapeString(text)
	text = boldStars.ReplaceAllString(text, "<strong>${1}</strong>")
	text = boldUnderscores.ReplaceAllString(text, "<strong>${1}</strong>")
	text = italicStar.ReplaceAllString(text, "<em>${1}</em>")
	text = italicUnderline.ReplaceAllString(text, "<em>${1}</em>")
	text = inlineLink.ReplaceAllString(text, `<a href="${2}">${1}</a>`)
	text = inlineCode.ReplaceAllString(text, "<code>${1}</code>")
	return text
}

// StripToPlain removes markdown syntax line by line so that excerpts read as
// plain prose. Blank lines are dropped.
func StripToPlain(text string) string {
	if text == "" {
		return ""
	}
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := html.UnescapeString(stripPolicy.Sanitize(RenderInlineSnippet(raw)))
		line = blockquoteMarker.ReplaceAllString(line, "")
		line = headingMarker.ReplaceAllString(line, "")
		line = bulletMarker.ReplaceAllString(line, "")
		line = numberedMarker.ReplaceAllString(line, "")
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Render converts article markdown to sanitized HTML. Raw HTML in the source
// is omitted by the renderer and anything left is filtered by a UGC policy.
func Render(source string) (string, error) {
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return bodyPolicy.Sanitize(buf.String()), nil
}

// Truncate shortens s to at most n characters, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return strings.TrimRight(string(rs[:n-1]), " \t\n") + "…"
}

// Preview returns roughly the first 300 characters of an article body with the
// leading heading and link markup removed, cut at the nicest nearby boundary.
func Preview(body string) string {
	text := markdownLink.ReplaceAllString(links.StripLeadingHeading(body), "${1}")
	if text == "" {
		return ""
	}
	if len([]rune(text)) <= 300 {
		return text
	}

	preview := string([]rune(text)[:300])

	if idx := strings.LastIndex(preview, "\n\n"); idx > 100 {
		return strings.TrimSpace(preview[:idx])
	}

	sentenceEnd := strings.LastIndexAny(preview, ".?!")
	if sentenceEnd > 100 {
		return strings.TrimSpace(preview[:sentenceEnd+1])
	}

	if idx := strings.LastIndex(preview, "\n"); idx > 100 {
		return strings.TrimSpace(preview[:idx])
	}

	if idx := strings.LastIndex(preview, " "); idx > 0 {
		return strings.TrimSpace(preview[:idx]) + "..."
	}
	return strings.TrimSpace(preview) + "..."
}
