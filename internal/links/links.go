// Package links finds and rewrites internal cross-references in article markdown.
package links

import (
	"regexp"
	"strings"
)

// EntriesPrefix is the path prefix of every internal article link
const EntriesPrefix = "/entries/"

var (
	absoluteMarkdownLink = regexp.MustCompile(`(?i)(\[[^\]]+\]\()https?://[^)\s]*?(/entries/(?:[^\s()]+|\([^)]*\))+)(\))`)
	absoluteBareLink     = regexp.MustCompile(`(?i)https?://[^\s)]+(/entries/(?:[^\s()\]]+|\([^)]*\))+)`)
	leadingHeading       = regexp.MustCompile(`^#{1,6}\s+.*?(\n|$)`)
)

// ExtractOutgoing returns the unique slugs referenced by [label](/entries/<slug>)
// links, in order of first appearance. The slug ends at the first '/', ')',
// '#', '?' or whitespace, except that balanced parentheses inside the slug
// (disambiguation suffixes) are kept. Runs in a single pass over content.
func ExtractOutgoing(content string) []string {
	seen := make(map[string]struct{})
	out := []string{}

	i := 0
	for i < len(content) {
		open := strings.IndexByte(content[i:], '[')
		if open < 0 {
			break
		}
		open += i
		closeIdx := strings.IndexByte(content[open+1:], ']')
		if closeIdx < 0 {
			break
		}
		closeIdx += open + 1
		i = closeIdx + 1
		if closeIdx == open+1 {
			continue // empty label
		}

		rest := content[closeIdx+1:]
		const target = "(" + EntriesPrefix
		if len(rest) < len(target) || !strings.EqualFold(rest[:len(target)], target) {
			continue
		}

		slug, n := scanSlug(rest[len(target):])
		i = closeIdx + 1 + len(target) + n
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

// scanSlug reads a slug from the start of s and returns it with the number of bytes consumed.
func scanSlug(s string) (string, int) {
	depth := 0
	j := 0
scan:
	for j < len(s) {
		switch c := s[j]; c {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				break scan
			}
			depth--
		case '/', '#', '?', ' ', '\t', '\n', '\r', ']', '[':
			break scan
		}
		j++
	}
	// an unbalanced '(' means the slug ran into the link's closing paren
	if depth > 0 {
		if k := strings.IndexByte(s[:j], '('); k >= 0 {
			j = k
		}
	}
	return s[:j], j
}

// LinksTo reports whether content contains a link to slug.
func LinksTo(content, slug string) bool {
	for _, s := range ExtractOutgoing(content) {
		if s == slug {
			return true
		}
	}
	return false
}

// CleanupInternal rewrites absolute links to /entries/ pages as site-relative links.
func CleanupInternal(text string) string {
	if text == "" {
		return ""
	}
	cleaned := absoluteMarkdownLink.ReplaceAllString(text, "${1}${2}${3}")
	return absoluteBareLink.ReplaceAllString(cleaned, "${1}")
}

// StripLeadingHeading removes a heading the model echoed at the top of the body.
func StripLeadingHeading(text string) string {
	cleaned := strings.TrimSpace(text)
	if loc := leadingHeading.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[loc[1]:]
	}
	return strings.TrimSpace(cleaned)
}

// CleanupBody applies every post-processing step to generated article text.
func CleanupBody(text string) string {
	return CleanupInternal(StripLeadingHeading(text))
}
