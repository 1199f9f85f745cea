package links

import (
	"regexp"
	"strings"
)

// BriefingPattern matches markdown links to slug, capturing the anchor text.
// A trailing slash, fragment or query string after the slug is tolerated.
func BriefingPattern(slug string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\[([^\]]+)\]\(/entries/` + regexp.QuoteMeta(slug) + `/?(?:[#?][^)]*)?\)`)
}

// LineMatch is one line of an article that links to the briefing target.
type LineMatch struct {
	Line    int
	Anchors []string
}

// MatchLines returns, in line order, every line of content containing a link
// matched by pattern along with the trimmed anchor texts on that line.
func MatchLines(content string, pattern *regexp.Regexp) ([]string, []LineMatch) {
	lines := splitLines(content)
	var matches []LineMatch
	for idx, line := range lines {
		found := pattern.FindAllStringSubmatch(line, -1)
		if len(found) == 0 {
			continue
		}
		anchors := make([]string, 0, len(found))
		for _, m := range found {
			anchors = append(anchors, strings.TrimSpace(m[1]))
		}
		matches = append(matches, LineMatch{Line: idx, Anchors: anchors})
	}
	return lines, matches
}

// ExcerptWindow joins the lines around idx, keeping `before` lines above and
// `after` lines below, and trims surrounding whitespace.
func ExcerptWindow(lines []string, idx, before, after int) string {
	start := idx - before
	if start < 0 {
		start = 0
	}
	end := idx + after + 1
	if end > len(lines) {
		end = len(lines)
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}
