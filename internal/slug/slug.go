// Package slug derives URL slugs from article titles.
//
// Slugs keep disambiguation parentheses verbatim so that "Mercury (planet)"
// and "Mercury (element)" map to distinct entries. Everything outside the
// parentheses is reduced to lowercase ASCII letters, digits and hyphens.
package slug

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackPrefix prefixes slugs synthesized for titles that normalize to nothing
const FallbackPrefix = "article-"

// asciiFold decomposes compatibility characters and drops everything outside ASCII,
// so "Holländer" becomes "Hollander".
var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

func isSeparator(r rune) bool {
	switch r {
	case '-', '–', '—', '−', '/':
		return true
	}
	return unicode.IsSpace(r)
}

// Normalize converts a title into a slug. It returns "" when the title has no
// usable characters; callers then use Fallback.
func Normalize(title string) string {
	if title == "" {
		return ""
	}

	s := norm.NFKC.String(title)
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return ""
	}

	var parts []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		fragment := slugifyFragment(buf.String())
		buf.Reset()
		if fragment != "" {
			parts = append(parts, fragment)
		}
	}
	last := func() string {
		if len(parts) == 0 {
			return ""
		}
		return parts[len(parts)-1]
	}

	for _, r := range s {
		switch {
		case r == '(' || r == ')':
			flush()
			if r == ')' && last() == "-" {
				parts = parts[:len(parts)-1]
			}
			parts = append(parts, string(r))
		case isSeparator(r):
			flush()
			if len(parts) > 0 && last() != "-" && last() != "(" {
				parts = append(parts, "-")
			}
		default:
			buf.WriteRune(r)
		}
	}
	flush()

	out := collapseHyphens(strings.Join(parts, ""))
	out = strings.ToLower(strings.Trim(out, "-"))
	return strings.ReplaceAll(out, "-)", ")")
}

// slugifyFragment folds a separator-free run of characters to [a-z0-9].
func slugifyFragment(fragment string) string {
	folded, _, err := transform.String(asciiFold, fragment)
	if err != nil {
		folded = fragment
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseHyphens(s string) string {
	if !strings.Contains(s, "--") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := false
	for _, r := range s {
		if r == '-' {
			if prevHyphen {
				continue
			}
			prevHyphen = true
		} else {
			prevHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Fallback returns a random slug for titles without slug-able characters.
func Fallback() string {
	return FallbackPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
}

// Humanize turns a slug back into a display title, e.g. "mercury-(planet)"
// becomes "Mercury (planet)".
func Humanize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	if len(words) == 0 {
		return "Untitled Entry"
	}
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

// HasParentheses reports whether s contains both an opening and a closing parenthesis.
func HasParentheses(s string) bool {
	return strings.Contains(s, "(") && strings.Contains(s, ")")
}
