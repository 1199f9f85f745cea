package api

import (
	"regexp"
	"strings"
)

var (
	uaVersionPattern    = regexp.MustCompile(`\d+(?:[._]\d+)*`)
	uaWhitespacePattern = regexp.MustCompile(`\s+`)
)

// browserUserAgents are normalized user agents allowed to trigger generation.
var browserUserAgents = map[string]struct{}{
	"mozilla/<num> (linux; android <num>; k) applewebkit/<num> (khtml, like gecko) chrome/<num> mobile safari/<num> edga/<num>":                        {},
	"mozilla/<num> (macintosh; intel mac os x <num>) applewebkit/<num> (khtml, like gecko) obsidian/<num> chrome/<num> electron/<num> safari/<num>":    {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>) applewebkit/<num> (khtml, like gecko) obsidian/<num> chrome/<num> electron/<num> safari/<num>": {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>; rv:<num>) gecko/<num> firefox/<num>":                                                           {},
	"mozilla/<num> (macintosh; intel mac os x <num>) applewebkit/<num> (khtml, like gecko) chrome/<num> safari/<num>":                                  {},
	"mozilla/<num> (iphone; cpu iphone os <num> like mac os x) applewebkit/<num> (khtml, like gecko) version/<num> mobile/<num>e<num> safari/<num>":    {},
	"mozilla/<num> (x<num>; linux x<num>; rv:<num>) gecko/<num> firefox/<num>":                                                                         {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>) applewebkit/<num>":                                                                             {},
	"mozilla/<num> (x<num>; linux x<num>) applewebkit/<num> (khtml, like gecko) chrome/<num> safari/<num>":                                             {},
	"mozilla/<num> (iphone; cpu iphone os <num> like mac os x) applewebkit/<num> (khtml, like gecko) mobile/<num>e<num>":                               {},
	"mozilla/<num> (macintosh; intel mac os x <num>) applewebkit/<num> (khtml, like gecko) chrome/<num> safari/<num> opr/<num>":                        {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>) applewebkit/<num> (khtml, like gecko) chrome/<num> yabrowser/<num> safari/<num>":               {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>) applewebkit/<num> (khtml, like gecko) chrome/<num> safari/<num> edg/<num>":                     {},
	"mozilla/<num> (macintosh; intel mac os x <num>; rv:<num>) gecko/<num> firefox/<num>":                                                              {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>) applewebkit/<num> (khtml, like gecko) chrome/<num> safari/<num>":                               {},
	"mozilla/<num> (windows nt <num>; win<num>; x<num>) applewebkit/<num> (khtml, like gecko) chrome/<num> safari/<num> opr/<num>":                     {},
	"mozilla/<num> (linux; android <num>; k) applewebkit/<num> (khtml, like gecko) chrome/<num> mobile safari/<num>":                                   {},
	"mozilla/<num> (macintosh; intel mac os x <num>) applewebkit/<num> (khtml, like gecko)":                                                            {},
	"mozilla/<num> (linux; android <num>; k) applewebkit/<num> (khtml, like gecko) samsungbrowser/<num> chrome/<num> mobile safari/<num>":              {},
	"mozilla/<num> (macintosh; intel mac os x <num>) applewebkit/<num> (khtml, like gecko) version/<num> safari/<num>":                                 {},
}

// NormalizeUserAgent lowercases ua, collapses whitespace and replaces
// version numbers such as 141.0.0.0 or 10_15_7 with <num>.
func NormalizeUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	ua = uaWhitespacePattern.ReplaceAllString(ua, " ")
	ua = strings.ToLower(ua)
	return uaVersionPattern.ReplaceAllString(ua, "<num>")
}

// IsBrowserUserAgent reports whether ua matches a known browser once
// versions are ignored.
func IsBrowserUserAgent(ua string) bool {
	_, ok := browserUserAgents[NormalizeUserAgent(ua)]
	return ok
}
