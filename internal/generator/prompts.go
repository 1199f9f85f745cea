package generator

import (
	"fmt"
	"strings"

	"github.com/encyclopedai/encyclopedai/internal/markdown"
	"github.com/encyclopedai/encyclopedai/internal/models"
)

const (
	// MaxBriefings caps the cross-reference excerpts included in a prompt
	MaxBriefings = 5
	// SummaryExcerptChars bounds the article text sent for summarisation
	SummaryExcerptChars = 4000
	// CandidateSnippetChars bounds catalogue snippets in search briefings
	CandidateSnippetChars = 320

	// SearchToolName is the function the provider must call with results
	SearchToolName = "submit_search_results"
	// MinSearchResults and MaxSearchResults bound the structured output
	MinSearchResults = 3
	MaxSearchResults = 6
)

// System prompts
const (
	ArticleSystemPrompt = "You write concise, reliable encyclopedia entries in Markdown."
	LinkSystemPrompt    = "You add polished cross-references to encyclopedia entries in Markdown."
	SummarySystemPrompt = "You craft concise reference summaries that read like they were written " +
		"by experienced encyclopedia editors."
	SearchSystemPrompt = "You staff the EncyclopedAI reference desk. When a patron shares a query, " +
		"compile reputable encyclopedia search results. Reply by calling the '" + SearchToolName + "' " +
		"tool exactly once with polished titles and professional snippets. When a result calls for " +
		"disambiguation, format the title as 'name (descriptor)' and keep the descriptor concise. " +
		"Each result must also include a disambiguated slug suitable for use in a URL (lowercase, " +
		"hyphen-delimited, concise, unique within the list, and mirroring any parenthetical descriptor). " +
		"Derive slugs directly from the displayed title so parentheses and descriptors stay intact; " +
		"for example \"Der fliegende Holländer (Wagner Opera)\" becomes " +
		"\"der-fliegende-hollander-(wagner-opera)\". Do not provide any other output. When a suggested " +
		"entry matches one of the catalogue records in the patron briefing, include its article_id; " +
		"otherwise omit the field."
)

const articleInstructions = `You are a contributor for a mock online encyclopedia, writing a pretend-authoritative,
detailed entry titled '%s'. Write about the topic at depth.
- Provide a concise introduction followed by as many thematic sections as needed, with
  markdown headings.
- The writing style should be Wikipedia-like.
- Maintain a neutral, reference-book tone and make up things that sound like facts,
  but that are slightly absurd or nonsensical.
- Generate tables, figures, etc as necessary, and generate and reference citations as
  well. Only generate tables when you need to.
- Because this is meant to be an illustrative encyclopedia, make the
  article slightly wrong, like a parody that could fool the casual observer, and
  imperceptibly absurd. For example, in an article about the color of water, you can
  say that water is blue because it suffers from depression.
- Do not include Markdown links; refer to related topics in plain text. The
  cross-reference desk will add hyperlinks later.
- When a subject requires disambiguation, present the name using parentheses,
  e.g. Mercury (planet) or Atlas (mythology).
- MathJax is supported, between pairs of $$.
- DO NOT INCLUDE A TITLE! One will be added to the article later.`

const linkInstructions = `You serve as the cross-reference editor for a mock encyclopedia. Add internal Markdown links to the provided entry while preserving its wording exactly.

CRITICAL RULES:
- NEVER modify the visible link text. The original wording must remain unchanged.
- ALL disambiguation goes in the URL only, never in the visible text.
- ALWAYS disambiguate links. Every link URL should include a parenthetical descriptor.
- Use lowercase slugs with hyphens, starting with /entries/.
- End each URL with a single trailing slash inside the parentheses, e.g. [text](/entries/slug-(descriptor)/). Do NOT add anything after the closing parenthesis.
- Any notable concept, person, place, or invention should be linked.
- Do not link references or citations such as "Foucault, 1864".
- Keep all existing Markdown structure, math, and tables intact.
- Return only the revised article with the newly added links.

EXAMPLES - notice how the visible text never changes, only the URL has disambiguation:
- "the sun is yellow" → "the [sun](/entries/sun-(star)/) is yellow"
- "Newton discovered gravity" → "[Newton](/entries/isaac-newton-(physicist)/) discovered [gravity](/entries/gravity-(force)/)"
- "water boils at 100°C" → "[water](/entries/water-(chemical-compound)/) boils at 100°C"
- "Paris is beautiful" → "[Paris](/entries/paris-(city-in-france)/) is beautiful"
- "the apple fell" → "the [apple](/entries/apple-(fruit)/) fell"
- "Mercury is closest to the sun" → "[Mercury](/entries/mercury-(planet)/) is closest to the [sun](/entries/sun-(star)/)"
- "Darwin proposed evolution" → "[Darwin](/entries/charles-darwin-(naturalist)/) proposed [evolution](/entries/evolution-(biology)/)"
- "iron is magnetic" → "[iron](/entries/iron-(chemical-element)/) is magnetic"
- "the Renaissance began in Italy" → "the [Renaissance](/entries/renaissance-(cultural-movement)/) began in [Italy](/entries/italy-(country)/)"
- "cells divide by mitosis" → "[cells](/entries/cell-(biology)/) divide by [mitosis](/entries/mitosis-(cell-division)/)"

`

// BuildArticlePrompt renders the drafting prompt for a topic, folding in the
// research desk hint and up to MaxBriefings incoming-link excerpts.
func BuildArticlePrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, articleInstructions, req.Topic)

	if hint := strings.TrimSpace(req.SummaryHint); hint != "" {
		b.WriteString("\n\nIncorporate the following briefing prepared by the research desk. ")
		b.WriteString("Use it to guide the introduction and overall coverage, but expand thoughtfully beyond it:\n")
		b.WriteString(hint)
	}

	items := briefingItems(req.Briefings)
	if len(items) > 0 {
		b.WriteString("\n\nReaders typically arrive here via the following cross-references. ")
		b.WriteString("Address the expectations they signal, without quoting them verbatim:\n")
		for i, item := range items {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "%d. %s", i+1, item)
		}
	}
	return b.String()
}

func briefingItems(briefings []models.LinkBriefing) []string {
	var items []string
	for _, br := range briefings {
		if len(items) == MaxBriefings {
			break
		}
		title := strings.TrimSpace(br.Title)
		excerpt := strings.TrimSpace(br.Excerpt)
		anchor := strings.TrimSpace(br.AnchorText)
		if title == "" || excerpt == "" {
			continue
		}
		lines := []string{"Source entry: " + title}
		if anchor != "" {
			lines = append(lines, "Anchor text: "+anchor)
		}
		lines = append(lines, "Excerpt:", excerpt)
		items = append(items, strings.Join(lines, "\n"))
	}
	return items
}

// BuildLinkPrompt renders the second-pass prompt that annotates a draft
// with /entries/ links.
func BuildLinkPrompt(topic, body string) string {
	title := strings.TrimSpace(topic)
	if title == "" {
		title = "Untitled Entry"
	}
	return linkInstructions +
		"Entry title: " + title + "\n" +
		"Article draft:\n" +
		strings.TrimSpace(body)
}

// SummaryExcerpt trims an article body to what the summary prompt accepts
func SummaryExcerpt(body string) string {
	return markdown.Truncate(strings.TrimSpace(body), SummaryExcerptChars)
}

// BuildSummaryPrompt renders the catalogue card prompt
func BuildSummaryPrompt(title, excerpt string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Entry"
	}
	return "You are preparing the catalogue summary card for an encyclopedia entry. " +
		"Write a polished blurb in neutral prose that highlights the central themes. " +
		"Use at most two sentences and stay within 320 characters. " +
		"Avoid mentioning how the article was written, referencing citations directly, " +
		"or using marketing language.\n\n" +
		"Entry title: " + title + "\n" +
		"Article excerpt:\n" +
		excerpt
}

// CandidateSnippet condenses an article into a one-line search briefing
func CandidateSnippet(a *models.Article) string {
	source := strings.TrimSpace(a.SummarySnippet)
	if source == "" {
		source = strings.TrimSpace(a.Content)
	}
	return markdown.Truncate(strings.ReplaceAll(source, "\n", " "), CandidateSnippetChars)
}

// BuildSearchPrompt renders the patron query plus catalogue research notes
func BuildSearchPrompt(req SearchRequest) string {
	var b strings.Builder
	b.WriteString("A patron would like to consult the archives on the following topic. Provide ")
	b.WriteString("a curated list of relevant entries.\n\n")
	b.WriteString("Patron query: ")
	b.WriteString(strings.TrimSpace(req.Query))

	if len(req.Candidates) > 0 {
		b.WriteString("\n\nCatalogue research notes: the following entries already reside in the stacks. ")
		b.WriteString("If they suit the patron's needs, reuse the article_id provided.")
		for _, c := range req.Candidates {
			fmt.Fprintf(&b, "\n- article_id %d: %s: %s", c.ID, c.Title, c.Snippet)
		}
	}
	return b.String()
}

// SearchResultsSchema is the JSON Schema of the search tool arguments
func SearchResultsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"results": map[string]any{
				"type":     "array",
				"minItems": MinSearchResults,
				"maxItems": MaxSearchResults,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"article_id": map[string]any{
							"type":        "integer",
							"description": "The existing catalogue article identifier, when the result corresponds to a pre-existing entry.",
						},
						"title": map[string]any{
							"type":        "string",
							"description": "The formal article title the patron should see.",
						},
						"snippet": map[string]any{
							"type":        "string",
							"description": "A concise description of the article's contents.",
						},
						"slug": map[string]any{
							"type":        "string",
							"description": "A disambiguated, URL-ready slug in lowercase with hyphens that can be appended to /entries/. It must remain unique within the list.",
						},
					},
					"required": []string{"title", "snippet", "slug"},
				},
			},
		},
		"required": []string{"results"},
	}
}
