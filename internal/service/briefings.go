package service

import (
	"context"

	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/encyclopedai/encyclopedai/internal/markdown"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
)

// BriefingOptions controls the excerpt window around each incoming link
type BriefingOptions struct {
	LinesBefore int
	LinesAfter  int
	MaxItems    int
}

// DefaultBriefingOptions are used for generation and pending pages
var DefaultBriefingOptions = BriefingOptions{LinesBefore: 2, LinesAfter: 2, MaxItems: 5}

// briefingExcerptChars caps an excerpt before markdown is stripped
const briefingExcerptChars = 600

type briefingCollector struct {
	articles repository.ArticleRepository
}

func newBriefingCollector(articles repository.ArticleRepository) *briefingCollector {
	return &briefingCollector{articles: articles}
}

type briefingKey struct {
	articleID int64
	excerpt   string
	anchor    string
}

// collect gathers excerpts around links to target from other articles,
// in title order, stopping after opts.MaxItems briefings
func (c *briefingCollector) collect(ctx context.Context, target string, opts BriefingOptions) ([]models.LinkBriefing, error) {
	briefings := []models.LinkBriefing{}
	if target == "" {
		return briefings, nil
	}

	linking, err := c.articles.ListLinkingTo(ctx, target)
	if err != nil {
		return nil, err
	}

	pattern := links.BriefingPattern(target)
	seen := make(map[briefingKey]bool)

	for _, article := range linking {
		lines, matches := links.MatchLines(article.Content, pattern)
		for _, match := range matches {
			excerpt := links.ExcerptWindow(lines, match.Line, opts.LinesBefore, opts.LinesAfter)
			if excerpt == "" {
				continue
			}
			excerpt = markdown.Truncate(excerpt, briefingExcerptChars)

			for _, anchor := range match.Anchors {
				key := briefingKey{articleID: article.ID, excerpt: excerpt, anchor: anchor}
				if seen[key] {
					continue
				}
				seen[key] = true

				plain := markdown.StripToPlain(excerpt)
				if plain == "" {
					continue
				}
				briefings = append(briefings, models.LinkBriefing{
					Title:      article.Title,
					Excerpt:    plain,
					AnchorText: anchor,
				})
				if len(briefings) >= opts.MaxItems {
					return briefings, nil
				}
			}
		}
	}
	return briefings, nil
}
