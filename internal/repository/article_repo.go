package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/database"
	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/lib/pq"
)

const articleColumns = `id, title, slug, content, summary_snippet, outgoing_links, created_at, updated_at`

// articleRepo is the concrete implementation of ArticleRepository
type articleRepo struct {
	db *database.DB
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *database.DB) ArticleRepository {
	return &articleRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var outgoing []string
	err := row.Scan(
		&article.ID, &article.Title, &article.Slug, &article.Content,
		&article.SummarySnippet, pq.Array(&outgoing), &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if outgoing == nil {
		outgoing = []string{}
	}
	article.OutgoingLinks = outgoing
	return &article, nil
}

func (r *articleRepo) getOne(ctx context.Context, query string, args ...any) (*models.Article, error) {
	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return article, err
}

func (r *articleRepo) list(ctx context.Context, query string, args ...any) ([]*models.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []*models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// GetByID retrieves an article by primary key
func (r *articleRepo) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	return r.getOne(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
}

// GetBySlug retrieves an article by its slug
func (r *articleRepo) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	return r.getOne(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = $1`, slug)
}

// GetByTitle retrieves the first article whose title matches case-insensitively
func (r *articleRepo) GetByTitle(ctx context.Context, title string) (*models.Article, error) {
	return r.getOne(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE lower(title) = lower($1) ORDER BY id LIMIT 1`,
		title,
	)
}

// GetOrCreate inserts the article unless its slug is already taken. The
// stored row is returned either way, with created reporting which happened.
// Outgoing links are always recomputed from the content being written.
func (r *articleRepo) GetOrCreate(ctx context.Context, article *models.Article) (*models.Article, bool, error) {
	outgoing := links.ExtractOutgoing(article.Content)
	now := time.Now()

	query := `
		INSERT INTO articles (title, slug, content, summary_snippet, outgoing_links, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (slug) DO NOTHING
		RETURNING ` + articleColumns

	stored, err := scanArticle(r.db.QueryRowContext(ctx, query,
		article.Title, article.Slug, article.Content, article.SummarySnippet,
		pq.Array(outgoing), now,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Another writer owns the slug
	existing, err := r.GetBySlug(ctx, article.Slug)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, sql.ErrNoRows
	}
	return existing, false, nil
}

// BatchInsert restores articles in a single transaction, skipping slugs
// that already exist. Returns the number of rows inserted.
func (r *articleRepo) BatchInsert(ctx context.Context, articles []*models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO articles (title, slug, content, summary_snippet, outgoing_links, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (slug) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now()
		for _, article := range articles {
			createdAt := article.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			result, err := stmt.ExecContext(ctx,
				article.Title, article.Slug, article.Content, article.SummarySnippet,
				pq.Array(links.ExtractOutgoing(article.Content)), createdAt, now,
			)
			if err != nil {
				return err
			}
			n, _ := result.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpdateSummary replaces the summary snippet of an article
func (r *articleRepo) UpdateSummary(ctx context.Context, id int64, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET summary_snippet = $1, updated_at = $2 WHERE id = $3`,
		summary, time.Now(), id,
	)
	return err
}

// UpdateOutgoingLinks overwrites the stored outgoing link set
func (r *articleRepo) UpdateOutgoingLinks(ctx context.Context, id int64, outgoing []string) error {
	if outgoing == nil {
		outgoing = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET outgoing_links = $1 WHERE id = $2`,
		pq.Array(outgoing), id,
	)
	return err
}

// Delete removes an article by slug
func (r *articleRepo) Delete(ctx context.Context, slug string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE slug = $1`, slug)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListLinkingTo returns every other article whose outgoing links contain slug
func (r *articleRepo) ListLinkingTo(ctx context.Context, slug string) ([]*models.Article, error) {
	return r.list(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE outgoing_links @> ARRAY[$1]::text[] AND slug <> $1
		ORDER BY title, id
	`, slug)
}

// ListMissingSummary returns the oldest articles without a summary snippet
func (r *articleRepo) ListMissingSummary(ctx context.Context, limit int) ([]*models.Article, error) {
	return r.list(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE summary_snippet = ''
		ORDER BY created_at
		LIMIT $1
	`, limit)
}

// Latest returns the most recently created articles
func (r *articleRepo) Latest(ctx context.Context, limit int) ([]*models.Article, error) {
	return r.list(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

// Random returns a random sample of articles
func (r *articleRepo) Random(ctx context.Context, limit int) ([]*models.Article, error) {
	return r.list(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY random() LIMIT $1`, limit)
}

// SearchSimilar ranks articles by summed pg_trgm similarity of title,
// summary and content, keeping those above threshold
func (r *articleRepo) SearchSimilar(ctx context.Context, query string, threshold float64, limit int) ([]*models.Article, error) {
	return r.list(ctx, `
		SELECT `+articleColumns+` FROM (
			SELECT `+articleColumns+`,
				similarity(title, $1) + similarity(summary_snippet, $1) + similarity(content, $1) AS score
			FROM articles
		) ranked
		WHERE score > $2
		ORDER BY score DESC, id
		LIMIT $3
	`, query, threshold, limit)
}

// SearchSubstring matches articles containing query in title, summary or content
func (r *articleRepo) SearchSubstring(ctx context.Context, query string, limit int) ([]*models.Article, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.list(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE title ILIKE $1 OR summary_snippet ILIKE $1 OR content ILIKE $1
		ORDER BY (title ILIKE $1) DESC, title
		LIMIT $2
	`, pattern, limit)
}

// CountCreatedSince counts articles created at or after since
func (r *articleRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}

// Count returns the total number of articles
func (r *articleRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	return count, err
}

// StreamAll streams all articles for export
func (r *articleRepo) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	rows, err := r.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return err
		}
		if err := callback(article); err != nil {
			return err
		}
	}

	return rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
