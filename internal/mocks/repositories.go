package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/links"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
)

// MockArticleRepository is an in-memory implementation of ArticleRepository
type MockArticleRepository struct {
	mu       sync.Mutex
	Articles map[int64]*models.Article
	nextID   int64

	Now              func() time.Time
	InsertError      error
	GetOrCreateCalls int
	SearchCalls      int
	BatchInsertCalls int
}

// Verify interface compliance
var _ repository.ArticleRepository = (*MockArticleRepository)(nil)

func NewMockArticleRepository() *MockArticleRepository {
	return &MockArticleRepository{
		Articles: make(map[int64]*models.Article),
		Now:      time.Now,
	}
}

// Seed stores an article as-is, assigning an ID and recomputing outgoing links
func (m *MockArticleRepository) Seed(article *models.Article) *models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(article)
}

func (m *MockArticleRepository) insertLocked(article *models.Article) *models.Article {
	m.nextID++
	stored := *article
	stored.ID = m.nextID
	stored.OutgoingLinks = links.ExtractOutgoing(stored.Content)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.Now()
	}
	stored.UpdatedAt = stored.CreatedAt
	m.Articles[stored.ID] = &stored
	return &stored
}

func (m *MockArticleRepository) findSlugLocked(slug string) *models.Article {
	for _, a := range m.Articles {
		if a.Slug == slug {
			return a
		}
	}
	return nil
}

func (m *MockArticleRepository) sortedLocked() []*models.Article {
	all := make([]*models.Article, 0, len(m.Articles))
	for _, a := range m.Articles {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Articles[id], nil
}

func (m *MockArticleRepository) GetBySlug(ctx context.Context, slug string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findSlugLocked(slug), nil
}

func (m *MockArticleRepository) GetByTitle(ctx context.Context, title string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.sortedLocked() {
		if strings.EqualFold(a.Title, title) {
			return a, nil
		}
	}
	return nil, nil
}

func (m *MockArticleRepository) GetOrCreate(ctx context.Context, article *models.Article) (*models.Article, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetOrCreateCalls++
	if m.InsertError != nil {
		return nil, false, m.InsertError
	}
	if existing := m.findSlugLocked(article.Slug); existing != nil {
		return existing, false, nil
	}
	return m.insertLocked(article), true, nil
}

func (m *MockArticleRepository) BatchInsert(ctx context.Context, articles []*models.Article) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchInsertCalls++
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	inserted := 0
	for _, a := range articles {
		if m.findSlugLocked(a.Slug) != nil {
			continue
		}
		m.insertLocked(a)
		inserted++
	}
	return inserted, nil
}

func (m *MockArticleRepository) UpdateSummary(ctx context.Context, id int64, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Articles[id]; ok {
		a.SummarySnippet = summary
		a.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MockArticleRepository) UpdateOutgoingLinks(ctx context.Context, id int64, outgoing []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Articles[id]; ok {
		a.OutgoingLinks = outgoing
	}
	return nil
}

func (m *MockArticleRepository) Delete(ctx context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.findSlugLocked(slug); a != nil {
		delete(m.Articles, a.ID)
		return true, nil
	}
	return false, nil
}

func (m *MockArticleRepository) ListLinkingTo(ctx context.Context, slug string) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Article
	for _, a := range m.sortedLocked() {
		if a.Slug == slug {
			continue
		}
		for _, l := range a.OutgoingLinks {
			if l == slug {
				out = append(out, a)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *MockArticleRepository) ListMissingSummary(ctx context.Context, limit int) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Article
	for _, a := range m.sortedLocked() {
		if a.SummarySnippet == "" && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockArticleRepository) Latest(ctx context.Context, limit int) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedLocked()
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Random returns articles in insertion order so tests stay deterministic
func (m *MockArticleRepository) Random(ctx context.Context, limit int) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sortedLocked()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// SearchSimilar approximates trigram ranking with a case-insensitive
// substring match on any field
func (m *MockArticleRepository) SearchSimilar(ctx context.Context, query string, threshold float64, limit int) ([]*models.Article, error) {
	return m.SearchSubstring(ctx, query, limit)
}

func (m *MockArticleRepository) SearchSubstring(ctx context.Context, query string, limit int) ([]*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	q := strings.ToLower(query)
	var out []*models.Article
	for _, a := range m.sortedLocked() {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(a.Title), q) ||
			strings.Contains(strings.ToLower(a.SummarySnippet), q) ||
			strings.Contains(strings.ToLower(a.Content), q) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockArticleRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.Articles {
		if !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockArticleRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Articles), nil
}

func (m *MockArticleRepository) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	m.mu.Lock()
	all := m.sortedLocked()
	m.mu.Unlock()
	for _, article := range all {
		if err := callback(article); err != nil {
			return err
		}
	}
	return nil
}

// MockLockRepository is an in-memory implementation of LockRepository with
// the same claim semantics as the SQL version
type MockLockRepository struct {
	mu           sync.Mutex
	Locks        map[string]*models.ArticleCreationLock
	AcquireError error
	ReleaseCalls int
}

// Verify interface compliance
var _ repository.LockRepository = (*MockLockRepository)(nil)

func NewMockLockRepository() *MockLockRepository {
	return &MockLockRepository{
		Locks: make(map[string]*models.ArticleCreationLock),
	}
}

func (m *MockLockRepository) Acquire(ctx context.Context, lock *models.ArticleCreationLock, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireError != nil {
		return m.AcquireError
	}
	for slug, l := range m.Locks {
		if l.ExpiresAt.Before(now) {
			delete(m.Locks, slug)
		}
	}
	if existing, ok := m.Locks[lock.Slug]; ok && !existing.Expired(now) {
		return &models.CreationInProgressError{Slug: lock.Slug, Title: existing.Title}
	}
	stored := *lock
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.Locks[lock.Slug] = &stored
	return nil
}

func (m *MockLockRepository) Release(ctx context.Context, slug, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls++
	if l, ok := m.Locks[slug]; ok && l.Token == token {
		delete(m.Locks, slug)
	}
	return nil
}

func (m *MockLockRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for slug, l := range m.Locks {
		if l.ExpiresAt.Before(now) {
			delete(m.Locks, slug)
			purged++
		}
	}
	return purged, nil
}

func (m *MockLockRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, l := range m.Locks {
		if !l.ExpiresAt.Before(now) {
			count++
		}
	}
	return count, nil
}

// Held reports whether slug currently has a lock row
func (m *MockLockRepository) Held(slug string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Locks[slug]
	return ok
}
