package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/lock"
	"github.com/encyclopedai/encyclopedai/internal/metrics"
	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/encyclopedai/encyclopedai/internal/repository"
	"github.com/rs/zerolog"
)

// maintenanceService is the concrete implementation of MaintenanceService.
// Each tick purges expired creation locks and backfills missing summaries.
type maintenanceService struct {
	articles  repository.ArticleRepository
	summaries ArticleService
	locks     *lock.Manager
	interval  time.Duration
	batchSize int
	log       zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	stopped   bool
	mu        sync.Mutex
	// Semaphore: buffered channel to limit concurrent provider calls
	sem chan struct{}
}

// newMaintenanceService creates a new MaintenanceService
func newMaintenanceService(articles repository.ArticleRepository, summaries ArticleService, locks *lock.Manager, cfg *config.Config, log zerolog.Logger) *maintenanceService {
	workers := cfg.Maintenance.SummaryConcurrency
	if workers < 1 {
		workers = 1
	}
	interval := cfg.Maintenance.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	return &maintenanceService{
		articles:  articles,
		summaries: summaries,
		locks:     locks,
		interval:  interval,
		batchSize: cfg.Maintenance.SummaryBatchSize,
		log:       log.With().Str("service", "maintenance").Logger(),
		sem:       make(chan struct{}, workers),
	}
}

// StartProcessor runs maintenance on every tick until ctx is cancelled or
// StopProcessor is called. It blocks, and returns at once if StopProcessor
// already ran.
func (s *maintenanceService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.log.Info().Dur("interval", s.interval).Msg("Maintenance processor started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Maintenance processor stopping")
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// StopProcessor stops the background processor and waits for in-flight work
func (s *maintenanceService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Maintenance processor stopped")
}

// RunOnce performs a single maintenance pass
func (s *maintenanceService) RunOnce(ctx context.Context) {
	purged, err := s.locks.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to purge expired locks")
	} else if purged > 0 {
		metrics.LocksPurged.Add(float64(purged))
		s.log.Info().Int64("purged", purged).Msg("Expired creation locks purged")
	}

	s.backfillSummaries(ctx)
}

// backfillSummaries generates summaries for articles stored without one
func (s *maintenanceService) backfillSummaries(ctx context.Context) {
	if s.batchSize <= 0 {
		return
	}

	articles, err := s.articles.ListMissingSummary(ctx, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list articles missing summaries")
		return
	}
	if len(articles) == 0 {
		return
	}

	var wg sync.WaitGroup
	var misconfigured bool
	var mu sync.Mutex

	for _, article := range articles {
		mu.Lock()
		stop := misconfigured
		mu.Unlock()
		if stop {
			break
		}

		// Acquire semaphore slot - blocks if all workers are busy
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(a *models.Article) {
			defer wg.Done()
			defer func() { <-s.sem }()

			// Panic recovery - a bad provider response must not kill the worker
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Int64("article_id", a.ID).
						Msg("Summary backfill panicked - recovered")
				}
			}()

			if err := s.summaries.RefreshSummary(ctx, a); err != nil {
				if errors.Is(err, models.ErrProviderMisconfigured) {
					mu.Lock()
					misconfigured = true
					mu.Unlock()
				}
				s.log.Warn().Err(err).Int64("article_id", a.ID).Msg("Summary backfill failed")
			}
		}(article)
	}

	wg.Wait()
	s.log.Debug().Int("articles", len(articles)).Msg("Summary backfill pass finished")
}
