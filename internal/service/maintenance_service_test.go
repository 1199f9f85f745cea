package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/config"
	"github.com/encyclopedai/encyclopedai/internal/models"
)

func TestMaintenance_RunOncePurgesAndBackfills(t *testing.T) {
	h := newTestHarness(t)
	h.lockRepo.Locks["stale"] = &models.ArticleCreationLock{Slug: "stale", Token: "t1", ExpiresAt: testNow.Add(-time.Minute)}
	h.lockRepo.Locks["live"] = &models.ArticleCreationLock{Slug: "live", Token: "t2", ExpiresAt: testNow.Add(time.Minute)}
	a := h.articleRepo.Seed(&models.Article{Title: "A", Slug: "a", Content: "Body"})
	b := h.articleRepo.Seed(&models.Article{Title: "B", Slug: "b", Content: "Body", SummarySnippet: "kept"})

	h.services.Maintenance.RunOnce(context.Background())

	if h.lockRepo.Held("stale") {
		t.Error("Expected expired lock to be purged")
	}
	if !h.lockRepo.Held("live") {
		t.Error("Expected live lock to remain")
	}
	if got := h.articleRepo.Articles[a.ID].SummarySnippet; got != "Summary of A." {
		t.Errorf("Expected backfilled summary, got %q", got)
	}
	if got := h.articleRepo.Articles[b.ID].SummarySnippet; got != "kept" {
		t.Errorf("Expected existing summary untouched, got %q", got)
	}
	if h.gen.SummaryCalls != 1 {
		t.Errorf("Expected 1 summary call, got %d", h.gen.SummaryCalls)
	}
}

func TestMaintenance_StopsBackfillWhenMisconfigured(t *testing.T) {
	h := newTestHarness(t, func(c *config.Config) { c.Maintenance.SummaryConcurrency = 1 })
	for _, s := range []string{"a", "b", "c", "d"} {
		h.articleRepo.Seed(&models.Article{Title: s, Slug: s, Content: "Body"})
	}
	var calls int32
	h.gen.SummaryFunc = func(ctx context.Context, title, body string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", models.ErrProviderMisconfigured
	}

	h.services.Maintenance.RunOnce(context.Background())

	// With one worker the second dispatch may already be queued when the
	// first failure is seen
	if got := atomic.LoadInt32(&calls); got > 2 {
		t.Errorf("Expected backfill to stop early, got %d calls", got)
	}
}

func TestMaintenance_StartStop(t *testing.T) {
	h := newTestHarness(t, func(c *config.Config) { c.Maintenance.Interval = 10 * time.Millisecond })
	h.lockRepo.Locks["stale"] = &models.ArticleCreationLock{Slug: "stale", Token: "t1", ExpiresAt: testNow.Add(-time.Minute)}

	done := make(chan struct{})
	go func() {
		h.services.Maintenance.StartProcessor(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for h.lockRepo.Held("stale") {
		select {
		case <-deadline:
			t.Fatal("Expected the processor to purge the expired lock")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.services.Maintenance.StopProcessor()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected StartProcessor to return after StopProcessor")
	}
}

func TestMaintenance_StopBeforeStart(t *testing.T) {
	h := newTestHarness(t, func(c *config.Config) { c.Maintenance.Interval = 10 * time.Millisecond })

	h.services.Maintenance.StopProcessor()

	done := make(chan struct{})
	go func() {
		h.services.Maintenance.StartProcessor(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected StartProcessor to return when already stopped")
	}
}
