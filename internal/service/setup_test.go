package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speedreader/speedreader-core/internal/domain"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// testServices bundles the components over one in-memory store.
type testServices struct {
	store    *store.Store
	planner  *EvictionPlanner
	cache    *ContentCache
	catalog  *LibraryCatalog
	progress *ProgressTracker
	settings *SettingsStore
	clock    *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// setupTestServices creates every service over a fresh in-memory store.
func setupTestServices(t *testing.T, maxBytes int64) (*testServices, func()) {
	t.Helper()

	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)

	logger := setupLogger()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	planner := NewEvictionPlanner(s, maxBytes, logger)
	cache := NewContentCache(s, planner, logger)
	catalog := NewLibraryCatalog(s, cache, logger)
	progress := NewProgressTracker(s, logger)
	settings := NewSettingsStore(s, validation.New(), logger)

	cache.now = clock.Now
	catalog.now = clock.Now
	progress.now = clock.Now
	settings.now = clock.Now

	svc := &testServices{
		store:    s,
		planner:  planner,
		cache:    cache,
		catalog:  catalog,
		progress: progress,
		settings: settings,
		clock:    clock,
	}
	cleanup := func() {
		_ = s.Close() //nolint:errcheck // Test cleanup
	}
	return svc, cleanup
}

// assertDownloadedMatchesContent checks that every library entry's
// downloaded flag agrees with the presence of its content.
func assertDownloadedMatchesContent(t *testing.T, s *store.Store) {
	t.Helper()

	ctx := context.Background()
	entries, err := s.Library.LoadAll(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		content, err := s.Contents.Load(ctx, e.BookID)
		require.NoError(t, err)
		require.Equalf(t, content != nil, e.HasDownloaded, "book %s", e.BookID)
	}

	contents, err := s.Contents.LoadAll(ctx)
	require.NoError(t, err)
	for _, c := range contents {
		e, err := s.Library.Load(ctx, c.BookID)
		require.NoError(t, err)
		require.NotNilf(t, e, "content for %s has no library entry", c.BookID)
	}
}

func curated(id, title string) *domain.BookSnapshot {
	return &domain.BookSnapshot{ID: id, Title: title, Author: "Jane Austen", Category: "classics"}
}

func setupLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
