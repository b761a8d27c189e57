package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/store"
)

func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()

	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}
	return s, cleanup
}

func TestOpen_EmptyPathIsUnavailable(t *testing.T) {
	_, err := store.Open("", nil)
	assert.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "db")
	ctx := context.Background()

	s, err := store.Open(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, s.Books.Save(ctx, &domain.BookRecord{
		BookID:       "gutenberg-1342",
		BookSnapshot: &domain.BookSnapshot{ID: "gutenberg-1342", Title: "Pride and Prejudice"},
	}))
	require.NoError(t, s.Close())

	s, err = store.Open(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, s.Version())
	rec, err := s.Books.Load(ctx, "gutenberg-1342")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Pride and Prejudice", rec.BookSnapshot.Title)
}

func TestTable_CRUD(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	got, err := s.Progress.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	rec := &domain.ProgressRecord{BookID: "b1", CurrentWordIndex: 10, TotalWords: 100, PercentComplete: 10.1}
	require.NoError(t, s.Progress.Save(ctx, rec))

	got, err = s.Progress.Load(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.CurrentWordIndex)

	err = s.View(ctx, func(tx *store.Tx) error {
		_, err := s.Progress.Get(tx, "missing")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	existed, err := s.Progress.Remove(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Progress.Remove(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestTable_InvalidKey(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	err := s.Books.Save(context.Background(), &domain.BookRecord{BookID: "  "})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidID)

	_, err = s.Books.Load(context.Background(), "bad\x00key")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidID)
}

func TestTable_LoadAllIsolatedPerCollection(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := range 3 {
		id := fmt.Sprintf("b%d", i)
		require.NoError(t, s.Books.Save(ctx, &domain.BookRecord{BookID: id}))
	}
	require.NoError(t, s.Progress.Save(ctx, &domain.ProgressRecord{BookID: "b0", TotalWords: 1}))

	books, err := s.Books.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 3)
	assert.Equal(t, "b0", books[0].BookID)

	progress, err := s.Progress.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, progress, 1)
}

func TestUpdate_AtomicAcrossCollections(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *store.Tx) error {
		if err := s.Contents.Put(tx, &domain.ContentRecord{BookID: "b1", Content: "text"}); err != nil {
			return err
		}
		if err := s.Library.Put(tx, &domain.LibraryEntry{BookID: "b1", HasDownloaded: true}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	content, err := s.Contents.Load(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, content, "aborted group must not leave content behind")

	entry, err := s.Library.Load(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, entry, "aborted group must not leave library entry behind")
}

func TestUpdate_ConcurrentReadModifyWriteLosesNothing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, s.Library.Save(ctx, &domain.LibraryEntry{BookID: "b1", Tags: []string{}}))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Update(ctx, func(tx *store.Tx) error {
				e, err := s.Library.Get(tx, "b1")
				if err != nil {
					return err
				}
				e.Tags = append(e.Tags, fmt.Sprintf("t%d", i))
				return s.Library.Put(tx, e)
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainerrors.ErrTransactionAborted)
	}

	entry, err := s.Library.Load(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, entry.Tags, succeeded, "every committed group's tag must survive")
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	ctx := context.Background()
	assert.False(t, s.Available())

	_, err = s.Books.Load(ctx, "b1")
	assert.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)

	err = s.Books.Save(ctx, &domain.BookRecord{BookID: "b1"})
	assert.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)
}

func TestUnavailable(t *testing.T) {
	s := store.Unavailable(nil)

	_, err := s.Library.LoadAll(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)
}

func TestUpdate_CanceledContext(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(*store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestLibraryCategoryIndex(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	entry := &domain.LibraryEntry{
		BookID:       "b1",
		BookSnapshot: &domain.BookSnapshot{ID: "b1", Category: "Poetry"},
	}
	require.NoError(t, s.Library.Save(ctx, entry))
	require.NoError(t, s.Library.Save(ctx, &domain.LibraryEntry{BookID: "b2"}))

	byCategory := func(category string) []*domain.LibraryEntry {
		var out []*domain.LibraryEntry
		require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
			var err error
			out, err = s.Library.ByIndex(tx, store.IndexCategory, category)
			return err
		}))
		return out
	}

	assert.Len(t, byCategory("poetry"), 1)
	assert.Len(t, byCategory(domain.DefaultCategory), 1)

	// Moving categories drops the stale index entry.
	entry.BookSnapshot.Category = "drama"
	require.NoError(t, s.Library.Save(ctx, entry))
	assert.Empty(t, byCategory("poetry"))
	assert.Len(t, byCategory("drama"), 1)

	_, err := s.Library.Remove(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, byCategory("drama"))
}

func TestFlags(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	set, err := s.Flag(ctx, "legacy_migrated")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.SetFlag(ctx, "legacy_migrated", true))
	set, err = s.Flag(ctx, "legacy_migrated")
	require.NoError(t, err)
	assert.True(t, set)
}

func TestStats(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Contents.Save(ctx, domain.NewContentRecord("b1", "one two three", domain.FetchedViaProxy, now)))
	require.NoError(t, s.Contents.Save(ctx, domain.NewContentRecord("b2", "four", domain.FetchedViaProxy, now)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SchemaVersion)
	assert.Equal(t, 2, stats.Records[store.CollectionBookContents])
	assert.Equal(t, 0, stats.Records[store.CollectionLibrary])
	assert.Equal(t, int64(17), stats.ContentBytes)
}
