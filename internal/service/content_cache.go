package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/store"
)

// SaveOptions describes where cached content came from.
type SaveOptions struct {
	// FetchedVia defaults to proxy.
	FetchedVia domain.FetchedVia
	// Snapshot, when set, refreshes the book's display metadata.
	Snapshot *domain.BookSnapshot
	// Acquisition is used only when the save creates the library entry.
	Acquisition domain.AcquisitionType
}

// ContentCache stores the full text of books and keeps the library's
// downloaded flag in step with it.
type ContentCache struct {
	store   *store.Store
	planner *EvictionPlanner
	logger  *slog.Logger
	now     Clock
}

// NewContentCache creates a new content cache.
func NewContentCache(s *store.Store, planner *EvictionPlanner, logger *slog.Logger) *ContentCache {
	return &ContentCache{
		store:   s,
		planner: planner,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached content for bookID, or nil if none is cached.
func (c *ContentCache) Get(ctx context.Context, bookID string) (*domain.ContentRecord, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}
	return c.store.Contents.Load(ctx, bookID)
}

// Save caches text for bookID and marks the library entry downloaded, in
// one atomic group. It does not check the budget; see SaveWithinBudget.
func (c *ContentCache) Save(ctx context.Context, bookID, text string, opts SaveOptions) (*domain.ContentRecord, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}

	var rec *domain.ContentRecord
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		rec, err = c.put(tx, bookID, text, opts, c.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("content cached",
		"book_id", bookID,
		"bytes", rec.ByteSize,
		"words", rec.WordCountActual,
		"fetched_via", rec.FetchedVia,
	)
	return rec, nil
}

// SaveWithinBudget saves text only if it fits the cache budget. Otherwise it
// writes nothing and fails with QUOTA_EXCEEDED carrying the eviction plan.
func (c *ContentCache) SaveWithinBudget(ctx context.Context, bookID, text string, opts SaveOptions) (*domain.ContentRecord, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}

	var rec *domain.ContentRecord
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		// Content already cached for this book is replaced, so only the growth counts.
		required := domain.ByteSize(text)
		existing, err := c.store.Contents.Lookup(tx, bookID)
		if err != nil {
			return err
		}
		if existing != nil {
			required = max(0, required-existing.ByteSize)
		}

		plan, err := c.planner.plan(tx, required)
		if err != nil {
			return err
		}
		if !plan.CanStore {
			return domainerrors.QuotaExceeded(plan.Summary(), plan)
		}

		rec, err = c.put(tx, bookID, text, opts, c.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// put writes the content record and the library mirror inside tx.
func (c *ContentCache) put(tx *store.Tx, bookID, text string, opts SaveOptions, now time.Time) (*domain.ContentRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainerrors.EmptyContent("content cannot be empty")
	}

	via := opts.FetchedVia
	if via == "" {
		via = domain.FetchedViaProxy
	}
	if !via.Valid() {
		return nil, domainerrors.Validationf("unknown content origin %q", via)
	}

	rec := domain.NewContentRecord(bookID, text, via, now)
	existing, err := c.store.Contents.Lookup(tx, bookID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		rec.CachedAt = existing.CachedAt
	}
	if err := c.store.Contents.Put(tx, rec); err != nil {
		return nil, fmt.Errorf("put content: %w", err)
	}

	entry, err := c.store.Library.Lookup(tx, bookID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = domain.NewLibraryEntry(bookID, opts.Acquisition, now)
		if err := mirrorProgress(tx, c.store, entry); err != nil {
			return nil, err
		}
	}

	switch {
	case opts.Snapshot != nil:
		snap := opts.Snapshot.Clone()
		snap.Normalize(bookID)
		entry.BookSnapshot = snap
		if err := c.store.Books.Put(tx, &domain.BookRecord{BookID: bookID, BookSnapshot: snap.Clone()}); err != nil {
			return nil, fmt.Errorf("put book: %w", err)
		}
	case entry.BookSnapshot == nil:
		book, err := c.store.Books.Lookup(tx, bookID)
		if err != nil {
			return nil, err
		}
		if book != nil {
			entry.BookSnapshot = book.BookSnapshot.Clone()
		}
	}

	words := rec.WordCountActual
	entry.HasDownloaded = true
	entry.LocalWordCount = &words
	if err := c.store.Library.Put(tx, entry); err != nil {
		return nil, fmt.Errorf("put library entry: %w", err)
	}
	return rec, nil
}

// Evict drops the cached content of the given books in one atomic group.
// Library entries, progress and snapshots are kept; only the downloaded
// flag and local word count are cleared. Unknown ids are ignored.
// It returns the number of content records removed.
func (c *ContentCache) Evict(ctx context.Context, bookIDs []string) (int, error) {
	if len(bookIDs) == 0 {
		return 0, nil
	}
	for _, bookID := range bookIDs {
		if err := checkBookID(bookID); err != nil {
			return 0, err
		}
	}

	var evicted int
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		evicted = 0
		for _, bookID := range bookIDs {
			n, err := evictOne(tx, c.store, bookID)
			if err != nil {
				return fmt.Errorf("evict %s: %w", bookID, err)
			}
			evicted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.logger.Info("evicted cached content", "requested", len(bookIDs), "evicted", evicted)
	return evicted, nil
}

func evictOne(tx *store.Tx, s *store.Store, bookID string) (int, error) {
	existed, err := s.Contents.Delete(tx, bookID)
	if err != nil {
		return 0, err
	}

	entry, err := s.Library.Lookup(tx, bookID)
	if err != nil {
		return 0, err
	}
	if entry != nil && (entry.HasDownloaded || entry.LocalWordCount != nil) {
		entry.HasDownloaded = false
		entry.LocalWordCount = nil
		if err := s.Library.Put(tx, entry); err != nil {
			return 0, err
		}
	}

	if existed {
		return 1, nil
	}
	return 0, nil
}

// mirrorProgress copies the stored progress percentage onto a new entry.
func mirrorProgress(tx *store.Tx, s *store.Store, entry *domain.LibraryEntry) error {
	progress, err := s.Progress.Lookup(tx, entry.BookID)
	if err != nil {
		return err
	}
	if progress != nil {
		entry.ReadProgress = progress.PercentComplete
	}
	return nil
}
