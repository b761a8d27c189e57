package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/store"
)

// ProgressInput is a reading position report.
type ProgressInput struct {
	CurrentWordIndex int
	TotalWords       int
}

// ProgressTracker persists reading positions and mirrors the percentage
// onto the library entry.
type ProgressTracker struct {
	store  *store.Store
	logger *slog.Logger
	now    Clock
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(s *store.Store, logger *slog.Logger) *ProgressTracker {
	return &ProgressTracker{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// Save records the position. Indexes outside the book are clamped to it.
// The library entry, if any, is updated in the same atomic group.
func (p *ProgressTracker) Save(ctx context.Context, bookID string, in ProgressInput) (*domain.ProgressRecord, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}
	if in.TotalWords < 1 {
		return nil, domainerrors.ValidationWithDetails("total words must be at least 1",
			map[string]string{"total_words": "must be greater than or equal to 1"})
	}

	var rec *domain.ProgressRecord
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		prev, err := p.store.Progress.Lookup(tx, bookID)
		if err != nil {
			return err
		}

		rec = domain.NewProgressRecord(bookID, in.CurrentWordIndex, in.TotalWords, prev, p.now())
		if err := p.store.Progress.Put(tx, rec); err != nil {
			return err
		}

		entry, err := p.store.Library.Lookup(tx, bookID)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		entry.ReadProgress = rec.PercentComplete
		return p.store.Library.Put(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	if rec.IsComplete() && rec.CompletedAt.Equal(rec.UpdatedAt) {
		p.logger.Info("book finished", "book_id", bookID, "total_words", rec.TotalWords)
	}
	return rec, nil
}

// Load returns the stored position, or nil if the book was never opened.
func (p *ProgressTracker) Load(ctx context.Context, bookID string) (*domain.ProgressRecord, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}
	return p.store.Progress.Load(ctx, bookID)
}
