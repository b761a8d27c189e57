package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/speedreader/speedreader-core/internal/domain"
	"github.com/speedreader/speedreader-core/internal/store"
)

// EvictionPlanner answers whether more content fits the cache budget and,
// if not, which cached books to drop first. It never writes.
type EvictionPlanner struct {
	store    *store.Store
	maxBytes int64
	logger   *slog.Logger
}

// NewEvictionPlanner creates a planner enforcing maxBytes. A non-positive
// budget falls back to domain.DefaultMaxCacheBytes.
func NewEvictionPlanner(s *store.Store, maxBytes int64, logger *slog.Logger) *EvictionPlanner {
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxCacheBytes
	}
	return &EvictionPlanner{
		store:    s,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes returns the configured budget.
func (p *EvictionPlanner) MaxBytes() int64 {
	return p.maxBytes
}

// PlanFor reports whether requiredBytes more content fits. Negative
// requests count as zero.
func (p *EvictionPlanner) PlanFor(ctx context.Context, requiredBytes int64) (*domain.EvictionPlan, error) {
	var plan *domain.EvictionPlan
	err := p.store.View(ctx, func(tx *store.Tx) error {
		var err error
		plan, err = p.plan(tx, requiredBytes)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("eviction plan computed",
		"required_bytes", plan.RequiredBytes,
		"total_bytes", plan.TotalBytes,
		"can_store", plan.CanStore,
		"suggested", len(plan.Suggested),
	)
	return plan, nil
}

func (p *EvictionPlanner) plan(tx *store.Tx, requiredBytes int64) (*domain.EvictionPlan, error) {
	requiredBytes = max(0, requiredBytes)

	contents, err := p.store.Contents.All(tx)
	if err != nil {
		return nil, err
	}

	plan := &domain.EvictionPlan{
		MaxBytes:      p.maxBytes,
		RequiredBytes: requiredBytes,
		Suggested:     []domain.EvictionCandidate{},
	}
	for _, c := range contents {
		plan.TotalBytes += c.ByteSize
	}

	if plan.TotalBytes+requiredBytes <= p.maxBytes {
		plan.CanStore = true
		return plan, nil
	}
	plan.BytesToFree = plan.TotalBytes + requiredBytes - p.maxBytes

	candidates := make([]domain.EvictionCandidate, 0, len(contents))
	for _, c := range contents {
		cand, err := p.candidate(tx, c)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}
	slices.SortFunc(candidates, compareCandidates)

	var freed int64
	for _, cand := range candidates {
		if freed >= plan.BytesToFree {
			break
		}
		plan.Suggested = append(plan.Suggested, cand)
		freed += cand.ByteSize
	}
	plan.Shortfall = max(0, plan.BytesToFree-freed)
	return plan, nil
}

func (p *EvictionPlanner) candidate(tx *store.Tx, c *domain.ContentRecord) (domain.EvictionCandidate, error) {
	cand := domain.EvictionCandidate{
		BookID:   c.BookID,
		ByteSize: c.ByteSize,
		CachedAt: c.CachedAt,
		Title:    domain.UnknownTitle,
		Author:   domain.UnknownAuthor,
	}

	entry, err := p.store.Library.Lookup(tx, c.BookID)
	if err != nil {
		return cand, err
	}

	var snap *domain.BookSnapshot
	if entry != nil {
		cand.LastOpenedAt = entry.LastOpenedAt
		snap = entry.BookSnapshot
	}
	if snap == nil {
		book, err := p.store.Books.Lookup(tx, c.BookID)
		if err != nil {
			return cand, err
		}
		if book != nil {
			snap = book.BookSnapshot
		}
	}
	if snap != nil {
		if snap.Title != "" {
			cand.Title = snap.Title
		}
		if snap.Author != "" {
			cand.Author = snap.Author
		}
	}
	return cand, nil
}

// compareCandidates orders never-opened books first, then least recently
// opened, then oldest cached. Book id breaks remaining ties.
func compareCandidates(a, b domain.EvictionCandidate) int {
	if c := cmp.Compare(openedAt(a), openedAt(b)); c != 0 {
		return c
	}
	if c := a.CachedAt.Compare(b.CachedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.BookID, b.BookID)
}

func openedAt(c domain.EvictionCandidate) int64 {
	if c.LastOpenedAt == nil {
		return 0
	}
	return c.LastOpenedAt.UnixMilli()
}
