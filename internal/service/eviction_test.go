package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedreader/speedreader-core/internal/domain"
)

func TestEvictionPlanner_FitsWithinBudget(t *testing.T) {
	svc, cleanup := setupTestServices(t, 1000)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.cache.Save(ctx, "b1", strings.Repeat("a", 400), SaveOptions{})
	require.NoError(t, err)

	plan, err := svc.planner.PlanFor(ctx, 600)
	require.NoError(t, err)
	assert.True(t, plan.CanStore)
	assert.Empty(t, plan.Suggested)
	assert.Zero(t, plan.BytesToFree)
	assert.Equal(t, int64(400), plan.TotalBytes)
}

func TestEvictionPlanner_SuggestsLeastRecentlyOpened(t *testing.T) {
	svc, cleanup := setupTestServices(t, 1000)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.cache.Save(ctx, "b1", strings.Repeat("a", 900), SaveOptions{
		Snapshot: &domain.BookSnapshot{Title: "Emma", Author: "Jane Austen"},
	})
	require.NoError(t, err)

	svc.clock.t = time.UnixMilli(1)
	require.NoError(t, svc.catalog.RecordOpened(ctx, &domain.BookSnapshot{ID: "b1", Title: "Emma", Author: "Jane Austen"}))

	plan, err := svc.planner.PlanFor(ctx, 200)
	require.NoError(t, err)
	assert.False(t, plan.CanStore)
	assert.Equal(t, int64(100), plan.BytesToFree)
	require.Len(t, plan.Suggested, 1)
	assert.Equal(t, "b1", plan.Suggested[0].BookID)
	assert.Equal(t, int64(900), plan.Suggested[0].ByteSize)
	assert.Equal(t, "Emma", plan.Suggested[0].Title)
	assert.Zero(t, plan.Shortfall)
	assert.True(t, plan.Sufficient())
}

func TestEvictionPlanner_Ordering(t *testing.T) {
	svc, cleanup := setupTestServices(t, 300)
	defer cleanup()

	ctx := context.Background()
	save := func(bookID string) {
		_, err := svc.cache.Save(ctx, bookID, strings.Repeat("x", 100), SaveOptions{})
		require.NoError(t, err)
		svc.clock.Advance(time.Minute)
	}
	open := func(bookID string) {
		require.NoError(t, svc.catalog.RecordOpened(ctx, &domain.BookSnapshot{ID: bookID}))
		svc.clock.Advance(time.Minute)
	}

	save("recent")
	save("stale")
	save("never-new")
	open("stale")
	open("recent")

	plan, err := svc.planner.PlanFor(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), plan.BytesToFree)
	assert.Equal(t, []string{"never-new", "stale", "recent"}, plan.SuggestedIDs())
	assert.Equal(t, domain.UnknownTitle, plan.Suggested[0].Title)
	assert.Equal(t, domain.UnknownAuthor, plan.Suggested[0].Author)
}

func TestEvictionPlanner_NeverOpenedOrderedByCachedAt(t *testing.T) {
	svc, cleanup := setupTestServices(t, 100)
	defer cleanup()

	ctx := context.Background()
	for _, bookID := range []string{"c", "a", "b"} {
		_, err := svc.cache.Save(ctx, bookID, strings.Repeat("x", 50), SaveOptions{})
		require.NoError(t, err)
		svc.clock.Advance(time.Second)
	}

	plan, err := svc.planner.PlanFor(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(110), plan.BytesToFree)
	assert.Equal(t, []string{"c", "a", "b"}, plan.SuggestedIDs())
}

func TestEvictionPlanner_Shortfall(t *testing.T) {
	svc, cleanup := setupTestServices(t, 100)
	defer cleanup()

	ctx := context.Background()
	_, err := svc.cache.Save(ctx, "b1", strings.Repeat("x", 50), SaveOptions{})
	require.NoError(t, err)

	plan, err := svc.planner.PlanFor(ctx, 500)
	require.NoError(t, err)
	assert.False(t, plan.CanStore)
	assert.Equal(t, int64(450), plan.BytesToFree)
	assert.Equal(t, []string{"b1"}, plan.SuggestedIDs())
	assert.Equal(t, int64(400), plan.Shortfall)
	assert.False(t, plan.Sufficient())
}

func TestEvictionPlanner_NegativeRequestAndEmptyCache(t *testing.T) {
	svc, cleanup := setupTestServices(t, 100)
	defer cleanup()

	plan, err := svc.planner.PlanFor(context.Background(), -50)
	require.NoError(t, err)
	assert.True(t, plan.CanStore)
	assert.Zero(t, plan.RequiredBytes)
	assert.Zero(t, plan.TotalBytes)
}

func TestEvictionPlanner_IsPureAndDeterministic(t *testing.T) {
	svc, cleanup := setupTestServices(t, 200)
	defer cleanup()

	ctx := context.Background()
	for _, bookID := range []string{"b1", "b2", "b3"} {
		_, err := svc.cache.Save(ctx, bookID, strings.Repeat("x", 90), SaveOptions{})
		require.NoError(t, err)
	}
	before, err := svc.store.Stats(ctx)
	require.NoError(t, err)

	first, err := svc.planner.PlanFor(ctx, 150)
	require.NoError(t, err)
	second, err := svc.planner.PlanFor(ctx, 150)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	after, err := svc.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNewEvictionPlanner_DefaultBudget(t *testing.T) {
	p := NewEvictionPlanner(nil, 0, nil)
	assert.Equal(t, domain.DefaultMaxCacheBytes, p.MaxBytes())
}
