package migration_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/speedreader/speedreader-core/internal/domain"
	"github.com/speedreader/speedreader-core/internal/legacy"
	"github.com/speedreader/speedreader-core/internal/legacy/mocks"
	"github.com/speedreader/speedreader-core/internal/migration"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/validation"
)

type fixture struct {
	store    *store.Store
	services migration.Services
}

func setupFixture(t *testing.T) (*fixture, func()) {
	t.Helper()

	s, err := store.OpenInMemory(nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	planner := service.NewEvictionPlanner(s, 0, logger)
	cache := service.NewContentCache(s, planner, logger)

	f := &fixture{
		store: s,
		services: migration.Services{
			Catalog:  service.NewLibraryCatalog(s, cache, logger),
			Cache:    cache,
			Progress: service.NewProgressTracker(s, logger),
			Settings: service.NewSettingsStore(s, validation.New(), logger),
		},
	}
	return f, func() { _ = s.Close() }
}

func (f *fixture) migrator(src legacy.Source) *migration.Migrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return migration.New(f.store, src, legacy.DefaultManifest, f.services, validation.New(), logger)
}

func legacyData() map[string]string {
	return map[string]string{
		"speedReader:migratedToIndexedDb": "1",
		"speedReader:libraryBooks": `[
			{"id":"gutenberg-1342","title":"Pride and Prejudice","author":"Jane Austen","category":"classics","wordCount":120000,"coverImage":"pp.jpg","isFeatured":true},
			{"id":"gutenberg-84","title":"Frankenstein","author":"Mary Shelley"},
			{"title":"no id"}
		]`,
		"speedReader:settings":                   `{"readingSpeed":500,"theme":"neon","fontSize":18,"legacyOnly":true}`,
		"speedReader:bookContent:gutenberg-1342": "It is a truth universally acknowledged",
		"speedReader:bookContent:":               "orphan",
		"speedReader:progress:gutenberg-1342":    `{"currentWordIndex":3,"totalWords":6,"percentComplete":50}`,
		"speedReader:progress:gutenberg-84":      `{"currentWordIndex":10}`,
		"unrelated:key":                          "kept",
	}
}

func TestMigrator_ImportsEverything(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	src := legacy.NewMemorySource(legacyData())

	report, err := f.migrator(src).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Equal(t, 2, report.LibraryBooks)
	assert.True(t, report.Settings)
	assert.Equal(t, 1, report.Contents)
	assert.Equal(t, 2, report.Progress)
	assert.Zero(t, report.Failures)

	// Only keys outside the manifest survive.
	assert.Equal(t, 1, src.Len())
	_, err = src.Get(ctx, "unrelated:key")
	assert.NoError(t, err)

	entry, err := f.store.Library.Load(ctx, "gutenberg-1342")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.AcquisitionCurated, entry.AcquisitionType)
	assert.True(t, entry.HasDownloaded)
	assert.Equal(t, "pp.jpg", entry.BookSnapshot.CoverImage)
	assert.InDelta(t, 60.0, entry.ReadProgress, 0.001)

	content, err := f.services.Cache.Get(ctx, "gutenberg-1342")
	require.NoError(t, err)
	assert.Equal(t, domain.FetchedViaLegacy, content.FetchedVia)

	frank, err := f.services.Progress.Load(ctx, "gutenberg-84")
	require.NoError(t, err)
	assert.Equal(t, 0, frank.CurrentWordIndex, "missing total defaults to one word")
	assert.Equal(t, 1, frank.TotalWords)

	settings, err := f.services.Settings.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, settings.ReadingSpeed)
	assert.Equal(t, 18, settings.FontSize)
	assert.Equal(t, "light", settings.Theme, "invalid legacy values fall back to defaults")

	done, err := f.store.Flag(ctx, migration.FlagName)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestMigrator_SecondRunIsNoop(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	src := legacy.NewMemorySource(legacyData())
	m := f.migrator(src)

	_, err := m.Run(ctx)
	require.NoError(t, err)
	first, err := f.store.Stats(ctx)
	require.NoError(t, err)

	// New legacy data appearing later is not imported once the flag is set.
	src.Set("speedReader:bookContent:late", "late text")
	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	second, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMigrator_RerunAfterInterruptionIsIdempotent(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	data := legacyData()

	// Same legacy data imported twice, as if the first run died before
	// removing keys and setting the flag.
	_, err := f.migrator(legacy.NewMemorySource(data)).Run(ctx)
	require.NoError(t, err)
	once, err := f.services.Catalog.ListForUI(ctx)
	require.NoError(t, err)
	onceStats, err := f.store.Stats(ctx)
	require.NoError(t, err)

	require.NoError(t, f.store.SetFlag(ctx, migration.FlagName, false))
	_, err = f.migrator(legacy.NewMemorySource(data)).Run(ctx)
	require.NoError(t, err)
	twice, err := f.services.Catalog.ListForUI(ctx)
	require.NoError(t, err)
	twiceStats, err := f.store.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, onceStats, twiceStats)
}

func TestMigrator_FailedItemStaysForRetry(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctx := context.Background()
	src := legacy.NewMemorySource(map[string]string{
		"speedReader:progress:b1": `{"currentWordIndex":`,
		"speedReader:progress:b2": `{"currentWordIndex":1,"totalWords":3}`,
	})
	m := f.migrator(src)

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Completed())
	assert.Equal(t, 1, report.Failures)
	assert.Equal(t, 1, report.Progress)

	_, err = src.Get(ctx, "speedReader:progress:b1")
	assert.NoError(t, err, "failed key is left for the next run")

	done, err := f.store.Flag(ctx, migration.FlagName)
	require.NoError(t, err)
	assert.False(t, done)

	src.Set("speedReader:progress:b1", `{"currentWordIndex":2,"totalWords":5}`)
	report, err = m.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Completed())
	assert.Zero(t, src.Len())
}

func TestMigrator_SourceFailures(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	boom := errors.New("disk error")
	m := legacy.DefaultManifest

	src.EXPECT().Get(gomock.Any(), m.LibraryKey).Return("", boom)
	src.EXPECT().Get(gomock.Any(), m.SettingsKey).Return("", legacy.ErrNotFound)
	src.EXPECT().Keys(gomock.Any(), m.ContentPrefix).Return(nil, boom)
	src.EXPECT().Keys(gomock.Any(), m.ProgressPrefix).Return([]string{m.ProgressPrefix + "b1"}, nil)
	src.EXPECT().Get(gomock.Any(), m.ProgressPrefix+"b1").Return(`{"currentWordIndex":0,"totalWords":2}`, nil)
	src.EXPECT().Remove(gomock.Any(), m.ProgressPrefix+"b1").Return(boom)
	src.EXPECT().Remove(gomock.Any(), m.MigratedKey).Return(nil)

	report, err := f.migrator(src).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Failures)
	assert.Equal(t, 1, report.Progress)
	assert.Len(t, report.FailureDetail, 3)

	done, err := f.store.Flag(context.Background(), migration.FlagName)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMigrator_UnavailableStore(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()
	require.NoError(t, f.store.Close())

	_, err := f.migrator(legacy.NewMemorySource(legacyData())).Run(context.Background())
	assert.Error(t, err)
}
