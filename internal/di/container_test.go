package di_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedreader/speedreader-core/internal/backup"
	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/di"
	"github.com/speedreader/speedreader-core/internal/di/providers"
	"github.com/speedreader/speedreader-core/internal/legacy"
	"github.com/speedreader/speedreader-core/internal/service"
)

func overrides(t *testing.T) config.Overrides {
	t.Helper()
	for _, key := range []string{"ENV", "LOG_LEVEL", "DATA_PATH", "CACHE_BUDGET_BYTES", "LEGACY_DB_PATH", "MIGRATE_ON_START", "INBOX_PATH", "INBOX_RATE"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return config.Overrides{
		Environment: "test",
		LogLevel:    "error",
		DataPath:    filepath.Join(dir, "data"),
		EnvFile:     filepath.Join(dir, "missing.env"),
	}
}

func TestContainer_ResolvesServices(t *testing.T) {
	injector := di.NewContainer(overrides(t))
	t.Cleanup(func() { _ = injector.Shutdown() })

	require.NoError(t, di.Bootstrap(context.Background(), injector))

	catalog := do.MustInvoke[*service.LibraryCatalog](injector)
	book, err := catalog.CreateFromText(context.Background(), service.TextInput{Content: "a short pasted note"})
	require.NoError(t, err)

	books, err := catalog.ListForUI(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, book.ID, books[0].ID)

	planner := do.MustInvoke[*service.EvictionPlanner](injector)
	assert.Equal(t, int64(209715200), planner.MaxBytes())

	_, err = do.Invoke[*providers.InboxHandle](injector)
	assert.ErrorContains(t, err, providers.ErrNoInbox.Error())

	archive := filepath.Join(t.TempDir(), "backup.zip")
	res, err := do.MustInvoke[*backup.Service](injector).Export(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Manifest.Counts["library"])
}

func TestBootstrap_MigratesLegacyDatabase(t *testing.T) {
	o := overrides(t)
	o.LegacyDBPath = filepath.Join(t.TempDir(), "legacy.db")

	src, err := legacy.OpenSQLite(o.LegacyDBPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, src.Set(ctx, legacy.DefaultManifest.LibraryKey,
		`[{"id":"gutenberg-84","title":"Frankenstein","author":"Mary Shelley"}]`))
	require.NoError(t, src.Set(ctx, legacy.DefaultManifest.ContentPrefix+"gutenberg-84", "It was on a dreary night of November"))
	require.NoError(t, src.Close())

	injector := di.NewContainer(o)
	t.Cleanup(func() { _ = injector.Shutdown() })
	require.NoError(t, di.Bootstrap(ctx, injector))

	catalog := do.MustInvoke[*service.LibraryCatalog](injector)
	book, err := catalog.Get(ctx, "gutenberg-84")
	require.NoError(t, err)
	assert.Equal(t, "Frankenstein", book.Title)
	assert.True(t, book.HasDownloaded)
}

func TestBootstrap_WithoutLegacyPathSkipsMigration(t *testing.T) {
	o := overrides(t)
	o.MigrateOnStart = "true"

	injector := di.NewContainer(o)
	t.Cleanup(func() { _ = injector.Shutdown() })
	require.NoError(t, di.Bootstrap(context.Background(), injector))

	_, err := do.Invoke[*providers.LegacySourceHandle](injector)
	assert.ErrorContains(t, err, providers.ErrNoLegacySource.Error())
}
