package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedreader/speedreader-core/internal/domain"
)

func openAt(t *testing.T, dir string, version int) *Store {
	t.Helper()
	opts := badger.DefaultOptions(dir)
	s, err := open(opts, nil, version)
	require.NoError(t, err)
	return s
}

func TestUpgrade_FromV1KeepsDataAndBuildsIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	s := openAt(t, dir, 1)
	assert.Equal(t, 1, s.Version())
	assert.False(t, s.hasCollection(CollectionUploads))

	entry := &domain.LibraryEntry{
		BookID:       "b1",
		BookSnapshot: &domain.BookSnapshot{ID: "b1", Category: "essays"},
	}
	require.NoError(t, s.Library.Save(ctx, entry))

	err := s.Uploads.Save(ctx, &domain.UploadRecord{UploadID: "up-1"})
	require.Error(t, err, "uploads does not exist before v2")

	require.NoError(t, s.Close())

	s = openAt(t, dir, 2)
	defer s.Close()

	assert.Equal(t, 2, s.Version())
	assert.True(t, s.hasCollection(CollectionUploads))
	assert.True(t, s.hasCollection(CollectionIngestionQueue))

	got, err := s.Library.Load(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "essays", got.BookSnapshot.Category)

	var values []string
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		return tx.scan(indexCollectionPrefix(CollectionLibrary, IndexCategory), true, func(rest string, _ []byte) error {
			values = append(values, strings.ReplaceAll(rest, indexSep, "|"))
			return nil
		})
	}))
	assert.Equal(t, []string{"essays|b1"}, values)

	require.NoError(t, s.Uploads.Save(ctx, &domain.UploadRecord{UploadID: "up-1"}))
}

func TestUpgrade_FromV2IndexesUploadsByBook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	s := openAt(t, dir, 2)
	require.NoError(t, s.Uploads.Save(ctx, &domain.UploadRecord{UploadID: "up-1", BookID: "upload-a"}))
	require.NoError(t, s.Uploads.Save(ctx, &domain.UploadRecord{UploadID: "up-2", BookID: "upload-b"}))
	// Records written before v3 carry no index keys.
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		prefix := indexCollectionPrefix(CollectionUploads, IndexUploadBook)
		var keys [][]byte
		if err := tx.scan(prefix, true, func(rest string, _ []byte) error {
			keys = append(keys, []byte(string(prefix)+rest))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.delete(k); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.Close())

	s = openAt(t, dir, latestVersion())
	defer s.Close()
	assert.Equal(t, 3, s.Version())

	var got []*domain.UploadRecord
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		var err error
		got, err = s.Uploads.ByIndex(tx, IndexUploadBook, "upload-a")
		return err
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "up-1", got[0].UploadID)
}

func TestUpgrade_RejectsNewerDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	s := openAt(t, dir, latestVersion())
	require.NoError(t, s.Update(context.Background(), func(tx *Tx) error {
		return tx.setJSON(schemaVersionKey, latestVersion()+1)
	}))
	require.NoError(t, s.Close())

	_, err := open(badger.DefaultOptions(dir), nil, latestVersion())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")

	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}

func TestUpgrade_IsNoopWhenCurrent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	s := openAt(t, dir, latestVersion())
	require.NoError(t, s.Close())

	s = openAt(t, dir, latestVersion())
	defer s.Close()
	assert.Equal(t, latestVersion(), s.Version())
	assert.Len(t, s.collectionNames(), len(AllCollections()))
}
