package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
)

// Collection names a group of records sharing a key space.
type Collection string

// Collections known to the schema.
const (
	CollectionBooks           Collection = "books"
	CollectionBookContents    Collection = "bookContents"
	CollectionLibrary         Collection = "library"
	CollectionReadingProgress Collection = "readingProgress"
	CollectionReaderSettings  Collection = "readerSettings"
	CollectionUploads         Collection = "uploads"
	CollectionIngestionQueue  Collection = "ingestionQueue"
)

// Secondary indexes.
const (
	// IndexCategory indexes library entries by snapshot category.
	IndexCategory = "category"
	// IndexUploadBook indexes upload records by the book they created.
	IndexUploadBook = "book"
)

var (
	schemaVersionKey = metaKey("schema_version")
	collectionsKey   = metaKey("collections")
)

// AllCollections lists every collection in creation order.
func AllCollections() []Collection {
	return []Collection{
		CollectionBooks,
		CollectionBookContents,
		CollectionLibrary,
		CollectionReadingProgress,
		CollectionReaderSettings,
		CollectionUploads,
		CollectionIngestionQueue,
	}
}

// schemaStep upgrades the database from version-1 to version. Steps only
// add: they create collections and build indexes, never rewrite records.
type schemaStep struct {
	version     int
	description string
	creates     []Collection
	apply       func(s *Store, tx *Tx) error
}

var schemaSteps = []schemaStep{
	{
		version:     1,
		description: "base collections",
		creates: []Collection{
			CollectionBooks,
			CollectionBookContents,
			CollectionLibrary,
			CollectionReadingProgress,
			CollectionReaderSettings,
		},
	},
	{
		version:     2,
		description: "uploads, ingestion queue, library category index",
		creates:     []Collection{CollectionUploads, CollectionIngestionQueue},
		apply: func(s *Store, tx *Tx) error {
			return s.Library.rebuildIndex(tx, IndexCategory)
		},
	},
	{
		version:     3,
		description: "uploads book index",
		apply: func(s *Store, tx *Tx) error {
			return s.Uploads.rebuildIndex(tx, IndexUploadBook)
		},
	},
}

func latestVersion() int {
	return schemaSteps[len(schemaSteps)-1].version
}

// upgrade brings the database to target, one step per transaction, so an
// interrupted upgrade resumes at the first step that did not commit.
func (s *Store) upgrade(ctx context.Context, target int) error {
	current, created, err := s.readSchema(ctx)
	if err != nil {
		return err
	}
	if current > latestVersion() {
		return domainerrors.StorageUnavailable(fmt.Sprintf(
			"database schema version %d is newer than supported version %d", current, latestVersion()))
	}

	s.version = current
	for _, c := range created {
		s.collections[c] = true
	}

	for _, step := range schemaSteps {
		if step.version <= current || step.version > target {
			continue
		}

		// Collections must be visible to apply before the step commits.
		for _, c := range step.creates {
			s.collections[c] = true
		}

		err := s.Update(ctx, func(tx *Tx) error {
			if step.apply != nil {
				if err := step.apply(s, tx); err != nil {
					return err
				}
			}
			names := s.collectionNames()
			if err := tx.setJSON(collectionsKey, names); err != nil {
				return err
			}
			return tx.setJSON(schemaVersionKey, step.version)
		})
		if err != nil {
			for _, c := range step.creates {
				delete(s.collections, c)
			}
			return fmt.Errorf("schema upgrade to v%d (%s): %w", step.version, step.description, err)
		}

		s.version = step.version
		if s.logger != nil {
			s.logger.Info("Schema upgraded",
				"version", step.version,
				"description", step.description,
			)
		}
	}
	return nil
}

// readSchema loads the stored version and collection list. A fresh database is version 0.
func (s *Store) readSchema(ctx context.Context) (int, []Collection, error) {
	var (
		version int
		names   []Collection
	)
	err := s.View(ctx, func(tx *Tx) error {
		if err := tx.getJSON(schemaVersionKey, &version); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("read schema version: %w", err)
		}
		if err := tx.getJSON(collectionsKey, &names); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("read collections: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return version, names, nil
}

func (s *Store) collectionNames() []Collection {
	names := make([]Collection, 0, len(s.collections))
	for c := range s.collections {
		names = append(names, c)
	}
	slices.Sort(names)
	return names
}
