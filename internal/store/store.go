// Package store is the device-resident persistent store: a single badger
// database holding several named collections, a schema version with an
// additive upgrade path, and atomic groups spanning any number of
// collections.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
)

// maxTxnAttempts bounds how often a group that lost a write conflict is replayed.
const maxTxnAttempts = 5

// ErrNotFound is returned by Table.Get when the key does not exist.
var ErrNotFound = domainerrors.ErrNotFound

// Store wraps a Badger database instance.
type Store struct {
	mu     sync.RWMutex
	db     *badger.DB
	logger *slog.Logger

	version     int
	collections map[Collection]bool

	Books    *Table[domain.BookRecord]
	Contents *Table[domain.ContentRecord]
	Library  *Table[domain.LibraryEntry]
	Progress *Table[domain.ProgressRecord]
	Settings *Table[domain.ReaderSettings]
	Uploads  *Table[domain.UploadRecord]
	Jobs     *Table[domain.IngestionJob]
}

// Open opens (creating if needed) the database at path and brings its schema
// up to date. An empty path means the host has nowhere to persist data.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, domainerrors.StorageUnavailable("no database path configured")
	}
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, logger, latestVersion())
}

// OpenInMemory opens an ephemeral database. Nothing survives Close.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	return open(opts, logger, latestVersion())
}

// Unavailable returns a store on which every operation fails with
// StorageUnavailable. Components wired to it degrade instead of crashing.
func Unavailable(logger *slog.Logger) *Store {
	s := newStore(nil, logger)
	return s
}

func open(opts badger.Options, logger *slog.Logger, target int) (*Store, error) {
	opts.Logger = nil // Disable Badger's internal logging unless we have somewhere to send it
	if bl := newBadgerLogger(logger); bl != nil {
		opts.Logger = bl
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeStorageUnavailable, "failed to open badger db")
	}

	s := newStore(db, logger)
	if err := s.upgrade(context.Background(), target); err != nil {
		_ = db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("Badger database opened successfully",
			"path", opts.Dir,
			"in_memory", opts.InMemory,
			"schema_version", s.version,
		)
	}
	return s, nil
}

func newStore(db *badger.DB, logger *slog.Logger) *Store {
	s := &Store{
		db:          db,
		logger:      logger,
		collections: make(map[Collection]bool),
	}
	s.initTables()
	return s
}

// initTables declares the typed collections and their secondary indexes.
func (s *Store) initTables() {
	s.Books = NewTable(s, CollectionBooks, func(r *domain.BookRecord) string { return r.BookID })
	s.Contents = NewTable(s, CollectionBookContents, func(r *domain.ContentRecord) string { return r.BookID })
	s.Library = NewTable(s, CollectionLibrary, func(e *domain.LibraryEntry) string { return e.BookID }).
		WithIndex(IndexCategory, func(e *domain.LibraryEntry) []string {
			return []string{e.Category()}
		})
	s.Progress = NewTable(s, CollectionReadingProgress, func(r *domain.ProgressRecord) string { return r.BookID })
	s.Settings = NewTable(s, CollectionReaderSettings, func(r *domain.ReaderSettings) string { return r.ID })
	s.Uploads = NewTable(s, CollectionUploads, func(r *domain.UploadRecord) string { return r.UploadID }).
		WithIndex(IndexUploadBook, func(r *domain.UploadRecord) []string {
			return []string{r.BookID}
		})
	s.Jobs = NewTable(s, CollectionIngestionQueue, func(j *domain.IngestionJob) string { return j.JobID })
}

// Close gracefully closes the database. Later operations report StorageUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Available reports whether the store can serve operations.
func (s *Store) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Version returns the schema version the database is at.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domainerrors.ErrStorageUnavailable
	}

	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{store: s, txn: txn, ctx: ctx})
	})
}

// Update runs fn as one atomic group. Either every write made through tx
// becomes visible or none does. If fn returns an error the group is
// discarded and the error returned unchanged. A group that loses a
// read/write conflict against a concurrent group is replayed from scratch,
// so fn must not have effects outside tx.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domainerrors.ErrStorageUnavailable
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.runUpdate(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		lastErr = err
		if s.logger != nil {
			s.logger.Debug("transaction conflict, retrying", "attempt", attempt)
		}
	}

	return domainerrors.TransactionAborted(lastErr, "transaction kept conflicting")
}

// runUpdate runs a single attempt of an atomic group.
func (s *Store) runUpdate(ctx context.Context, fn func(tx *Tx) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&Tx{store: s, txn: txn, ctx: ctx, writable: true}); err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			return domainerrors.TransactionAborted(err, "transaction too large")
		}
		return err
	}

	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		return domainerrors.TransactionAborted(err, "failed to commit transaction")
	}
	return nil
}

// hasCollection reports whether the schema has created c.
func (s *Store) hasCollection(c Collection) bool {
	return s.collections[c]
}

// Flag reports whether the named persistent flag is set.
func (s *Store) Flag(ctx context.Context, name string) (bool, error) {
	var set bool
	err := s.View(ctx, func(tx *Tx) error {
		var v bool
		err := tx.getJSON(flagKey(name), &v)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		set = v
		return nil
	})
	return set, err
}

// SetFlag persists the named flag.
func (s *Store) SetFlag(ctx context.Context, name string, value bool) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.setJSON(flagKey(name), value)
	})
}

// Stats describes the contents of the store.
type Stats struct {
	SchemaVersion int                `json:"schema_version"`
	Records       map[Collection]int `json:"records"`
	ContentBytes  int64              `json:"content_bytes"`
}

// Stats counts records per collection.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Records: make(map[Collection]int)}
	err := s.View(ctx, func(tx *Tx) error {
		stats.SchemaVersion = s.version
		for _, c := range AllCollections() {
			if !s.hasCollection(c) {
				continue
			}
			n, err := tx.count(c)
			if err != nil {
				return fmt.Errorf("count %s: %w", c, err)
			}
			stats.Records[c] = n
		}
		for rec, err := range s.Contents.List(tx) {
			if err != nil {
				return err
			}
			stats.ContentBytes += rec.ByteSize
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
