package backup

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/speedreader/speedreader-core/internal/backup/stream"
	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/store"
)

// MergeStrategy decides which record wins when a key exists both locally
// and in the backup.
type MergeStrategy string

const (
	// MergeKeepLocal keeps the local record on conflict.
	MergeKeepLocal MergeStrategy = "keep_local"

	// MergeKeepBackup overwrites the local record with the backup's.
	MergeKeepBackup MergeStrategy = "keep_backup"
)

// Valid returns true if the strategy is recognized.
func (m MergeStrategy) Valid() bool {
	return m == MergeKeepLocal || m == MergeKeepBackup
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	Strategy MergeStrategy
	DryRun   bool // Count what would change without writing
}

// RestoreError describes a record that could not be restored.
type RestoreError struct {
	Collection string `json:"collection"`
	Key        string `json:"key,omitempty"`
	Error      string `json:"error"`
}

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Manifest   *Manifest      `json:"manifest"`
	Imported   map[string]int `json:"imported"`
	Skipped    map[string]int `json:"skipped"`
	Errors     []RestoreError `json:"errors,omitempty"`
	Reconciled int            `json:"reconciled"`
	Duration   time.Duration  `json:"duration"`
}

type tableImporter func(ctx context.Context, zr *zip.Reader) error

// entryChange reports what reconciling a library entry did.
type entryChange int

const (
	entryUnchanged entryChange = iota
	entryCorrected
	entryCreated
)

// restoreRun carries the state of one Restore call.
type restoreRun struct {
	svc  *Service
	opts RestoreOptions
	res  *RestoreResult

	// placeholders are entries created to cover restored content before
	// the library collection is read; the backup's own entry replaces them.
	placeholders map[string]bool
	corrected    map[string]bool
}

// tableHooks customize how one collection is restored.
type tableHooks[T any] struct {
	// check rejects a record before it is written.
	check func(rec *T) error
	// after runs in the record's group once it has been written.
	after func(tx *store.Tx, key string) (entryChange, error)
	// replaceable reports whether an existing local record may be
	// overwritten even under keep_local.
	replaceable func(key string) bool
}

// Restore merges a backup into the store record by record. Every group that
// writes a content, library or progress record also reconciles that book's
// library entry, so the downloaded flag and the progress mirror hold after
// each group even if the restore stops part way.
func (b *Service) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()
	if opts.Strategy == "" {
		opts.Strategy = MergeKeepLocal
	}
	if !opts.Strategy.Valid() {
		return nil, domainerrors.Validationf("unknown merge strategy %q", opts.Strategy)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if manifest.SchemaVersion > b.store.Version() {
		return nil, fmt.Errorf("%w: schema %d is newer than this store's %d",
			ErrVersionMismatch, manifest.SchemaVersion, b.store.Version())
	}

	b.logger.Info("starting restore", "path", path, "strategy", opts.Strategy, "dry_run", opts.DryRun)

	r := &restoreRun{
		svc:  b,
		opts: opts,
		res: &RestoreResult{
			Manifest: manifest,
			Imported: make(map[string]int),
			Skipped:  make(map[string]int),
		},
		placeholders: make(map[string]bool),
		corrected:    make(map[string]bool),
	}
	reconcile := func(tx *store.Tx, bookID string) (entryChange, error) {
		return b.reconcileEntry(tx, bookID)
	}

	// Progress and content go before library entries so an entry written
	// from the backup is reconciled against both.
	for _, restore := range []tableImporter{
		restoreTable(r, b.store.Books, tableHooks[domain.BookRecord]{}),
		restoreTable(r, b.store.Progress, tableHooks[domain.ProgressRecord]{after: reconcile}),
		restoreTable(r, b.store.Contents, tableHooks[domain.ContentRecord]{after: reconcile}),
		restoreTable(r, b.store.Library, tableHooks[domain.LibraryEntry]{
			after:       reconcile,
			replaceable: func(key string) bool { return r.placeholders[key] },
		}),
		restoreTable(r, b.store.Settings, tableHooks[domain.ReaderSettings]{check: b.checkSettings}),
		restoreTable(r, b.store.Uploads, tableHooks[domain.UploadRecord]{}),
		restoreTable(r, b.store.Jobs, tableHooks[domain.IngestionJob]{}),
	} {
		if err := restore(ctx, &zr.Reader); err != nil {
			return nil, err
		}
	}

	res := r.res
	res.Reconciled = len(r.corrected)
	res.Duration = time.Since(start)
	b.logger.Info("restore complete",
		"imported", res.Imported,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"reconciled", res.Reconciled,
		"duration", res.Duration)
	return res, nil
}

// restoreTable writes each record of one collection in its own group.
// Records that fail to decode, fail the check or are rejected by the table
// are reported and skipped; store failures and cancellation abort.
func restoreTable[T any](r *restoreRun, t *store.Table[T], hooks tableHooks[T]) tableImporter {
	return func(ctx context.Context, zr *zip.Reader) error {
		name := string(t.Collection())
		rc, err := stream.OpenFile(zr, collectionPath(name))
		if errors.Is(err, stream.ErrFileNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}

		s := r.svc.store
		for rec, err := range stream.NewReader[T](rc).All() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err == nil && hooks.check != nil {
				err = hooks.check(rec)
			}
			if err != nil {
				r.res.Errors = append(r.res.Errors, RestoreError{Collection: name, Error: err.Error()})
				continue
			}

			key := t.KeyOf(rec)
			replacing := hooks.replaceable != nil && hooks.replaceable(key)
			var write bool
			var change entryChange
			apply := func(tx *store.Tx) error {
				change = entryUnchanged
				exists, err := t.Exists(tx, key)
				if err != nil {
					return err
				}
				write = !exists || replacing || r.opts.Strategy == MergeKeepBackup
				if !write || r.opts.DryRun {
					return nil
				}
				if err := t.Put(tx, rec); err != nil {
					return err
				}
				if hooks.after != nil {
					change, err = hooks.after(tx, key)
				}
				return err
			}
			if r.opts.DryRun {
				err = s.View(ctx, apply)
			} else {
				err = s.Update(ctx, apply)
			}

			switch {
			case err == nil && write:
				r.res.Imported[name]++
				if replacing && !r.opts.DryRun {
					delete(r.placeholders, key)
					delete(r.corrected, key)
				}
				r.note(key, change)
			case err == nil:
				r.res.Skipped[name]++
			case errors.Is(err, domainerrors.ErrStorageUnavailable),
				errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				r.res.Errors = append(r.res.Errors, RestoreError{Collection: name, Key: key, Error: err.Error()})
			}
		}
		return nil
	}
}

// note records a committed reconciliation.
func (r *restoreRun) note(bookID string, change entryChange) {
	switch change {
	case entryCreated:
		r.placeholders[bookID] = true
		r.corrected[bookID] = true
	case entryCorrected:
		r.corrected[bookID] = true
	}
}

// checkSettings applies the same rules SettingsStore.Save enforces.
func (b *Service) checkSettings(s *domain.ReaderSettings) error {
	if s.ID != domain.SettingsKey {
		return domainerrors.Validationf("settings key must be %q, got %q", domain.SettingsKey, s.ID)
	}
	return b.validator.Validate(s)
}

// reconcileEntry brings one library entry in line with the book's content
// and progress records, creating the entry when content exists without one.
func (b *Service) reconcileEntry(tx *store.Tx, bookID string) (entryChange, error) {
	entry, err := b.store.Library.Lookup(tx, bookID)
	if err != nil {
		return entryUnchanged, err
	}
	content, err := b.store.Contents.Lookup(tx, bookID)
	if err != nil {
		return entryUnchanged, err
	}
	progress, err := b.store.Progress.Lookup(tx, bookID)
	if err != nil {
		return entryUnchanged, err
	}

	change := entryUnchanged
	if entry == nil {
		if content == nil {
			return entryUnchanged, nil
		}
		entry = domain.NewLibraryEntry(bookID, domain.AcquisitionCurated, b.now())
		book, err := b.store.Books.Lookup(tx, bookID)
		if err != nil {
			return entryUnchanged, err
		}
		if book != nil {
			entry.BookSnapshot = book.BookSnapshot.Clone()
		}
		change = entryCreated
	}

	fixed := false
	if entry.HasDownloaded != (content != nil) {
		entry.HasDownloaded = content != nil
		fixed = true
	}
	switch {
	case content != nil && (entry.LocalWordCount == nil || *entry.LocalWordCount != content.WordCountActual):
		words := content.WordCountActual
		entry.LocalWordCount = &words
		fixed = true
	case content == nil && entry.LocalWordCount != nil:
		entry.LocalWordCount = nil
		fixed = true
	}

	percent := 0.0
	if progress != nil {
		percent = progress.PercentComplete
	}
	if entry.ReadProgress != percent {
		entry.ReadProgress = percent
		fixed = true
	}

	if change == entryUnchanged && !fixed {
		return entryUnchanged, nil
	}
	if change == entryUnchanged {
		change = entryCorrected
	}
	return change, b.store.Library.Put(tx, entry)
}
