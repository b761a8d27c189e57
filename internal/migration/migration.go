// Package migration moves data out of the legacy flat key/value storage
// into the collection store, once.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/speedreader/speedreader-core/internal/domain"
	"github.com/speedreader/speedreader-core/internal/legacy"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// FlagName is the store flag set once every legacy item has been imported.
const FlagName = "legacy_migrated"

// Report summarizes a migration run.
type Report struct {
	Skipped       bool     `json:"skipped"`
	LibraryBooks  int      `json:"library_books"`
	Settings      bool     `json:"settings"`
	Contents      int      `json:"contents"`
	Progress      int      `json:"progress"`
	KeysRemoved   int      `json:"keys_removed"`
	Failures      int      `json:"failures"`
	FailureDetail []string `json:"failure_detail,omitempty"`
}

// Completed reports whether the run finished without failures.
func (r *Report) Completed() bool {
	return r.Skipped || r.Failures == 0
}

func (r *Report) fail(logger *slog.Logger, key string, err error) {
	r.Failures++
	r.FailureDetail = append(r.FailureDetail, fmt.Sprintf("%s: %v", key, err))
	logger.Error("legacy item not migrated", "key", key, "error", err)
}

// Migrator imports legacy data through the regular services, so every
// import is an upsert and a second run changes nothing.
type Migrator struct {
	store     *store.Store
	source    legacy.Source
	manifest  legacy.Manifest
	catalog   *service.LibraryCatalog
	cache     *service.ContentCache
	progress  *service.ProgressTracker
	settings  *service.SettingsStore
	validator *validation.Validator
	logger    *slog.Logger
}

// Services are the components the migrator writes through.
type Services struct {
	Catalog  *service.LibraryCatalog
	Cache    *service.ContentCache
	Progress *service.ProgressTracker
	Settings *service.SettingsStore
}

// New creates a migrator reading src laid out as described by manifest.
func New(s *store.Store, src legacy.Source, manifest legacy.Manifest, svc Services, v *validation.Validator, logger *slog.Logger) *Migrator {
	return &Migrator{
		store:     s,
		source:    src,
		manifest:  manifest,
		catalog:   svc.Catalog,
		cache:     svc.Cache,
		progress:  svc.Progress,
		settings:  svc.Settings,
		validator: v,
		logger:    logger,
	}
}

// Run migrates the library list, settings, cached contents and progress, in
// that order. Items that fail are logged, counted and left in the legacy
// store for a later run; the migrated flag is only set when nothing failed.
// Errors are returned only when the store itself cannot be used.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	done, err := m.store.Flag(ctx, FlagName)
	if err != nil {
		return nil, fmt.Errorf("read migration flag: %w", err)
	}
	if done {
		m.logger.Debug("legacy migration already done")
		return &Report{Skipped: true}, nil
	}

	report := &Report{}
	steps := []struct {
		name string
		run  func(context.Context, *Report) error
	}{
		{"library", m.migrateLibrary},
		{"settings", m.migrateSettings},
		{"contents", m.migrateContents},
		{"progress", m.migrateProgress},
	}
	for _, step := range steps {
		if err := step.run(ctx, report); err != nil {
			return report, fmt.Errorf("migrate %s: %w", step.name, err)
		}
	}
	m.removeKey(ctx, report, m.manifest.MigratedKey)

	if report.Failures > 0 {
		m.logger.Warn("legacy migration incomplete, will retry on next run",
			"failures", report.Failures,
		)
		return report, nil
	}

	if err := m.store.SetFlag(ctx, FlagName, true); err != nil {
		return report, fmt.Errorf("set migration flag: %w", err)
	}
	m.logger.Info("legacy migration complete",
		"library_books", report.LibraryBooks,
		"settings", report.Settings,
		"contents", report.Contents,
		"progress", report.Progress,
		"keys_removed", report.KeysRemoved,
	)
	return report, nil
}

func (m *Migrator) migrateLibrary(ctx context.Context, report *Report) error {
	key := m.manifest.LibraryKey
	raw, ok, err := m.get(ctx, report, key)
	if err != nil || !ok {
		return err
	}

	books, err := legacy.DecodeLibrary(raw)
	if err != nil {
		report.fail(m.logger, key, err)
		return nil
	}
	snapshots := make([]*domain.BookSnapshot, 0, len(books))
	for i := range books {
		snapshots = append(snapshots, books[i].Snapshot())
	}

	n, err := m.catalog.UpsertBooks(ctx, snapshots, domain.AcquisitionCurated)
	if err != nil {
		if fatal(err) {
			return err
		}
		report.fail(m.logger, key, err)
		return nil
	}
	report.LibraryBooks = n
	m.removeKey(ctx, report, key)
	return nil
}

func (m *Migrator) migrateSettings(ctx context.Context, report *Report) error {
	key := m.manifest.SettingsKey
	raw, ok, err := m.get(ctx, report, key)
	if err != nil || !ok {
		return err
	}

	blob, err := legacy.DecodeSettings(raw)
	if err != nil {
		report.fail(m.logger, key, err)
		return nil
	}

	settings := domain.DefaultReaderSettings()
	blob.Patch().Apply(settings)
	if err := m.validator.Validate(settings); err != nil {
		dropped := validation.Fields(err)
		resetToDefaults(settings, dropped)
		m.logger.Warn("legacy settings had invalid values, using defaults for them", "fields", dropped)
	}

	if _, err := m.settings.Save(ctx, settings); err != nil {
		if fatal(err) {
			return err
		}
		report.fail(m.logger, key, err)
		return nil
	}
	report.Settings = true
	m.removeKey(ctx, report, key)
	return nil
}

func (m *Migrator) migrateContents(ctx context.Context, report *Report) error {
	return m.eachKey(ctx, report, m.manifest.ContentPrefix, m.manifest.ContentBookID,
		func(bookID, raw string) error {
			if strings.TrimSpace(raw) == "" {
				return nil
			}
			if _, err := m.cache.Save(ctx, bookID, raw, service.SaveOptions{FetchedVia: domain.FetchedViaLegacy}); err != nil {
				return err
			}
			report.Contents++
			return nil
		})
}

func (m *Migrator) migrateProgress(ctx context.Context, report *Report) error {
	return m.eachKey(ctx, report, m.manifest.ProgressPrefix, m.manifest.ProgressBookID,
		func(bookID, raw string) error {
			if strings.TrimSpace(raw) == "" {
				return nil
			}
			p, err := legacy.DecodeProgress(raw)
			if err != nil {
				return err
			}
			index, total := p.Position()
			if _, err := m.progress.Save(ctx, bookID, service.ProgressInput{CurrentWordIndex: index, TotalWords: total}); err != nil {
				return err
			}
			report.Progress++
			return nil
		})
}

// eachKey imports every key under prefix, removing the ones that succeed.
func (m *Migrator) eachKey(ctx context.Context, report *Report, prefix string, bookIDOf func(string) (string, bool), fn func(bookID, raw string) error) error {
	keys, err := m.source.Keys(ctx, prefix)
	if err != nil {
		report.fail(m.logger, prefix+"*", err)
		return nil
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		bookID, ok := bookIDOf(key)
		if !ok {
			m.removeKey(ctx, report, key)
			continue
		}
		raw, found, err := m.get(ctx, report, key)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := fn(bookID, raw); err != nil {
			if fatal(err) {
				return err
			}
			report.fail(m.logger, key, err)
			continue
		}
		m.removeKey(ctx, report, key)
	}
	return nil
}

// get reads a legacy key. A missing key is not a failure.
func (m *Migrator) get(ctx context.Context, report *Report, key string) (string, bool, error) {
	raw, err := m.source.Get(ctx, key)
	switch {
	case errors.Is(err, legacy.ErrNotFound):
		return "", false, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", false, err
	case err != nil:
		report.fail(m.logger, key, err)
		return "", false, nil
	}
	return raw, true, nil
}

func (m *Migrator) removeKey(ctx context.Context, report *Report, key string) {
	if key == "" {
		return
	}
	if err := m.source.Remove(ctx, key); err != nil {
		report.fail(m.logger, key, fmt.Errorf("remove legacy key: %w", err))
		return
	}
	report.KeysRemoved++
}
