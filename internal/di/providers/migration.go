package providers

import (
	"errors"

	"github.com/samber/do/v2"

	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/legacy"
	"github.com/speedreader/speedreader-core/internal/logger"
	"github.com/speedreader/speedreader-core/internal/migration"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// ErrNoLegacySource is returned when migration is requested without LEGACY_DB_PATH.
var ErrNoLegacySource = errors.New("no legacy database configured")

// LegacySourceHandle wraps the legacy key/value database.
type LegacySourceHandle struct {
	*legacy.SQLiteSource
}

// Shutdown implements do.Shutdownable.
func (h *LegacySourceHandle) Shutdown() error {
	return h.Close()
}

// ProvideLegacySource opens the legacy SQLite export.
func ProvideLegacySource(i do.Injector) (*LegacySourceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Legacy.DBPath == "" {
		return nil, ErrNoLegacySource
	}

	src, err := legacy.OpenSQLite(cfg.Legacy.DBPath)
	if err != nil {
		return nil, err
	}
	return &LegacySourceHandle{SQLiteSource: src}, nil
}

// ProvideMigrator provides the legacy data migrator.
func ProvideMigrator(i do.Injector) (*migration.Migrator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	src, err := do.Invoke[*LegacySourceHandle](i)
	if err != nil {
		return nil, err
	}

	svc := migration.Services{
		Catalog:  do.MustInvoke[*service.LibraryCatalog](i),
		Cache:    do.MustInvoke[*service.ContentCache](i),
		Progress: do.MustInvoke[*service.ProgressTracker](i),
		Settings: do.MustInvoke[*service.SettingsStore](i),
	}

	return migration.New(storeHandle.Store, src, legacy.DefaultManifest, svc,
		do.MustInvoke[*validation.Validator](i), log.Component("migration")), nil
}
