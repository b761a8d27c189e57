package providers

import (
	"github.com/samber/do/v2"

	"github.com/speedreader/speedreader-core/internal/backup"
	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/logger"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the persistent store. When the database cannot be
// opened the store degrades to an unavailable one: reads fall back to
// defaults and writes report StorageUnavailable.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.Open(cfg.Storage.DBPath, log.Component("store"))
	if err != nil {
		log.Warn("storage unavailable, continuing without persistence",
			"path", cfg.Storage.DBPath,
			"error", err)
		return &StoreHandle{Store: store.Unavailable(log.Component("store"))}, nil
	}

	log.Debug("database opened", "path", cfg.Storage.DBPath, "schema_version", db.Version())
	return &StoreHandle{Store: db}, nil
}

// ProvideBackupService provides archive export and restore over the store.
func ProvideBackupService(i do.Injector) (*backup.Service, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return backup.New(storeHandle.Store, v, log.Component("backup")), nil
}
