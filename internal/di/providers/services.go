package providers

import (
	"github.com/samber/do/v2"

	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/logger"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// ProvideValidator provides the shared struct validator.
func ProvideValidator(_ do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideEvictionPlanner provides the cache eviction planner.
func ProvideEvictionPlanner(i do.Injector) (*service.EvictionPlanner, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewEvictionPlanner(storeHandle.Store, cfg.Storage.CacheBudgetBytes, log.Component("planner")), nil
}

// ProvideContentCache provides the book text cache.
func ProvideContentCache(i do.Injector) (*service.ContentCache, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	planner := do.MustInvoke[*service.EvictionPlanner](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewContentCache(storeHandle.Store, planner, log.Component("content")), nil
}

// ProvideLibraryCatalog provides the library catalog.
func ProvideLibraryCatalog(i do.Injector) (*service.LibraryCatalog, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cache := do.MustInvoke[*service.ContentCache](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLibraryCatalog(storeHandle.Store, cache, log.Component("library")), nil
}

// ProvideProgressTracker provides the reading progress tracker.
func ProvideProgressTracker(i do.Injector) (*service.ProgressTracker, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProgressTracker(storeHandle.Store, log.Component("progress")), nil
}

// ProvideSettingsStore provides the reader settings store.
func ProvideSettingsStore(i do.Injector) (*service.SettingsStore, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSettingsStore(storeHandle.Store, v, log.Component("settings")), nil
}
