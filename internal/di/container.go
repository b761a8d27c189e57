// Package di provides dependency injection configuration for the reader core.
package di

import (
	"context"
	"errors"

	"github.com/samber/do/v2"

	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/di/providers"
	"github.com/speedreader/speedreader-core/internal/logger"
	"github.com/speedreader/speedreader-core/internal/migration"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(overrides config.Overrides) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, overrides)

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Business services
	do.Provide(injector, providers.ProvideEvictionPlanner)
	do.Provide(injector, providers.ProvideContentCache)
	do.Provide(injector, providers.ProvideLibraryCatalog)
	do.Provide(injector, providers.ProvideProgressTracker)
	do.Provide(injector, providers.ProvideSettingsStore)

	// Legacy import
	do.Provide(injector, providers.ProvideLegacySource)
	do.Provide(injector, providers.ProvideMigrator)

	// Backup
	do.Provide(injector, providers.ProvideBackupService)

	// Workers
	do.Provide(injector, providers.ProvideIngestWorker)
	do.Provide(injector, providers.ProvideInbox)

	return injector
}

// Bootstrap opens the store and, when configured, runs the legacy migration.
// Migration failures are logged; the store stays usable either way.
func Bootstrap(ctx context.Context, injector *do.RootScope) error {
	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return err
	}
	log := do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	if !cfg.Legacy.MigrateOnStart || cfg.Legacy.DBPath == "" {
		return nil
	}

	m, err := do.Invoke[*migration.Migrator](injector)
	if err != nil {
		log.Warn("legacy migration skipped", "error", err)
		return nil
	}
	report, err := m.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn("legacy migration did not run", "error", err)
		return nil
	}
	if !report.Skipped {
		log.Info("legacy migration finished",
			"books", report.LibraryBooks,
			"contents", report.Contents,
			"progress", report.Progress,
			"failures", report.Failures)
	}
	return nil
}
