// Package providers contains dependency injection providers for the reader core.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/logger"
)

// ProvideConfig loads the configuration, applying any command-line overrides
// registered in the container.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	overrides, err := do.Invoke[config.Overrides](i)
	if err != nil {
		overrides = config.Overrides{}
	}
	return config.Load(overrides)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development" && cfg.Logger.Level == "debug",
		Environment: cfg.App.Environment,
	})

	log.Debug("configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"cache_budget_bytes", cfg.Storage.CacheBudgetBytes,
		"legacy_db", cfg.Legacy.DBPath,
		"inbox", cfg.Inbox.Path,
	)

	return log, nil
}
