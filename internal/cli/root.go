// Package cli implements the readerctl command tree.
package cli

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/di"
)

// app is shared by every subcommand. The container is created in the root's
// PersistentPreRunE, after flags are parsed.
type app struct {
	overrides config.Overrides
	injector  *do.RootScope
	json      bool
}

// NewRootCmd creates the root command for readerctl.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "readerctl",
		Short: "Inspect and maintain the speed reader's local library",
		Long: `Manage the books, cached text, progress and settings stored on this device.

readerctl provides tools to:
- List, tag and remove library books
- Cache book text within the storage budget and plan evictions
- Import pasted text and .txt/.md files
- Record reading progress and edit reader settings
- Migrate data from the legacy key/value storage`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.injector = di.NewContainer(a.overrides)
			if err := di.Bootstrap(cmd.Context(), a.injector); err != nil {
				_ = a.shutdown()
				return err
			}
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.overrides.DataPath, "data", "", "data directory (env DATA_PATH)")
	f.StringVar(&a.overrides.CacheBudgetBytes, "budget", "", "cache budget in bytes (env CACHE_BUDGET_BYTES)")
	f.StringVar(&a.overrides.LegacyDBPath, "legacy-db", "", "legacy SQLite export to migrate (env LEGACY_DB_PATH)")
	f.StringVar(&a.overrides.MigrateOnStart, "migrate-on-start", "", "migrate legacy data before every command (env MIGRATE_ON_START)")
	f.StringVar(&a.overrides.InboxPath, "inbox", "", "drop folder for .txt and .md files (env INBOX_PATH)")
	f.StringVar(&a.overrides.InboxRate, "inbox-rate", "", "max inbox imports per second, 0 for unlimited (env INBOX_RATE)")
	f.StringVar(&a.overrides.LogLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	f.StringVar(&a.overrides.Environment, "env", "", "development, test or production (env ENV)")
	f.StringVar(&a.overrides.EnvFile, "env-file", "", "path of the .env file (default .env)")
	f.BoolVar(&a.json, "json", false, "print JSON instead of tables")

	root.AddCommand(newListCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newOpenCmd(a))
	root.AddCommand(newTagCmd(a))
	root.AddCommand(newRemoveCmd(a))
	root.AddCommand(newCacheCmd(a))
	root.AddCommand(newPlanCmd(a))
	root.AddCommand(newEvictCmd(a))
	root.AddCommand(newImportTextCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newEditCmd(a))
	root.AddCommand(newProgressCmd(a))
	root.AddCommand(newSettingsCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newBackupCmd(a))
	root.AddCommand(newRestoreCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newStatsCmd(a))

	// PersistentPostRunE is skipped when RunE fails, so the store is closed here.
	for _, c := range root.Commands() {
		run := c.RunE
		if run == nil {
			continue
		}
		c.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if serr := a.shutdown(); err == nil {
					err = serr
				}
			}()
			return run(cmd, args)
		}
	}

	return root
}

func (a *app) shutdown() error {
	if a.injector == nil {
		return nil
	}
	injector := a.injector
	a.injector = nil
	if report := injector.Shutdown(); report != nil && !report.Succeed {
		return fmt.Errorf("shutdown: %w", report)
	}
	return nil
}
