package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/speedreader/speedreader-core/internal/backup"
	"github.com/speedreader/speedreader-core/internal/di/providers"
	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/migration"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/store"
)

func newProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <book-id> [word-index total-words]",
		Short: "Show or record the reading position of a book",
		Args: cobra.MatchAll(cobra.RangeArgs(1, 3), func(_ *cobra.Command, args []string) error {
			if len(args) == 2 {
				return errors.New("pass both word-index and total-words")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker := invoke[*service.ProgressTracker](a)

			var rec *domain.ProgressRecord
			var err error
			if len(args) == 3 {
				index, convErr := strconv.Atoi(args[1])
				if convErr != nil {
					return domainerrors.Validationf("invalid word index %q", args[1])
				}
				total, convErr := strconv.Atoi(args[2])
				if convErr != nil {
					return domainerrors.Validationf("invalid total words %q", args[2])
				}
				rec, err = tracker.Save(cmd.Context(), args[0], service.ProgressInput{CurrentWordIndex: index, TotalWords: total})
			} else {
				rec, err = tracker.Load(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if rec == nil {
				return domainerrors.NotFoundf("no progress recorded for %s", args[0])
			}

			return a.render(cmd, rec, func(w io.Writer) {
				fmt.Fprintf(w, "%s:\tword %d of %d (%s)", rec.BookID, rec.CurrentWordIndex, rec.TotalWords, percent(rec.PercentComplete))
				if rec.CompletedAt != nil {
					fmt.Fprintf(w, ", finished %s", ago(rec.CompletedAt))
				}
				fmt.Fprintln(w)
			})
		},
	}
}

func newSettingsCmd(a *app) *cobra.Command {
	var (
		speed, fontSize, wordsPerFrame int
		fontFamily, theme              string
		pausePunct, pauseLong          bool
		focal, smart                   bool
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change reader settings",
		Long: `Without flags the current settings are printed. Each flag changes one
setting; the others keep their stored values.

Examples:
  readerctl settings
  readerctl settings --speed 450 --theme sepia`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings := invoke[*service.SettingsStore](a)
			f := cmd.Flags()

			patch := &domain.SettingsPatch{}
			changed := false
			setInt := func(name string, v int, dst **int) {
				if f.Changed(name) {
					*dst = &v
					changed = true
				}
			}
			setString := func(name, v string, dst **string) {
				if f.Changed(name) {
					*dst = &v
					changed = true
				}
			}
			setBool := func(name string, v bool, dst **bool) {
				if f.Changed(name) {
					*dst = &v
					changed = true
				}
			}
			setInt("speed", speed, &patch.ReadingSpeed)
			setInt("font-size", fontSize, &patch.FontSize)
			setInt("words-per-frame", wordsPerFrame, &patch.WordsPerFrame)
			setString("font-family", fontFamily, &patch.FontFamily)
			setString("theme", theme, &patch.Theme)
			setBool("pause-on-punctuation", pausePunct, &patch.PauseOnPunctuation)
			setBool("pause-on-long-words", pauseLong, &patch.PauseOnLongWords)
			setBool("focal-point", focal, &patch.ShowFocalPoint)
			setBool("smart-highlighting", smart, &patch.SmartHighlighting)

			var s *domain.ReaderSettings
			var err error
			if changed {
				s, err = settings.Update(cmd.Context(), patch)
			} else {
				s, err = settings.Load(cmd.Context())
			}
			if err != nil {
				return err
			}

			return a.render(cmd, s, func(w io.Writer) {
				fmt.Fprintf(w, "speed:\t%d wpm\n", s.ReadingSpeed)
				fmt.Fprintf(w, "font:\t%s %dpx\n", s.FontFamily, s.FontSize)
				fmt.Fprintf(w, "theme:\t%s\n", s.Theme)
				fmt.Fprintf(w, "words per frame:\t%d\n", s.WordsPerFrame)
				fmt.Fprintf(w, "pause on punctuation:\t%s\n", yesNo(s.PauseOnPunctuation))
				fmt.Fprintf(w, "pause on long words:\t%s\n", yesNo(s.PauseOnLongWords))
				fmt.Fprintf(w, "focal point:\t%s\n", yesNo(s.ShowFocalPoint))
				fmt.Fprintf(w, "smart highlighting:\t%s\n", yesNo(s.SmartHighlighting))
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&speed, "speed", 0, "reading speed in words per minute (50-1000)")
	f.IntVar(&fontSize, "font-size", 0, "font size (12-32)")
	f.IntVar(&wordsPerFrame, "words-per-frame", 0, "words shown at once (1-3)")
	f.StringVar(&fontFamily, "font-family", "", "font family")
	f.StringVar(&theme, "theme", "", "light, dark or sepia")
	f.BoolVar(&pausePunct, "pause-on-punctuation", false, "pause longer after punctuation")
	f.BoolVar(&pauseLong, "pause-on-long-words", false, "pause longer on long words")
	f.BoolVar(&focal, "focal-point", false, "highlight the focal letter")
	f.BoolVar(&smart, "smart-highlighting", false, "vary highlighting by word")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import data from the legacy key/value storage",
		Long: `Move books, cached text, progress and settings out of a SQLite export of
the legacy storage (--legacy-db or LEGACY_DB_PATH). Imported keys are
removed from the export; items that fail stay there for the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := do.Invoke[*migration.Migrator](a.injector)
			if err != nil {
				return err
			}
			report, err := m.Run(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.render(cmd, report, func(w io.Writer) {
				if report.Skipped {
					fmt.Fprintln(w, "Already migrated.")
					return
				}
				fmt.Fprintf(w, "Library books:\t%d\n", report.LibraryBooks)
				fmt.Fprintf(w, "Settings:\t%s\n", yesNo(report.Settings))
				fmt.Fprintf(w, "Cached texts:\t%d\n", report.Contents)
				fmt.Fprintf(w, "Progress records:\t%d\n", report.Progress)
				fmt.Fprintf(w, "Legacy keys removed:\t%d\n", report.KeysRemoved)
				fmt.Fprintf(w, "Failures:\t%d\n", report.Failures)
				for _, d := range report.FailureDetail {
					fmt.Fprintf(w, "  %s\n", d)
				}
			}); err != nil {
				return err
			}
			if report.Failures > 0 {
				return fmt.Errorf("%d legacy item(s) were not migrated", report.Failures)
			}
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Import files dropped into the inbox until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := do.Invoke[*providers.InboxHandle](a.injector)
			if err != nil {
				return err
			}
			select {
			case <-cmd.Context().Done():
				return nil
			case err := <-handle.Done():
				return err
			}
		},
	}
}

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <archive.zip>",
		Short: "Write every collection to a zip archive",
		Long: `Export the whole store as a zip of JSONL files, one per collection, plus a
manifest with record counts. The archive is a consistent snapshot.

Examples:
  readerctl backup ~/reader-backup.zip
  readerctl backup --json /tmp/b.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := invoke[*backup.Service](a).Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "Wrote:\t%s\n", res.Path)
				fmt.Fprintf(w, "Size:\t%s\n", humanize.IBytes(uint64(res.Size)))
				fmt.Fprintf(w, "SHA-256:\t%s\n", res.Checksum)
				printCounts(w, res.Manifest.Counts)
			})
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var opts backup.RestoreOptions
	var keepBackup bool

	cmd := &cobra.Command{
		Use:   "restore <archive.zip>",
		Short: "Merge a backup archive into the store",
		Long: `Restore records from an archive written by "backup". Records that already
exist locally are kept unless --keep-backup is given. Library entries are
reconciled with the restored text and progress afterwards.

Examples:
  readerctl restore ~/reader-backup.zip --dry-run
  readerctl restore ~/reader-backup.zip --keep-backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Strategy = backup.MergeKeepLocal
			if keepBackup {
				opts.Strategy = backup.MergeKeepBackup
			}
			res, err := invoke[*backup.Service](a).Restore(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if err := a.render(cmd, res, func(w io.Writer) {
				if opts.DryRun {
					fmt.Fprintln(w, "Dry run, nothing was written.")
				}
				fmt.Fprintln(w, "Imported:")
				printCounts(w, res.Imported)
				fmt.Fprintln(w, "Kept local:")
				printCounts(w, res.Skipped)
				fmt.Fprintf(w, "Entries reconciled:\t%d\n", res.Reconciled)
				for _, e := range res.Errors {
					fmt.Fprintf(w, "  %s %s: %s\n", e.Collection, e.Key, e.Error)
				}
			}); err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d record(s) could not be restored", len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepBackup, "keep-backup", false, "overwrite local records with the backup's")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

// printCounts lists per-collection counts in collection order.
func printCounts(w io.Writer, counts map[string]int) {
	for _, c := range store.AllCollections() {
		if n := counts[string(c)]; n > 0 {
			fmt.Fprintf(w, "  %s:\t%d\n", c, n)
		}
	}
}
