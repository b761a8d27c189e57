package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/ingest"
	"github.com/speedreader/speedreader-core/internal/service"
)

func parseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, domainerrors.Validationf("invalid size %q", s)
	}
	return int64(n), nil
}

func newCacheCmd(a *app) *cobra.Command {
	var snap domain.BookSnapshot
	var evict bool

	cmd := &cobra.Command{
		Use:   "cache <book-id> <file|->",
		Short: "Cache the text of a book within the storage budget",
		Long: `Store the full text of a book for offline reading.

If the text does not fit the cache budget nothing is written and the
eviction plan is printed. With --evict the suggested books are evicted
and the save is retried.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			text, err := readText(cmd, args[1])
			if err != nil {
				return err
			}

			cache := invoke[*service.ContentCache](a)
			opts := service.SaveOptions{FetchedVia: domain.FetchedViaProxy, Acquisition: domain.AcquisitionCurated}
			if snap.Title != "" {
				s := snap
				s.ID = args[0]
				opts.Snapshot = &s
			}

			rec, err := cache.SaveWithinBudget(ctx, args[0], text, opts)
			var plan *domain.EvictionPlan
			var de *domainerrors.Error
			if domainerrors.As(err, &de) && de.Code == domainerrors.CodeQuotaExceeded {
				plan, _ = de.Details.(*domain.EvictionPlan)
			}
			if plan != nil && evict && plan.Sufficient() {
				n, evictErr := cache.Evict(ctx, plan.SuggestedIDs())
				if evictErr != nil {
					return evictErr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d book(s), freed %s\n", n, humanize.IBytes(uint64(plan.SuggestedBytes())))
				rec, err = cache.SaveWithinBudget(ctx, args[0], text, opts)
			}
			if err != nil {
				if plan != nil {
					printPlan(cmd.OutOrStdout(), plan)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cached %s: %s words, %s\n",
				rec.BookID, humanize.Comma(int64(rec.WordCountActual)), humanize.IBytes(uint64(rec.ByteSize)))
			return nil
		},
	}

	cmd.Flags().StringVar(&snap.Title, "title", "", "book title (refreshes the library snapshot)")
	cmd.Flags().StringVar(&snap.Author, "author", "", "book author")
	cmd.Flags().StringVar(&snap.Category, "category", "", "book category")
	cmd.Flags().BoolVar(&evict, "evict", false, "evict the suggested books when over budget")
	return cmd
}

func printPlan(w io.Writer, plan *domain.EvictionPlan) {
	fmt.Fprintln(w, plan.Summary())
	for _, c := range plan.Suggested {
		fmt.Fprintf(w, "  %s\t%s\t%s\topened %s\n", c.BookID, truncate(c.Title, 40), humanize.IBytes(uint64(c.ByteSize)), ago(c.LastOpenedAt))
	}
}

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <size>",
		Short: "Show what would be evicted to store size more bytes",
		Long: `Plan room for new cached text without changing anything.

Examples:
  readerctl plan 5MB
  readerctl plan 1048576`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := parseSize(args[0])
			if err != nil {
				return err
			}
			plan, err := invoke[*service.EvictionPlanner](a).PlanFor(cmd.Context(), size)
			if err != nil {
				return err
			}
			return a.render(cmd, plan, func(w io.Writer) { printPlan(w, plan) })
		},
	}
}

func newEvictCmd(a *app) *cobra.Command {
	var forSize string

	cmd := &cobra.Command{
		Use:   "evict [book-id...]",
		Short: "Drop cached text, keeping the books in the library",
		Long: `Evict cached text by id, or whatever the planner suggests with --for.

Examples:
  readerctl evict gutenberg-1342 gutenberg-84
  readerctl evict --for 20MB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids := args
			if forSize != "" {
				size, err := parseSize(forSize)
				if err != nil {
					return err
				}
				plan, err := invoke[*service.EvictionPlanner](a).PlanFor(ctx, size)
				if err != nil {
					return err
				}
				printPlan(cmd.OutOrStdout(), plan)
				ids = append(ids, plan.SuggestedIDs()...)
			}
			if len(ids) == 0 {
				return domainerrors.Validation("nothing to evict: pass book ids or --for")
			}

			n, err := invoke[*service.ContentCache](a).Evict(ctx, ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d book(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&forSize, "for", "", "evict the planner's suggestions for this many bytes")
	return cmd
}

func newImportTextCmd(a *app) *cobra.Command {
	var in service.TextInput

	cmd := &cobra.Command{
		Use:     "import-text <file|->",
		Aliases: []string{"paste"},
		Short:   "Create a quick-read book from pasted text",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args[0])
			if err != nil {
				return err
			}
			in.Content = text
			book, err := invoke[*service.LibraryCatalog](a).CreateFromText(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s words)\n", book.ID, humanize.Comma(int64(book.WordCount)))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "title (default \""+domain.UntitledPaste+"\")")
	cmd.Flags().StringVar(&in.Author, "author", "", "author (default \""+domain.ClipboardAuthor+"\")")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file...>",
		Short: "Import .txt and .md files as uploaded books",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			worker := invoke[*ingest.Worker](a)

			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				if info.IsDir() || !ingest.Accepts(path) {
					return domainerrors.Validationf("%s is not a .txt or .md file", path)
				}
				if _, created, err := worker.Enqueue(ctx, path, info.Size(), info.ModTime()); err != nil {
					return err
				} else if !created {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s: already imported\n", path)
				}
			}

			res, err := worker.ProcessPending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, retrying %d, failed %d\n", res.Imported, res.Retrying, res.Failed)
			return nil
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "edit <book-id> <file|->",
		Short: "Replace the text of a pasted or uploaded book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args[1])
			if err != nil {
				return err
			}
			book, err := invoke[*service.LibraryCatalog](a).UpdateLocalText(cmd.Context(), service.EditInput{
				BookID:  args[0],
				Title:   title,
				Content: text,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s words)\n", book.ID, humanize.Comma(int64(book.WordCount)))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	return cmd
}
