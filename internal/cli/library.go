package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/speedreader/speedreader-core/internal/di/providers"
	"github.com/speedreader/speedreader-core/internal/domain"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/store"
)

func newListCmd(a *app) *cobra.Command {
	var category string
	var downloaded bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books in the library",
		Long: `List library books, most recently saved first.

Examples:
  readerctl list                      # Everything
  readerctl list --category classics  # One category
  readerctl list --downloaded         # Only books readable offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := invoke[*service.LibraryCatalog](a)

			var books []*domain.LibraryBook
			var err error
			if cmd.Flags().Changed("category") {
				books, err = catalog.ListByCategory(cmd.Context(), category)
			} else {
				books, err = catalog.ListForUI(cmd.Context())
			}
			if err != nil {
				return err
			}
			if downloaded {
				kept := books[:0]
				for _, b := range books {
					if b.HasDownloaded {
						kept = append(kept, b)
					}
				}
				books = kept
			}

			return a.render(cmd, books, func(w io.Writer) {
				if len(books) == 0 {
					fmt.Fprintln(w, "No books in the library.")
					return
				}
				fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tOFFLINE\tREAD\tTAGS")
				for _, b := range books {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						b.ID, truncate(b.Title, 40), b.Category, yesNo(b.HasDownloaded), percent(b.ReadProgress), joinTags(b.Tags))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "filter by category (blank means classics)")
	cmd.Flags().BoolVar(&downloaded, "downloaded", false, "only books with cached text")
	return cmd
}

type bookDetail struct {
	Book     *domain.LibraryBook    `json:"book"`
	Content  *domain.ContentRecord  `json:"content,omitempty"`
	Progress *domain.ProgressRecord `json:"progress,omitempty"`
	Uploads  []*domain.UploadRecord `json:"uploads,omitempty"`
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book with its cache and progress state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			book, err := invoke[*service.LibraryCatalog](a).Get(ctx, args[0])
			if err != nil {
				return err
			}
			content, err := invoke[*service.ContentCache](a).Get(ctx, args[0])
			if err != nil {
				return err
			}
			progress, err := invoke[*service.ProgressTracker](a).Load(ctx, args[0])
			if err != nil {
				return err
			}
			uploads, err := invoke[*service.LibraryCatalog](a).Uploads(ctx, args[0])
			if err != nil {
				return err
			}

			detail := bookDetail{Book: book, Content: content, Progress: progress, Uploads: uploads}
			if content != nil {
				// The text itself is not useful in JSON output.
				c := *content
				c.Content = ""
				detail.Content = &c
			}

			return a.render(cmd, detail, func(w io.Writer) {
				fmt.Fprintf(w, "ID:\t%s\n", book.ID)
				fmt.Fprintf(w, "Title:\t%s\n", book.Title)
				fmt.Fprintf(w, "Author:\t%s\n", book.Author)
				fmt.Fprintf(w, "Category:\t%s\n", book.Category)
				fmt.Fprintf(w, "Acquired:\t%s, %s\n", book.AcquisitionType, humanize.Time(book.SavedAt))
				fmt.Fprintf(w, "Last opened:\t%s\n", ago(book.LastOpenedAt))
				fmt.Fprintf(w, "Words:\t%s (~%d min)\n", humanize.Comma(int64(book.WordCount)), book.EstimatedTime)
				fmt.Fprintf(w, "Tags:\t%s\n", joinTags(book.Tags))
				if content != nil {
					fmt.Fprintf(w, "Cached:\t%s via %s, %s\n", humanize.IBytes(uint64(content.ByteSize)), content.FetchedVia, humanize.Time(content.CachedAt))
				} else {
					fmt.Fprintln(w, "Cached:\tno")
				}
				if progress != nil {
					fmt.Fprintf(w, "Progress:\tword %d of %d (%s)\n", progress.CurrentWordIndex, progress.TotalWords, percent(progress.PercentComplete))
				}
				for _, u := range uploads {
					fmt.Fprintf(w, "Uploaded:\t%s (%s), %s\n", u.FileName, humanize.IBytes(uint64(u.SizeBytes)), humanize.Time(u.CreatedAt))
				}
			})
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <book-id>",
		Short: "Mark a library book as opened now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := invoke[*service.LibraryCatalog](a)
			book, err := catalog.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			snap := &domain.BookSnapshot{
				ID:            book.ID,
				Title:         book.Title,
				Author:        book.Author,
				CoverImage:    book.CoverImage,
				CoverImageAlt: book.CoverImageAlt,
				Category:      book.Category,
				SourceType:    book.SourceType,
				WordCount:     book.WordCount,
				EstimatedTime: book.EstimatedTime,
				TextURL:       book.TextURL,
			}
			if err := catalog.RecordOpened(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", book.ID)
			return nil
		},
	}
}

func newTagCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <book-id> [tag...]",
		Short: "Replace the tags of a book (no tags clears them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := invoke[*service.LibraryCatalog](a).SetTags(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", book.ID, joinTags(book.Tags))
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <book-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a book with its cached text and progress",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			existed, err := invoke[*service.LibraryCatalog](a).Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !existed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not stored\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts and cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle := invoke[*providers.StoreHandle](a)
			stats, err := handle.Stats(cmd.Context())
			if err != nil {
				return err
			}
			budget := invoke[*service.EvictionPlanner](a).MaxBytes()

			return a.render(cmd, stats, func(w io.Writer) {
				fmt.Fprintf(w, "Schema version:\t%d\n", stats.SchemaVersion)
				for _, c := range store.AllCollections() {
					if n, ok := stats.Records[c]; ok {
						fmt.Fprintf(w, "%s:\t%d\n", c, n)
					}
				}
				fmt.Fprintf(w, "Cached text:\t%s of %s\n", humanize.IBytes(uint64(stats.ContentBytes)), humanize.IBytes(uint64(budget)))
			})
		},
	}
}
