package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/id"
	"github.com/speedreader/speedreader-core/internal/store"
)

// LibraryCatalog manages the user's library: which books are saved, their
// display snapshots, and the books the user authored on this device.
type LibraryCatalog struct {
	store   *store.Store
	content *ContentCache
	logger  *slog.Logger
	now     Clock
}

// NewLibraryCatalog creates a new library catalog.
func NewLibraryCatalog(s *store.Store, content *ContentCache, logger *slog.Logger) *LibraryCatalog {
	return &LibraryCatalog{
		store:   s,
		content: content,
		logger:  logger,
		now:     time.Now,
	}
}

// UpsertBooks records snapshots in the books collection and the library.
// New entries start with the given acquisition type; existing entries keep
// every user-owned field and only have their snapshot refreshed.
// Snapshots without an id are skipped. Returns the number written.
func (l *LibraryCatalog) UpsertBooks(ctx context.Context, snapshots []*domain.BookSnapshot, acquisition domain.AcquisitionType) (int, error) {
	var written int
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		written = 0
		now := l.now()
		for _, snap := range snapshots {
			if snap == nil || strings.TrimSpace(snap.ID) == "" {
				continue
			}
			if _, err := l.upsert(tx, snap, acquisition, now); err != nil {
				return fmt.Errorf("upsert %s: %w", snap.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if skipped := len(snapshots) - written; skipped > 0 {
		l.logger.Warn("skipped snapshots without id", "skipped", skipped)
	}
	return written, nil
}

// upsert writes one snapshot inside tx and returns the resulting entry.
func (l *LibraryCatalog) upsert(tx *store.Tx, in *domain.BookSnapshot, acquisition domain.AcquisitionType, now time.Time) (*domain.LibraryEntry, error) {
	bookID := strings.TrimSpace(in.ID)
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}
	snap := in.Clone()
	snap.Normalize(bookID)

	if err := l.store.Books.Put(tx, &domain.BookRecord{BookID: bookID, BookSnapshot: snap.Clone()}); err != nil {
		return nil, err
	}

	entry, err := l.store.Library.Lookup(tx, bookID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry = domain.NewLibraryEntry(bookID, acquisition, now)
		content, err := l.store.Contents.Lookup(tx, bookID)
		if err != nil {
			return nil, err
		}
		if content != nil {
			words := content.WordCountActual
			entry.HasDownloaded = true
			entry.LocalWordCount = &words
		}
		if err := mirrorProgress(tx, l.store, entry); err != nil {
			return nil, err
		}
	}
	entry.BookSnapshot = snap

	if err := l.store.Library.Put(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListForUI returns every library book, most recently saved first.
// If storage is unavailable the library is shown as empty.
func (l *LibraryCatalog) ListForUI(ctx context.Context) ([]*domain.LibraryBook, error) {
	entries, err := l.store.Library.LoadAll(ctx)
	if errors.Is(err, domainerrors.ErrStorageUnavailable) {
		l.logger.Warn("storage unavailable, showing empty library")
		return []*domain.LibraryBook{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	return mergeSorted(entries), nil
}

// ListByCategory returns the library books in category, matched
// case-insensitively, most recently saved first.
func (l *LibraryCatalog) ListByCategory(ctx context.Context, category string) ([]*domain.LibraryBook, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.DefaultCategory
	}

	var entries []*domain.LibraryEntry
	err := l.store.View(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = l.store.Library.ByIndex(tx, store.IndexCategory, category)
		return err
	})
	if errors.Is(err, domainerrors.ErrStorageUnavailable) {
		return []*domain.LibraryBook{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list category %s: %w", category, err)
	}
	return mergeSorted(entries), nil
}

func mergeSorted(entries []*domain.LibraryEntry) []*domain.LibraryBook {
	books := make([]*domain.LibraryBook, 0, len(entries))
	for _, e := range entries {
		books = append(books, domain.MergeLibraryBook(e))
	}
	slices.SortStableFunc(books, func(a, b *domain.LibraryBook) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return books
}

// Get returns the merged view of one library book.
func (l *LibraryCatalog) Get(ctx context.Context, bookID string) (*domain.LibraryBook, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}
	entry, err := l.store.Library.Load(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domainerrors.NotFoundf("book %s is not in the library", bookID)
	}
	return domain.MergeLibraryBook(entry), nil
}

// RecordOpened stamps the book as opened now, adding it to the library as
// curated if it is not there yet, and refreshes its snapshot.
func (l *LibraryCatalog) RecordOpened(ctx context.Context, snap *domain.BookSnapshot) error {
	if snap == nil {
		return domainerrors.InvalidID("missing book snapshot")
	}
	if err := checkBookID(strings.TrimSpace(snap.ID)); err != nil {
		return err
	}

	return l.store.Update(ctx, func(tx *store.Tx) error {
		now := l.now()
		entry, err := l.upsert(tx, snap, domain.AcquisitionCurated, now)
		if err != nil {
			return err
		}
		entry.LastOpenedAt = &now
		return l.store.Library.Put(tx, entry)
	})
}

// Remove deletes the book from all four collections, together with the
// upload records that created it, in one atomic group and reports whether
// anything existed.
func (l *LibraryCatalog) Remove(ctx context.Context, bookID string) (bool, error) {
	if err := checkBookID(bookID); err != nil {
		return false, err
	}

	var existed bool
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		existed = false
		for _, del := range []func(*store.Tx, string) (bool, error){
			l.store.Library.Delete,
			l.store.Books.Delete,
			l.store.Contents.Delete,
			l.store.Progress.Delete,
		} {
			ok, err := del(tx, bookID)
			if err != nil {
				return err
			}
			existed = existed || ok
		}

		uploads, err := l.store.Uploads.ByIndex(tx, store.IndexUploadBook, bookID)
		if err != nil {
			return err
		}
		for _, u := range uploads {
			if _, err := l.store.Uploads.Delete(tx, u.UploadID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if existed {
		l.logger.Info("book removed", "book_id", bookID)
	}
	return existed, nil
}

// Uploads returns the upload records a book was created from, oldest first.
func (l *LibraryCatalog) Uploads(ctx context.Context, bookID string) ([]*domain.UploadRecord, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}

	var uploads []*domain.UploadRecord
	err := l.store.View(ctx, func(tx *store.Tx) error {
		var err error
		uploads, err = l.store.Uploads.ByIndex(tx, store.IndexUploadBook, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(uploads, func(a, b *domain.UploadRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return uploads, nil
}

// SetTags replaces the tags of a library entry.
func (l *LibraryCatalog) SetTags(ctx context.Context, bookID string, tags []string) (*domain.LibraryBook, error) {
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}

	var entry *domain.LibraryEntry
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = l.store.Library.Lookup(tx, bookID)
		if err != nil {
			return err
		}
		if entry == nil {
			return domainerrors.NotFoundf("book %s is not in the library", bookID)
		}
		entry.Tags = domain.NormalizeTags(tags)
		return l.store.Library.Put(tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return domain.MergeLibraryBook(entry), nil
}

// TextInput is pasted text to turn into a book.
type TextInput struct {
	Title   string
	Author  string
	Content string
}

// CreateFromText creates a clipboard book from pasted text. The snapshot
// and the content are written in one atomic group.
func (l *LibraryCatalog) CreateFromText(ctx context.Context, in TextInput) (*domain.LibraryBook, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, domainerrors.EmptyContent("pasted content cannot be empty")
	}

	bookID, err := id.NewBookID(id.ClipboardPrefix)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create book id")
	}

	title := orDefault(in.Title, domain.UntitledPaste)
	words := domain.CountWords(content)
	snap := &domain.BookSnapshot{
		ID:            bookID,
		Title:         title,
		Author:        orDefault(in.Author, domain.ClipboardAuthor),
		CoverImageAlt: domain.ClipboardCoverAlt(title),
		Category:      domain.QuickReadsCategory,
		SourceType:    domain.ClipboardSourceType,
		WordCount:     words,
		EstimatedTime: domain.EstimateMinutes(words),
	}

	book, err := l.createLocal(ctx, snap, content, domain.AcquisitionClipboard, domain.FetchedViaClipboard, nil)
	if err != nil {
		return nil, err
	}
	l.logger.Info("book created from pasted text", "book_id", bookID, "words", words)
	return book, nil
}

// UploadInput is the extracted text of an uploaded file.
type UploadInput struct {
	FileName   string
	Title      string
	Author     string
	Content    string
	SourceType string
}

// CreateFromUpload creates an upload book and records the file it came from.
// The title defaults to the file name without its extension.
func (l *LibraryCatalog) CreateFromUpload(ctx context.Context, in UploadInput) (*domain.LibraryBook, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, domainerrors.EmptyContent("uploaded file has no text")
	}

	bookID, err := id.NewBookID(id.UploadPrefix)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create book id")
	}
	uploadID, err := id.Generate("up")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create upload id")
	}

	fileName := filepath.Base(strings.TrimSpace(in.FileName))
	if fileName == "." || fileName == string(filepath.Separator) {
		fileName = ""
	}
	sourceType := orDefault(in.SourceType, domain.PlainTextSourceType)
	title := orDefault(in.Title, strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	title = orDefault(title, domain.UnknownTitle)
	words := domain.CountWords(content)

	snap := &domain.BookSnapshot{
		ID:            bookID,
		Title:         title,
		Author:        orDefault(in.Author, domain.UnknownAuthor),
		Category:      domain.UploadsCategory,
		SourceType:    sourceType,
		WordCount:     words,
		EstimatedTime: domain.EstimateMinutes(words),
	}
	upload := &domain.UploadRecord{
		UploadID:   uploadID,
		BookID:     bookID,
		FileName:   fileName,
		SizeBytes:  domain.ByteSize(content),
		SourceType: sourceType,
	}

	book, err := l.createLocal(ctx, snap, content, domain.AcquisitionUpload, domain.FetchedViaUpload, upload)
	if err != nil {
		return nil, err
	}
	l.logger.Info("book created from upload", "book_id", bookID, "file", fileName, "words", words)
	return book, nil
}

func (l *LibraryCatalog) createLocal(ctx context.Context, snap *domain.BookSnapshot, content string, acquisition domain.AcquisitionType, via domain.FetchedVia, upload *domain.UploadRecord) (*domain.LibraryBook, error) {
	var entry *domain.LibraryEntry
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		now := l.now()
		if _, err := l.upsert(tx, snap, acquisition, now); err != nil {
			return err
		}
		if _, err := l.content.put(tx, snap.ID, content, SaveOptions{FetchedVia: via}, now); err != nil {
			return err
		}
		if upload != nil {
			upload.CreatedAt = now
			if err := l.store.Uploads.Put(tx, upload); err != nil {
				return err
			}
		}
		var err error
		entry, err = l.store.Library.Get(tx, snap.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return domain.MergeLibraryBook(entry), nil
}

// EditInput replaces the text of a locally authored book. An empty Title
// keeps the current one.
type EditInput struct {
	BookID  string
	Title   string
	Content string
}

// UpdateLocalText rewrites the text of a clipboard or upload book. Curated
// books are not editable.
func (l *LibraryCatalog) UpdateLocalText(ctx context.Context, in EditInput) (*domain.LibraryBook, error) {
	bookID := strings.TrimSpace(in.BookID)
	if bookID == "" {
		return nil, domainerrors.InvalidID("book id is required")
	}
	if err := checkBookID(bookID); err != nil {
		return nil, err
	}

	var entry *domain.LibraryEntry
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = l.store.Library.Lookup(tx, bookID)
		if err != nil {
			return err
		}
		if entry == nil {
			return domainerrors.NotFoundf("book %s is not in the library", bookID)
		}
		if !entry.AcquisitionType.IsLocal() {
			return domainerrors.NotEditablef("book %s is %s and cannot be edited", bookID, entry.AcquisitionType)
		}

		content := strings.TrimSpace(in.Content)
		if content == "" {
			return domainerrors.EmptyContent("edited content cannot be empty")
		}

		snap := entry.BookSnapshot.Clone()
		if snap == nil {
			snap = &domain.BookSnapshot{ID: bookID}
		}
		if title := strings.TrimSpace(in.Title); title != "" {
			snap.Title = title
			if entry.AcquisitionType == domain.AcquisitionClipboard {
				snap.CoverImageAlt = domain.ClipboardCoverAlt(title)
			}
		}
		words := domain.CountWords(content)
		snap.WordCount = words
		snap.EstimatedTime = domain.EstimateMinutes(words)

		via := domain.FetchedViaClipboardEdit
		if entry.AcquisitionType == domain.AcquisitionUpload {
			via = domain.FetchedViaUploadEdit
		}
		if _, err := l.content.put(tx, bookID, content, SaveOptions{
			FetchedVia: via,
			Snapshot:   snap,
		}, l.now()); err != nil {
			return err
		}
		entry, err = l.store.Library.Get(tx, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return domain.MergeLibraryBook(entry), nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
