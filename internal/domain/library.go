package domain

import (
	"slices"
	"time"

	"github.com/speedreader/speedreader-core/internal/util"
)

// AcquisitionType records how a book entered the library.
type AcquisitionType string

// Acquisition types.
const (
	AcquisitionCurated   AcquisitionType = "curated"
	AcquisitionUpload    AcquisitionType = "upload"
	AcquisitionClipboard AcquisitionType = "clipboard"
)

// Valid reports whether a is a known acquisition type.
func (a AcquisitionType) Valid() bool {
	switch a {
	case AcquisitionCurated, AcquisitionUpload, AcquisitionClipboard:
		return true
	default:
		return false
	}
}

// IsLocal reports whether the book's text was authored on this device, in
// which case the cached content is the only copy and can be edited.
func (a AcquisitionType) IsLocal() bool {
	return a == AcquisitionUpload || a == AcquisitionClipboard
}

// LibraryEntry is the user's relationship to a book.
// HasDownloaded must always agree with the presence of a ContentRecord and
// ReadProgress always mirrors the ProgressRecord.
type LibraryEntry struct {
	BookID          string          `json:"book_id"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
	SavedAt         time.Time       `json:"saved_at"`
	LastOpenedAt    *time.Time      `json:"last_opened_at,omitempty"`
	HasDownloaded   bool            `json:"has_downloaded"`
	LocalWordCount  *int            `json:"local_word_count,omitempty"`
	ReadProgress    float64         `json:"read_progress"`
	Tags            []string        `json:"tags"`
	BookSnapshot    *BookSnapshot   `json:"book_snapshot,omitempty"`
}

// NewLibraryEntry creates an entry with user-owned fields at their initial values.
func NewLibraryEntry(bookID string, acquisition AcquisitionType, now time.Time) *LibraryEntry {
	if !acquisition.Valid() {
		acquisition = AcquisitionCurated
	}
	return &LibraryEntry{
		BookID:          bookID,
		AcquisitionType: acquisition,
		SavedAt:         now,
		Tags:            []string{},
	}
}

// Category returns the category used for indexing and filtering.
func (e *LibraryEntry) Category() string {
	if e.BookSnapshot != nil && e.BookSnapshot.Category != "" {
		return e.BookSnapshot.Category
	}
	return DefaultCategory
}

// LibraryBook is the merged, display-ready view of a LibraryEntry.
type LibraryBook struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Author          string          `json:"author,omitempty"`
	CoverImage      string          `json:"cover_image,omitempty"`
	CoverImageAlt   string          `json:"cover_image_alt,omitempty"`
	Category        string          `json:"category"`
	SourceType      string          `json:"source_type,omitempty"`
	TextURL         string          `json:"text_url,omitempty"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
	HasDownloaded   bool            `json:"has_downloaded"`
	ReadProgress    float64         `json:"read_progress"`
	WordCount       int             `json:"word_count"`
	EstimatedTime   int             `json:"estimated_time"`
	Tags            []string        `json:"tags"`
	SavedAt         time.Time       `json:"saved_at"`
	LastOpenedAt    *time.Time      `json:"last_opened_at,omitempty"`
}

// MergeLibraryBook combines an entry with its snapshot. Local word counts win
// over the snapshot's; the reading estimate is derived from the word count
// only when the snapshot has none.
func MergeLibraryBook(e *LibraryEntry) *LibraryBook {
	if e == nil {
		return nil
	}
	snap := e.BookSnapshot
	if snap == nil {
		snap = &BookSnapshot{}
	}

	words := snap.WordCount
	if e.LocalWordCount != nil {
		words = *e.LocalWordCount
	}
	estimate := snap.EstimatedTime
	if estimate == 0 && words > 0 {
		estimate = EstimateMinutes(words)
	}

	id := snap.ID
	if id == "" {
		id = e.BookID
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	return &LibraryBook{
		ID:              id,
		Title:           snap.Title,
		Author:          snap.Author,
		CoverImage:      snap.CoverImage,
		CoverImageAlt:   snap.CoverImageAlt,
		Category:        e.Category(),
		SourceType:      snap.SourceType,
		TextURL:         snap.TextURL,
		AcquisitionType: e.AcquisitionType,
		HasDownloaded:   e.HasDownloaded,
		ReadProgress:    e.ReadProgress,
		WordCount:       words,
		EstimatedTime:   estimate,
		Tags:            slices.Clone(tags),
		SavedAt:         e.SavedAt,
		LastOpenedAt:    e.LastOpenedAt,
	}
}

// NormalizeTags slugs, de-duplicates and sorts tags. Tags that slug to
// nothing are dropped.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = util.Slug(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
