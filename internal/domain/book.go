// Package domain contains the records persisted by the speed reader storage core.
package domain

import "strings"

// Default display values used when a snapshot omits them.
const (
	DefaultCategory      = "classics"
	UnknownTitle         = "Unknown title"
	UnknownAuthor        = "Unknown author"
	UntitledPaste        = "Untitled Paste"
	ClipboardAuthor      = "Clipboard Import"
	QuickReadsCategory   = "quick-reads"
	UploadsCategory      = "uploads"
	ClipboardSourceType  = "clipboard"
	PlainTextSourceType  = "text"
	MarkdownSourceType   = "markdown"
	coverAltClipboardFmt = "Clipboard entry for "
)

// BookSnapshot is denormalized display metadata for a book. It is copied
// onto both the BookRecord and the LibraryEntry and is refreshed whenever
// the catalog sees the book again.
type BookSnapshot struct {
	ID            string `json:"id" validate:"required"`
	Title         string `json:"title"`
	Author        string `json:"author,omitempty"`
	CoverImage    string `json:"cover_image,omitempty"`
	CoverImageAlt string `json:"cover_image_alt,omitempty"`
	Category      string `json:"category,omitempty"`
	SourceType    string `json:"source_type,omitempty"`
	WordCount     int    `json:"word_count" validate:"gte=0"`
	EstimatedTime int    `json:"estimated_time" validate:"gte=0"` // minutes
	TextURL       string `json:"text_url,omitempty"`
}

// Clone returns a copy of the snapshot. A nil snapshot clones to nil.
func (s *BookSnapshot) Clone() *BookSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Normalize trims text fields and fills the id. Category is left empty when
// absent so listings can apply their own default.
func (s *BookSnapshot) Normalize(bookID string) {
	s.ID = bookID
	s.Title = strings.TrimSpace(s.Title)
	s.Author = strings.TrimSpace(s.Author)
	s.Category = strings.TrimSpace(s.Category)
}

// BookRecord is the row in the books collection.
type BookRecord struct {
	BookID       string        `json:"book_id"`
	BookSnapshot *BookSnapshot `json:"book_snapshot"`
}

// ClipboardCoverAlt is the alt text given to pasted books.
func ClipboardCoverAlt(title string) string {
	return coverAltClipboardFmt + title
}
