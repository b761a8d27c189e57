package domain

import (
	"math"
	"strings"
	"time"
)

// WordsPerMinute is the reading pace used for time estimates.
const WordsPerMinute = 250

// FetchedVia records where cached content came from.
type FetchedVia string

// Content origins.
const (
	FetchedViaProxy         FetchedVia = "proxy"
	FetchedViaClipboard     FetchedVia = "clipboard"
	FetchedViaClipboardEdit FetchedVia = "clipboard-edit"
	FetchedViaUpload        FetchedVia = "upload"
	FetchedViaUploadEdit    FetchedVia = "upload-edit"
	FetchedViaLegacy        FetchedVia = "legacy"
)

// Valid reports whether f is a known origin.
func (f FetchedVia) Valid() bool {
	switch f {
	case FetchedViaProxy, FetchedViaClipboard, FetchedViaClipboardEdit, FetchedViaUpload, FetchedViaUploadEdit, FetchedViaLegacy:
		return true
	default:
		return false
	}
}

// ContentRecord is the cached full text of a book. Its presence is the sole
// source of truth for whether a book is downloaded.
type ContentRecord struct {
	BookID                 string     `json:"book_id"`
	Content                string     `json:"content"`
	WordCountActual        int        `json:"word_count_actual"`
	EstimatedMinutesActual int        `json:"estimated_minutes_actual"`
	ByteSize               int64      `json:"byte_size"`
	FetchedVia             FetchedVia `json:"fetched_via"`
	CachedAt               time.Time  `json:"cached_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// NewContentRecord derives sizes and counts from text.
func NewContentRecord(bookID, text string, via FetchedVia, now time.Time) *ContentRecord {
	words := CountWords(text)
	return &ContentRecord{
		BookID:                 bookID,
		Content:                text,
		WordCountActual:        words,
		EstimatedMinutesActual: EstimateMinutes(words),
		ByteSize:               ByteSize(text),
		FetchedVia:             via,
		CachedAt:               now,
		UpdatedAt:              now,
	}
}

// ByteSize returns the UTF-8 encoded length of text.
func ByteSize(text string) int64 {
	return int64(len(text))
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// EstimateMinutes returns the rounded reading time, never less than a minute.
func EstimateMinutes(words int) int {
	return max(1, int(math.Round(float64(words)/WordsPerMinute)))
}
