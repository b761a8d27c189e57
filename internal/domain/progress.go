package domain

import (
	"math"
	"time"
)

// ProgressRecord is the reading position within a book. It outlives the
// cached content: evicting text never resets progress.
type ProgressRecord struct {
	BookID           string     `json:"book_id"`
	CurrentWordIndex int        `json:"current_word_index"`
	TotalWords       int        `json:"total_words"`
	PercentComplete  float64    `json:"percent_complete"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// NewProgressRecord clamps index into [0, total-1] and derives the percentage.
// The last word counts as 100%. total must be at least 1.
// A previous record's completion time is carried forward.
func NewProgressRecord(bookID string, index, total int, prev *ProgressRecord, now time.Time) *ProgressRecord {
	index = min(max(index, 0), total-1)

	percent := 100.0
	if total > 1 {
		percent = math.Round(float64(index)/float64(total-1)*100*100) / 100
	}

	rec := &ProgressRecord{
		BookID:           bookID,
		CurrentWordIndex: index,
		TotalWords:       total,
		PercentComplete:  percent,
		UpdatedAt:        now,
	}

	switch {
	case prev != nil && prev.CompletedAt != nil:
		completed := *prev.CompletedAt
		rec.CompletedAt = &completed
	case index == total-1:
		rec.CompletedAt = &now
	}
	return rec
}

// IsComplete reports whether the reader has reached the last word at least once.
func (p *ProgressRecord) IsComplete() bool {
	return p.CompletedAt != nil
}
