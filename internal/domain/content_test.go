package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"blank", "  \n\t ", 0},
		{"simple", "hello world", 2},
		{"mixed whitespace", " one\ttwo\n\nthree  four ", 4},
		{"unicode", "café naïve 東京", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.text))
		})
	}
}

func TestByteSize_UTF8(t *testing.T) {
	assert.Equal(t, int64(5), ByteSize("hello"))
	assert.Equal(t, int64(5), ByteSize("café"))
	assert.Equal(t, int64(6), ByteSize("東京"))
}

func TestEstimateMinutes(t *testing.T) {
	assert.Equal(t, 1, EstimateMinutes(0))
	assert.Equal(t, 1, EstimateMinutes(100))
	assert.Equal(t, 2, EstimateMinutes(400))
	assert.Equal(t, 4, EstimateMinutes(1000))
}

func TestNewContentRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewContentRecord("book-1", "It was the best of times", FetchedViaProxy, now)

	assert.Equal(t, "book-1", rec.BookID)
	assert.Equal(t, 6, rec.WordCountActual)
	assert.Equal(t, 1, rec.EstimatedMinutesActual)
	assert.Equal(t, int64(24), rec.ByteSize)
	assert.Equal(t, now, rec.CachedAt)
	assert.Equal(t, now, rec.UpdatedAt)
}

func TestFetchedVia_Valid(t *testing.T) {
	assert.True(t, FetchedViaLegacy.Valid())
	assert.True(t, FetchedViaClipboardEdit.Valid())
	assert.True(t, FetchedViaUploadEdit.Valid())
	assert.False(t, FetchedVia("torrent").Valid())
}
