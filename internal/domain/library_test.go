package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLibraryEntry_DefaultsAcquisition(t *testing.T) {
	now := time.Now()

	e := NewLibraryEntry("b", AcquisitionType("bogus"), now)
	assert.Equal(t, AcquisitionCurated, e.AcquisitionType)
	assert.Equal(t, now, e.SavedAt)
	assert.NotNil(t, e.Tags)
	assert.False(t, e.HasDownloaded)
}

func TestAcquisitionType_IsLocal(t *testing.T) {
	assert.True(t, AcquisitionClipboard.IsLocal())
	assert.True(t, AcquisitionUpload.IsLocal())
	assert.False(t, AcquisitionCurated.IsLocal())
}

func TestMergeLibraryBook(t *testing.T) {
	saved := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	words := 1000

	t.Run("local word count wins", func(t *testing.T) {
		e := &LibraryEntry{
			BookID:          "b1",
			AcquisitionType: AcquisitionCurated,
			SavedAt:         saved,
			HasDownloaded:   true,
			LocalWordCount:  &words,
			ReadProgress:    42,
			BookSnapshot:    &BookSnapshot{ID: "b1", Title: "Emma", WordCount: 160000},
		}

		got := MergeLibraryBook(e)
		require.NotNil(t, got)
		assert.Equal(t, "b1", got.ID)
		assert.Equal(t, "Emma", got.Title)
		assert.Equal(t, 1000, got.WordCount)
		assert.Equal(t, 4, got.EstimatedTime)
		assert.Equal(t, DefaultCategory, got.Category)
		assert.True(t, got.HasDownloaded)
		assert.InDelta(t, 42.0, got.ReadProgress, 0.0001)
		assert.Equal(t, []string{}, got.Tags)
	})

	t.Run("snapshot estimate kept", func(t *testing.T) {
		e := &LibraryEntry{
			BookID:       "b2",
			BookSnapshot: &BookSnapshot{ID: "b2", WordCount: 5000, EstimatedTime: 30, Category: "poetry"},
		}

		got := MergeLibraryBook(e)
		assert.Equal(t, 5000, got.WordCount)
		assert.Equal(t, 30, got.EstimatedTime)
		assert.Equal(t, "poetry", got.Category)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		got := MergeLibraryBook(&LibraryEntry{BookID: "b3"})
		assert.Equal(t, "b3", got.ID)
		assert.Equal(t, 0, got.EstimatedTime)
	})

	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, MergeLibraryBook(nil))
	})
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Fiction", "fiction", "", "  ", "Classics"})
	assert.Equal(t, []string{"classics", "fiction"}, got)
	assert.Equal(t, []string{}, NormalizeTags(nil))
	assert.Equal(t, []string{"slow-burn"}, NormalizeTags([]string{"Slow Burn", "slow_burn", "!!"}))
}
