package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedreader/speedreader-core/internal/domain"
)

func TestTable_GetIntoKeepsMissingFields(t *testing.T) {
	s, err := OpenInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		return tx.setJSON(recordKey(CollectionReaderSettings, domain.SettingsKey), map[string]any{
			"id":            domain.SettingsKey,
			"reading_speed": 500,
		})
	}))

	got := domain.DefaultReaderSettings()
	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		return s.Settings.GetInto(tx, domain.SettingsKey, got)
	}))
	assert.Equal(t, 500, got.ReadingSpeed)
	assert.Equal(t, 16, got.FontSize)
	assert.True(t, got.ShowFocalPoint)
	assert.True(t, got.PauseOnPunctuation)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		err := s.Settings.GetInto(tx, "missing", domain.DefaultReaderSettings())
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}
