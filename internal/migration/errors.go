package migration

import (
	"context"
	"errors"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
)

// fatal reports whether err should stop the whole run rather than skip one item.
func fatal(err error) bool {
	return errors.Is(err, domainerrors.ErrStorageUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// resetToDefaults restores the named settings fields to their defaults.
func resetToDefaults(s *domain.ReaderSettings, fields map[string]string) {
	d := domain.DefaultReaderSettings()
	for name := range fields {
		switch name {
		case "reading_speed":
			s.ReadingSpeed = d.ReadingSpeed
		case "font_size":
			s.FontSize = d.FontSize
		case "font_family":
			s.FontFamily = d.FontFamily
		case "theme":
			s.Theme = d.Theme
		case "words_per_frame":
			s.WordsPerFrame = d.WordsPerFrame
		}
	}
}
