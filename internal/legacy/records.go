package legacy

import (
	"encoding/json"

	"github.com/speedreader/speedreader-core/internal/domain"
)

// Book is a library list item as the old scheme stored it. Unknown fields
// are ignored.
type Book struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	CoverImage    string `json:"coverImage"`
	CoverImageAlt string `json:"coverImageAlt"`
	Category      string `json:"category"`
	SourceType    string `json:"sourceType"`
	WordCount     int    `json:"wordCount"`
	EstimatedTime int    `json:"estimatedTime"`
	TextURL       string `json:"textUrl"`
}

// Snapshot converts the legacy item.
func (b *Book) Snapshot() *domain.BookSnapshot {
	return &domain.BookSnapshot{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		CoverImage:    b.CoverImage,
		CoverImageAlt: b.CoverImageAlt,
		Category:      b.Category,
		SourceType:    b.SourceType,
		WordCount:     max(0, b.WordCount),
		EstimatedTime: max(0, b.EstimatedTime),
		TextURL:       b.TextURL,
	}
}

// Settings is the old settings blob. Every field is optional.
type Settings struct {
	ReadingSpeed       *int    `json:"readingSpeed"`
	FontSize           *int    `json:"fontSize"`
	FontFamily         *string `json:"fontFamily"`
	Theme              *string `json:"theme"`
	WordsPerFrame      *int    `json:"wordsPerFrame"`
	PauseOnPunctuation *bool   `json:"pauseOnPunctuation"`
	PauseOnLongWords   *bool   `json:"pauseOnLongWords"`
	ShowFocalPoint     *bool   `json:"showFocalPoint"`
	SmartHighlighting  *bool   `json:"smartHighlighting"`
}

// Patch converts the blob into a settings patch.
func (s *Settings) Patch() *domain.SettingsPatch {
	return &domain.SettingsPatch{
		ReadingSpeed:       s.ReadingSpeed,
		FontSize:           s.FontSize,
		FontFamily:         s.FontFamily,
		Theme:              s.Theme,
		WordsPerFrame:      s.WordsPerFrame,
		PauseOnPunctuation: s.PauseOnPunctuation,
		PauseOnLongWords:   s.PauseOnLongWords,
		ShowFocalPoint:     s.ShowFocalPoint,
		SmartHighlighting:  s.SmartHighlighting,
	}
}

// Progress is a per-book position.
type Progress struct {
	CurrentWordIndex *int `json:"currentWordIndex"`
	TotalWords       *int `json:"totalWords"`
}

// Position returns the index and total with the old scheme's defaults of 0 and 1.
func (p *Progress) Position() (index, total int) {
	index, total = 0, 1
	if p.CurrentWordIndex != nil {
		index = *p.CurrentWordIndex
	}
	if p.TotalWords != nil && *p.TotalWords > 0 {
		total = *p.TotalWords
	}
	return index, total
}

// DecodeLibrary parses the library list.
func DecodeLibrary(raw string) ([]Book, error) {
	var books []Book
	if err := json.Unmarshal([]byte(raw), &books); err != nil {
		return nil, err
	}
	return books, nil
}

// DecodeSettings parses the settings blob.
func DecodeSettings(raw string) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeProgress parses a progress value.
func DecodeProgress(raw string) (*Progress, error) {
	var p Progress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
