package domain

import "time"

// SettingsKey is the fixed key of the singleton settings record.
const SettingsKey = "global"

// ReaderSettings holds the user's reading preferences.
type ReaderSettings struct {
	ID                 string    `json:"id"`
	ReadingSpeed       int       `json:"reading_speed" validate:"gte=50,lte=1000"`
	FontSize           int       `json:"font_size" validate:"gte=12,lte=32"`
	FontFamily         string    `json:"font_family" validate:"required,max=32"`
	Theme              string    `json:"theme" validate:"oneof=light dark sepia"`
	WordsPerFrame      int       `json:"words_per_frame" validate:"gte=1,lte=3"`
	PauseOnPunctuation bool      `json:"pause_on_punctuation"`
	PauseOnLongWords   bool      `json:"pause_on_long_words"`
	ShowFocalPoint     bool      `json:"show_focal_point"`
	SmartHighlighting  bool      `json:"smart_highlighting"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultReaderSettings returns the settings used before the user saves any.
func DefaultReaderSettings() *ReaderSettings {
	return &ReaderSettings{
		ID:                 SettingsKey,
		ReadingSpeed:       350,
		FontSize:           16,
		FontFamily:         "sans",
		Theme:              "light",
		WordsPerFrame:      1,
		PauseOnPunctuation: true,
		PauseOnLongWords:   false,
		ShowFocalPoint:     true,
		SmartHighlighting:  false,
	}
}

// FillDefaults replaces unset fields with their defaults. Booleans are
// left alone since false is a valid choice.
func (s *ReaderSettings) FillDefaults() {
	def := DefaultReaderSettings()
	if s.ReadingSpeed == 0 {
		s.ReadingSpeed = def.ReadingSpeed
	}
	if s.FontSize == 0 {
		s.FontSize = def.FontSize
	}
	if s.FontFamily == "" {
		s.FontFamily = def.FontFamily
	}
	if s.Theme == "" {
		s.Theme = def.Theme
	}
	if s.WordsPerFrame == 0 {
		s.WordsPerFrame = def.WordsPerFrame
	}
}

// SettingsPatch carries optional overrides. Nil fields keep their current value.
type SettingsPatch struct {
	ReadingSpeed       *int    `json:"reading_speed,omitempty"`
	FontSize           *int    `json:"font_size,omitempty"`
	FontFamily         *string `json:"font_family,omitempty"`
	Theme              *string `json:"theme,omitempty"`
	WordsPerFrame      *int    `json:"words_per_frame,omitempty"`
	PauseOnPunctuation *bool   `json:"pause_on_punctuation,omitempty"`
	PauseOnLongWords   *bool   `json:"pause_on_long_words,omitempty"`
	ShowFocalPoint     *bool   `json:"show_focal_point,omitempty"`
	SmartHighlighting  *bool   `json:"smart_highlighting,omitempty"`
}

// Apply overlays the patch onto s.
func (p *SettingsPatch) Apply(s *ReaderSettings) {
	if p == nil {
		return
	}
	if p.ReadingSpeed != nil {
		s.ReadingSpeed = *p.ReadingSpeed
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		s.FontFamily = *p.FontFamily
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.WordsPerFrame != nil {
		s.WordsPerFrame = *p.WordsPerFrame
	}
	if p.PauseOnPunctuation != nil {
		s.PauseOnPunctuation = *p.PauseOnPunctuation
	}
	if p.PauseOnLongWords != nil {
		s.PauseOnLongWords = *p.PauseOnLongWords
	}
	if p.ShowFocalPoint != nil {
		s.ShowFocalPoint = *p.ShowFocalPoint
	}
	if p.SmartHighlighting != nil {
		s.SmartHighlighting = *p.SmartHighlighting
	}
}
