package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// SettingsStore persists the reader's preferences as a single record.
type SettingsStore struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
	now       Clock
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(s *store.Store, v *validation.Validator, logger *slog.Logger) *SettingsStore {
	return &SettingsStore{
		store:     s,
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// Load returns the saved settings, or the defaults when nothing is saved or
// storage is unavailable. Fields the saved record lacks take their defaults.
func (s *SettingsStore) Load(ctx context.Context) (*domain.ReaderSettings, error) {
	var settings *domain.ReaderSettings
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		settings, err = s.current(tx)
		return err
	})
	if errors.Is(err, domainerrors.ErrStorageUnavailable) {
		s.logger.Warn("storage unavailable, using default settings")
		return domain.DefaultReaderSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// current reads the saved settings decoded over the defaults.
func (s *SettingsStore) current(tx *store.Tx) (*domain.ReaderSettings, error) {
	settings := domain.DefaultReaderSettings()
	err := s.store.Settings.GetInto(tx, domain.SettingsKey, settings)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DefaultReaderSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	settings.FillDefaults()
	settings.ID = domain.SettingsKey
	return settings, nil
}

// Save validates and stores settings under the singleton key.
func (s *SettingsStore) Save(ctx context.Context, settings *domain.ReaderSettings) (*domain.ReaderSettings, error) {
	if settings == nil {
		return nil, domainerrors.Validation("settings are required")
	}
	if err := s.validator.Validate(settings); err != nil {
		return nil, err
	}

	rec := *settings
	rec.ID = domain.SettingsKey
	rec.UpdatedAt = s.now()
	if err := s.store.Settings.Save(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update applies patch to the current settings and saves the result in one
// atomic group.
func (s *SettingsStore) Update(ctx context.Context, patch *domain.SettingsPatch) (*domain.ReaderSettings, error) {
	var rec *domain.ReaderSettings
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		current, err := s.current(tx)
		if err != nil {
			return err
		}
		patch.Apply(current)
		if err := s.validator.Validate(current); err != nil {
			return err
		}
		current.ID = domain.SettingsKey
		current.UpdatedAt = s.now()
		rec = current
		return s.store.Settings.Put(tx, current)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
