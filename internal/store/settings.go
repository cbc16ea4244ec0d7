package store

import (
	"context"
	"sync"

	"kairon/backend"
)

// SettingsStore owns the single preferences record.
type SettingsStore struct {
	mu       sync.RWMutex
	settings backend.Settings
	db       backend.Store
}

// NewSettingsStore merges a stored record (nil if none) over the defaults.
func NewSettingsStore(db backend.Store, stored *backend.Settings) *SettingsStore {
	s := &SettingsStore{db: db}
	s.Replace(stored)
	return s
}

// Replace resets the record from storage, merging over the defaults.
func (s *SettingsStore) Replace(stored *backend.Settings) {
	settings := backend.DefaultSettings()
	if stored != nil {
		settings = stored.MergeOver(settings)
	}

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Get returns the current settings.
func (s *SettingsStore) Get() backend.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Save validates and replaces the whole record.
func (s *SettingsStore) Save(ctx context.Context, settings backend.Settings) (backend.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings = settings.MergeOver(s.settings)
	if err := settings.Validate(); err != nil {
		return backend.Settings{}, err
	}
	if err := s.db.PutSettings(ctx, settings); err != nil {
		return backend.Settings{}, persistErr("save settings", err)
	}
	s.settings = settings
	return settings, nil
}

// SetNotificationPermission records the last observed platform permission.
func (s *SettingsStore) SetNotificationPermission(ctx context.Context, p backend.Permission) error {
	s.mu.RLock()
	next := s.settings
	s.mu.RUnlock()

	next.NotificationPermission = p
	_, err := s.Save(ctx, next)
	return err
}
