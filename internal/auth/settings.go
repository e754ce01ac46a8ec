package auth

import (
	"context"
	"sync/atomic"
)

// SettingsStore persists runtime settings across restarts
type SettingsStore interface {
	LoadRequireAPIKey(ctx context.Context) (value bool, found bool, err error)
	SaveRequireAPIKey(ctx context.Context, value bool) error
}

// Settings holds the runtime switches admins may flip without a restart.
// Readers go through the accessor; SetRequireAPIKey is the only writer.
type Settings struct {
	requireAPIKey atomic.Bool
	store         SettingsStore
}

// NewSettings seeds the settings from configuration. A persisted value,
// when present, wins over the configured default.
func NewSettings(ctx context.Context, requireAPIKey bool, store SettingsStore) (*Settings, error) {
	s := &Settings{store: store}
	s.requireAPIKey.Store(requireAPIKey)

	if store != nil {
		v, found, err := store.LoadRequireAPIKey(ctx)
		if err != nil {
			return nil, err
		}
		if found {
			s.requireAPIKey.Store(v)
		}
	}
	return s, nil
}

// RequireAPIKey reports whether anonymous requests are refused
func (s *Settings) RequireAPIKey() bool {
	return s.requireAPIKey.Load()
}

// SetRequireAPIKey changes the flag and persists it when a store is configured
func (s *Settings) SetRequireAPIKey(ctx context.Context, v bool) error {
	if s.store != nil {
		if err := s.store.SaveRequireAPIKey(ctx, v); err != nil {
			return err
		}
	}
	s.requireAPIKey.Store(v)
	return nil
}

// Snapshot is the JSON form served by the admin settings endpoint
func (s *Settings) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"requireApiKey": s.RequireAPIKey(),
	}
}
