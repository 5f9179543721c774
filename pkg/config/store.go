package config

import (
	"context"
	"fmt"
)

// StorageKey is the key/value entry the configuration is persisted under.
const StorageKey = "ai-visibility-config"

// KV is the slice of the store the configuration needs.
type KV interface {
	GetJSON(ctx context.Context, key string, v interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}) error
	Delete(ctx context.Context, key string) error
}

// Store loads and saves the configuration. Every call re-reads storage, so
// edits from other callers are never clobbered.
type Store struct {
	kv     KV
	getenv func(string) string
}

// NewStore returns a Store backed by kv. getenv may be nil.
func NewStore(kv KV, getenv func(string) string) *Store {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &Store{kv: kv, getenv: getenv}
}

// Load returns the persisted configuration, falling back to the environment
// and then to the defaults. Environment values are persisted on first use.
func (s *Store) Load(ctx context.Context) (AppConfig, error) {
	var stored AppConfig
	found, err := s.kv.GetJSON(ctx, StorageKey, &stored)
	if err != nil {
		return AppConfig{}, fmt.Errorf("loading config: %w", err)
	}
	if found {
		return Merge(Default(), stored), nil
	}

	cfg, fromEnv := FromEnv(s.getenv)
	if !fromEnv {
		return Default(), nil
	}
	if err := s.kv.SetJSON(ctx, StorageKey, cfg); err != nil {
		return AppConfig{}, fmt.Errorf("persisting environment config: %w", err)
	}
	return cfg, nil
}

// Save merges patch over the current configuration and writes the result.
func (s *Store) Save(ctx context.Context, patch AppConfig) (AppConfig, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return AppConfig{}, err
	}
	merged := Merge(current, patch)
	if err := s.kv.SetJSON(ctx, StorageKey, merged); err != nil {
		return AppConfig{}, fmt.Errorf("saving config: %w", err)
	}
	return merged, nil
}

// Reset drops the persisted configuration and reloads it.
func (s *Store) Reset(ctx context.Context) (AppConfig, error) {
	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		return AppConfig{}, fmt.Errorf("resetting config: %w", err)
	}
	return s.Load(ctx)
}
