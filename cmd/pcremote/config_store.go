package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrBindNotFound is returned by bind updates and removals for an unknown id.
var ErrBindNotFound = errors.New("bind not found")

// ConfigStore is the shared, lock-protected config snapshot. Readers get copies;
// writers replace the snapshot and persist it when a path is set.
type ConfigStore struct {
	mu   sync.RWMutex
	cfg  Config
	path string

	// overrides are re-applied on every reload so flags keep winning over the file.
	overrides FlagOverrides

	logger *slog.Logger
}

func NewConfigStore(cfg Config, path string, overrides FlagOverrides, logger *slog.Logger) *ConfigStore {
	return &ConfigStore{
		cfg:       cfg,
		path:      path,
		overrides: overrides,
		logger:    logger,
	}
}

func (s *ConfigStore) Path() string { return s.path }

// Snapshot returns a copy of the whole config.
func (s *ConfigStore) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.Binds = append([]Bind(nil), s.cfg.Binds...)
	return cfg
}

func (s *ConfigStore) Receiver() ReceiverConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Receiver
}

// Binds returns a copy of the bind table in file order.
func (s *ConfigStore) Binds() []Bind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Bind(nil), s.cfg.Binds...)
}

// DeviceFilter returns the filter for the current media config, or nil when disabled.
func (s *ConfigStore) DeviceFilter() DeviceFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfg.Media.DeviceFilter {
		return nil
	}
	return mixerFilter(s.cfg.Media.FilterPattern)
}

// ============================================================================
// Bind CRUD
// ============================================================================

// AddBind validates b, gives it an id when it has none, appends it and persists.
func (s *ConfigStore) AddBind(b Bind) (Bind, error) {
	if b.ID == "" {
		b.ID = NewBind(b.Code, b.Action, b.Repeat).ID
	}
	if err := b.Validate(); err != nil {
		return Bind{}, err
	}
	err := s.update(func(cfg *Config) error {
		for _, existing := range cfg.Binds {
			if existing.ID == b.ID {
				return fmt.Errorf("bind %q already exists", b.ID)
			}
		}
		cfg.Binds = append(cfg.Binds, b)
		return nil
	})
	if err != nil {
		return Bind{}, err
	}
	return b, nil
}

// UpdateBind replaces the bind with the same id as a whole record.
func (s *ConfigStore) UpdateBind(b Bind) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.update(func(cfg *Config) error {
		for i := range cfg.Binds {
			if cfg.Binds[i].ID == b.ID {
				cfg.Binds[i] = b
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrBindNotFound, b.ID)
	})
}

func (s *ConfigStore) RemoveBind(id string) error {
	return s.update(func(cfg *Config) error {
		for i := range cfg.Binds {
			if cfg.Binds[i].ID == id {
				cfg.Binds = append(cfg.Binds[:i:i], cfg.Binds[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrBindNotFound, id)
	})
}

// update applies fn to a copy, validates, persists and only then swaps the snapshot.
func (s *ConfigStore) update(fn func(cfg *Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	next.Binds = append([]Bind(nil), s.cfg.Binds...)
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if s.path != "" {
		if err := SaveConfigFile(s.path, next); err != nil {
			return err
		}
	}
	s.cfg = next
	return nil
}

// ============================================================================
// Reload
// ============================================================================

// Reload re-reads the file. An invalid file leaves the current snapshot in place.
func (s *ConfigStore) Reload() error {
	if s.path == "" {
		return errors.New("config store has no file")
	}
	cfg, err := LoadConfigFile(s.path)
	if err != nil {
		return err
	}
	s.overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Info("config reloaded", "path", s.path, "binds", len(cfg.Binds))
	return nil
}
