// Package prefs provides the named preference store handle the manager
// exposes to its collaborators. Values are schemaless key/value pairs,
// last-writer-wins, persisted as a YAML file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store is a persistent key/value preference store.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]any
	logger *logrus.Logger
}

// Open loads (or creates) the named store under dir.
func Open(dir, name string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if name == "" {
		return nil, fmt.Errorf("preference store name required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preference dir: %w", err)
	}

	s := &Store{
		path:   filepath.Join(dir, name+".yaml"),
		values: make(map[string]any),
		logger: logger,
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read preference store: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse preference store %s: %w", s.path, err)
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Set stores a value and persists the store.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flushLocked()
}

// Delete removes a key and persists the store. Deleting an absent key is a
// no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

// GetString returns the string stored under key, or def.
func (s *Store) GetString(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key].(string); ok {
		return v
	}
	return def
}

// GetBool returns the bool stored under key, or def.
func (s *Store) GetBool(key string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

// GetInt64 returns the integer stored under key, or def.
func (s *Store) GetInt64(key string, def int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := s.values[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return def
	}
}

func (s *Store) flushLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode preference store: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preference store: %w", err)
	}

	s.logger.WithField("path", s.path).Debug("Preference store flushed")
	return nil
}
