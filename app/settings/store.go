// Package settings persists small key/value application settings, including
// the remote sync access credential, as a YAML file in the data directory.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const fileName = "settings.yml"

// AccessTokenKey holds the bearer credential for the subscription-list
// provider. Its absence means sync is not configured.
const AccessTokenKey = "access_token"

type Store struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// Open loads the settings file from dir, starting empty when the file does
// not exist yet.
func Open(dir string) (*Store, error) {
	s := &Store{
		path:   filepath.Join(dir, fileName),
		values: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	return s, nil
}

func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flushLocked()
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return nil
}

// AccessToken returns the stored sync credential, empty when sync is not
// configured.
func (s *Store) AccessToken() string {
	return s.Get(AccessTokenKey)
}
