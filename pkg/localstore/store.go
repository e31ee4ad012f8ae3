// Package localstore is a durable key-value substrate backed by one file
// per key. It persists the anonymous session collection and the
// current-session pointer.
package localstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store persists string values under path-safe keys.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".whatif", "store")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	log.Debug().Str("dir", dir).Msg("Local store initialized")
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// validateKey validates the key for path safety.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key cannot contain '..'")
	}
	if strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("key cannot contain path separators")
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key cannot contain null bytes")
	}
	return nil
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key)
}

// Get reads a value. A key that has never been written returns ok=false
// with no error.
func (s *Store) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes a value durably: temp file, fsync, atomic rename. A reader
// never observes a partially written value.
func (s *Store) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyPath(key)
	tempPath := path + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file for key %q: %w", key, err)
	}

	if _, err := file.WriteString(value); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync key %q: %w", key, err)
	}
	file.Close()

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace key %q: %w", key, err)
	}

	return nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.keyPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}
