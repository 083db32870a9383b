package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/felixgeelhaar/storefront/internal/storage"
	"github.com/spf13/afero"
)

const tmpPrefix = ".tmp-"

var (
	// ErrNotFound is returned when a key has no value
	ErrNotFound = storage.ErrNotFound
	// ErrInvalidKey is returned for keys that cannot name a file
	ErrInvalidKey = errors.New("invalid key")
)

// Store provides thread-safe file storage, one file per key
type Store struct {
	fs       afero.Fs
	basePath string
	mu       sync.RWMutex
}

var _ storage.KV = (*Store)(nil)

// NewStore creates a new file store rooted at basePath on fs
func NewStore(fs afero.Fs, basePath string) (*Store, error) {
	if err := fs.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{fs: fs, basePath: basePath}, nil
}

// NewOSStore creates a file store on the real filesystem
func NewOSStore(basePath string) (*Store, error) {
	return NewStore(afero.NewOsFs(), basePath)
}

func (s *Store) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.HasPrefix(key, tmpPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, url.PathEscape(key)), nil
}

// Set writes value under key, replacing the previous file atomically
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := afero.TempFile(s.fs, s.basePath, tmpPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write value: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("rename value: %w", err)
	}

	return nil
}

// Get reads the value stored under key
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read value: %w", err)
	}

	return data, nil
}

// Delete removes the file for key
func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove value: %w", err)
	}

	return nil
}

// Keys returns all stored keys starting with prefix
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}
		key, err := url.PathUnescape(entry.Name())
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Exists checks if a key has a value
func (s *Store) Exists(key string) bool {
	path, err := s.path(key)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// Close is a no-op for file storage
func (s *Store) Close() error {
	return nil
}
