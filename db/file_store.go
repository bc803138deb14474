package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
)

// fileContents is the on-disk layout of a FileStore.
type fileContents struct {
	Items map[string]string `json:"items"`
}

// FileStore keeps every item in one JSON file. Reads and writes of the file
// are serialized across processes through a lock file, and writes replace
// the file atomically.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) GetItem(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := f.withLock(func(items map[string]string) (bool, error) {
		value, found = items[key]
		return false, nil
	})
	return value, found, err
}

func (f *FileStore) SetItem(key, value string) error {
	return f.withLock(func(items map[string]string) (bool, error) {
		items[key] = value
		return true, nil
	})
}

func (f *FileStore) RemoveItem(key string) error {
	return f.withLock(func(items map[string]string) (bool, error) {
		if _, ok := items[key]; !ok {
			return false, nil
		}
		delete(items, key)
		return true, nil
	})
}

func (f *FileStore) Keys() ([]string, error) {
	var keys []string
	err := f.withLock(func(items map[string]string) (bool, error) {
		keys = make([]string, 0, len(items))
		for k := range items {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return false, nil
	})
	return keys, err
}

// withLock reads the file under the lock and, when fn reports a change,
// writes the updated map back before releasing it.
func (f *FileStore) withLock(fn func(items map[string]string) (bool, error)) error {
	lock, err := acquireFileLock(f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			log.Warn().Err(releaseErr).Str("path", f.path).Msg("Failed to release lock")
		}
	}()

	items, err := f.read()
	if err != nil {
		return err
	}
	changed, err := fn(items)
	if err != nil || !changed {
		return err
	}
	return f.write(items)
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", f.path, err)
	}
	if contents.Items == nil {
		contents.Items = make(map[string]string)
	}
	return contents.Items, nil
}

func (f *FileStore) write(items map[string]string) error {
	data, err := json.MarshalIndent(fileContents{Items: items}, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf("failed to rename temp file: %v; additionally failed to remove temp file: %w", err, removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
