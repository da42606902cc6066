package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/itsneelabh/gocart/pkg/logger"
)

// FileStorage keeps values in a single JSON document on disk. The file is
// re-read on every call so writes made by other processes are observed.
type FileStorage struct {
	path   string
	mu     sync.Mutex
	logger logger.Logger
}

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e fileEntry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// NewFileStorage returns a FileStorage backed by path. The parent directory
// is created if needed; the file itself is created on first write.
func NewFileStorage(path string, log logger.Logger) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("file storage: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("file storage: failed to create directory: %w", err)
	}
	return &FileStorage{
		path:   filepath.Clean(path),
		logger: logger.OrNoOp(log).WithComponent("storage/file"),
	}, nil
}

// Path returns the backing file location.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", err
	}

	entry, ok := entries[key]
	if !ok || entry.expired(time.Now()) {
		return "", ErrNotFound
	}
	return entry.Value, nil
}

func (f *FileStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}

	entry := fileEntry{Value: value}
	if ttl > 0 {
		exp := time.Now().Add(ttl).UTC()
		entry.ExpiresAt = &exp
	}
	entries[key] = entry

	if err := f.save(entries); err != nil {
		return err
	}

	f.logger.Debug("Storage set", map[string]interface{}{
		"operation": "storage_set",
		"key":       key,
		"path":      f.path,
	})
	return nil
}

func (f *FileStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)

	f.logger.Debug("Storage delete", map[string]interface{}{
		"operation": "storage_delete",
		"key":       key,
		"path":      f.path,
	})
	return f.save(entries)
}

func (f *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileStorage) Close() error {
	return nil
}

// load reads the document; a missing file is an empty document.
func (f *FileStorage) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("file storage: corrupt document %s: %w", f.path, err)
	}
	return entries, nil
}

// save writes via a temp file and rename so readers never see a partial file.
func (f *FileStorage) save(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("file storage: failed to encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".gocart-*.tmp")
	if err != nil {
		return fmt.Errorf("file storage: failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("file storage: failed to write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file storage: failed to write: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("file storage: failed to replace %s: %w", f.path, err)
	}
	return nil
}
