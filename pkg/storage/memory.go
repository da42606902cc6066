package storage

import (
	"context"
	"sync"
	"time"

	"github.com/itsneelabh/gocart/pkg/logger"
)

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu     sync.RWMutex
	data   map[string]memoryEntry
	logger logger.Logger
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStorage creates an empty in-memory store. log may be nil.
func NewMemoryStorage(log logger.Logger) *MemoryStorage {
	return &MemoryStorage{
		data:   make(map[string]memoryEntry),
		logger: logger.OrNoOp(log).WithComponent("storage/memory"),
	}
}

// Get retrieves a value
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	if !ok {
		m.logger.Debug("Storage miss", map[string]interface{}{
			"operation": "storage_get",
			"key":       key,
			"result":    "miss",
		})
		return "", ErrNotFound
	}

	if entry.expired(time.Now()) {
		m.logger.Debug("Storage entry expired", map[string]interface{}{
			"operation":  "storage_get",
			"key":        key,
			"result":     "expired",
			"expired_at": entry.expiresAt.Format(time.RFC3339),
		})
		return "", ErrNotFound
	}

	m.logger.Debug("Storage hit", map[string]interface{}{
		"operation": "storage_get",
		"key":       key,
		"result":    "hit",
	})
	return entry.value, nil
}

// Set stores a value with an optional TTL
func (m *MemoryStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields := map[string]interface{}{
		"operation":  "storage_set",
		"key":        key,
		"value_size": len(value),
		"has_ttl":    ttl > 0,
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
		fields["expires_at"] = entry.expiresAt.Format(time.RFC3339)
	}
	m.data[key] = entry

	m.logger.Debug("Storage set", fields)
	return nil
}

// Delete removes a value. Deleting a missing key is not an error.
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.data[key]
	delete(m.data, key)

	m.logger.Debug("Storage delete", map[string]interface{}{
		"operation": "storage_delete",
		"key":       key,
		"existed":   existed,
	})
	return nil
}

// Exists reports whether a live value is stored under key
func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.data[key]
	return ok && !entry.expired(time.Now()), nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
