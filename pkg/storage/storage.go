// Package storage provides durable key-value persistence for the
// connector session (last wallet, last cluster) with graceful degradation.
// When the backing store is unavailable, typed stores silently fall back
// to in-memory values for the lifetime of the process; Set never fails to
// its caller.
package storage

import (
	"sync"
)

// KV is the raw key-value contract. Implementations may fail on any
// operation (disabled storage, quota exceeded, I/O errors); callers above
// this interface are responsible for absorbing those failures.
type KV interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(key string) (string, bool, error)
	// SetItem stores a value under the key.
	SetItem(key, value string) error
	// RemoveItem deletes the key. Removing a missing key is not an error.
	RemoveItem(key string) error
}

// MemoryKV is an in-process KV with no durability. It never fails.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

// GetItem returns the stored value and whether the key exists.
func (m *MemoryKV) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// SetItem stores a value under the key.
func (m *MemoryKV) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// RemoveItem deletes the key.
func (m *MemoryKV) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
