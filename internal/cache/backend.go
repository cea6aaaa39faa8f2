// Package cache implements the two-tier ratings cache: a persistent TTL store
// of JSON envelopes and a per-session in-memory tier in front of it.
package cache

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrQuotaExceeded is returned by a Backend when a write would exceed its byte quota.
var ErrQuotaExceeded = errors.New("cache: storage quota exceeded")

// Backend is a namespaced string key/value store with a byte quota.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	// Set stores value under key, returning ErrQuotaExceeded when the quota is hit.
	Set(key string, value []byte) error
	Delete(keys ...string) error
	// Scan calls fn for every entry whose key starts with prefix.
	Scan(prefix string, fn func(key string, value []byte) error) error
	// Usage returns the bytes currently accounted against the quota.
	Usage() int64
	Close() error
}

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// MemoryBackend is an in-process Backend used by tests and by the
// cacheless mode when no cache path is configured.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int64
	used  int64

	// failNext makes the next n writes fail with ErrQuotaExceeded regardless
	// of usage. Tests use it to exercise the evict-and-retry path.
	failNext int
}

// NewMemoryBackend creates a memory backend. quota <= 0 means unlimited.
func NewMemoryBackend(quota int64) *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte), quota: quota}
}

// Get implements Backend.
func (m *MemoryBackend) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext > 0 {
		m.failNext--
		return ErrQuotaExceeded
	}

	delta := entrySize(key, value)
	if old, ok := m.data[key]; ok {
		delta -= entrySize(key, old)
	}
	if m.quota > 0 && m.used+delta > m.quota {
		return ErrQuotaExceeded
	}

	m.data[key] = slices.Clone(value)
	m.used += delta
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if old, ok := m.data[key]; ok {
			m.used -= entrySize(key, old)
			delete(m.data, key)
		}
	}
	return nil
}

// Scan implements Backend. Keys are visited in sorted order.
func (m *MemoryBackend) Scan(prefix string, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			snapshot[k] = v
		}
	}
	m.mu.RUnlock()

	for _, k := range slices.Sorted(maps.Keys(snapshot)) {
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Usage implements Backend.
func (m *MemoryBackend) Usage() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// FailNextWrites makes the next n writes fail with ErrQuotaExceeded.
func (m *MemoryBackend) FailNextWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
