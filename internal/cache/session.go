package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultSessionEntries bounds each session tier.
const DefaultSessionEntries = 10_000

// Session is the in-memory tier owned by one carousel session. It shadows the
// persistent tier and also holds negative results that must not outlive the
// session.
type Session[T any] struct {
	cache *ristretto.Cache[string, T]
}

// NewSession creates a session tier holding roughly maxEntries values.
func NewSession[T any](maxEntries int) (*Session[T], error) {
	if maxEntries <= 0 {
		maxEntries = DefaultSessionEntries
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Session[T]{cache: c}, nil
}

// Get returns the value for key.
func (s *Session[T]) Get(key string) (T, bool) {
	return s.cache.Get(key)
}

// Set stores v under key and waits until it is visible to Get.
func (s *Session[T]) Set(key string, v T) {
	s.cache.Set(key, v, 1)
	s.cache.Wait()
}

// Delete removes key.
func (s *Session[T]) Delete(key string) {
	s.cache.Del(key)
}

// Clear drops every entry. Called on session teardown and refresh.
func (s *Session[T]) Clear() {
	s.cache.Clear()
}

// Close releases the cache's background goroutines.
func (s *Session[T]) Close() {
	s.cache.Close()
}
