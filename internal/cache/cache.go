package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Namespace prefixes every persistent key written by this package.
const Namespace = "spotlight:"

// DefaultTTL is how long a persistent entry stays valid.
const DefaultTTL = 168 * time.Hour

// Key joins parts into a provider-and-type-qualified cache key, e.g.
// Key("mdblist", "movie", "603") == "mdblist:movie:603".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// envelope is the stored representation of every entry.
type envelope struct {
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Data      json.RawMessage `json:"data"`
}

// Persistent is the TTL-bound tier that survives across sessions.
// Storage failures never surface to callers.
type Persistent struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Persistent cache.
type Option func(*Persistent)

// WithClock overrides the time source. Tests use it to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Persistent) { p.now = now }
}

// NewPersistent wraps backend with TTL and quota handling.
func NewPersistent(backend Backend, ttl time.Duration, logger *slog.Logger, opts ...Option) *Persistent {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Persistent{backend: backend, ttl: ttl, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get decodes the entry for key into dest. It reports false when the entry is
// missing, expired or unreadable; expired and unreadable entries are deleted.
func (p *Persistent) Get(key string, dest any) bool {
	full := Namespace + key

	raw, ok, err := p.backend.Get(full)
	if err != nil {
		p.logger.Debug("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		p.logger.Debug("discarding unparsable cache entry", "key", key, "error", err)
		p.remove(full)
		return false
	}

	if p.expired(env.Timestamp) {
		p.remove(full)
		return false
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		p.logger.Debug("discarding undecodable cache payload", "key", key, "error", err)
		p.remove(full)
		return false
	}
	return true
}

// Set stores v under key. On quota exhaustion the oldest half of the
// namespace is evicted and the write is retried once; a second failure is
// dropped. It reports whether the value was stored.
func (p *Persistent) Set(key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Debug("cache value not serializable", "key", key, "error", err)
		return false
	}
	raw, err := json.Marshal(envelope{Timestamp: p.now().UnixMilli(), Data: data})
	if err != nil {
		return false
	}

	full := Namespace + key
	err = p.backend.Set(full, raw)
	if errors.Is(err, ErrQuotaExceeded) {
		evicted, evictErr := p.EvictOldestHalf()
		if evictErr != nil {
			p.logger.Debug("cache eviction failed", "error", evictErr)
		}
		p.logger.Debug("cache quota exceeded, evicted oldest entries", "evicted", evicted)
		err = p.backend.Set(full, raw)
	}
	if err != nil {
		p.logger.Debug("cache write dropped", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes key. Deleting a missing key is not an error.
func (p *Persistent) Delete(key string) {
	p.remove(Namespace + key)
}

func (p *Persistent) remove(full string) {
	if err := p.backend.Delete(full); err != nil {
		p.logger.Debug("cache delete failed", "key", full, "error", err)
	}
}

func (p *Persistent) expired(ts int64) bool {
	return p.now().Sub(time.UnixMilli(ts)) > p.ttl
}

type aged struct {
	key string
	ts  int64
}

// EvictOldestHalf deletes the oldest 50% of the namespace by timestamp.
// Unparsable entries count as oldest.
func (p *Persistent) EvictOldestHalf() (int, error) {
	var entries []aged
	err := p.backend.Scan(Namespace, func(key string, value []byte) error {
		var env envelope
		if json.Unmarshal(value, &env) != nil {
			entries = append(entries, aged{key: key})
			return nil
		}
		entries = append(entries, aged{key: key, ts: env.Timestamp})
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	slices.SortStableFunc(entries, func(a, b aged) int {
		switch {
		case a.ts < b.ts:
			return -1
		case a.ts > b.ts:
			return 1
		}
		return strings.Compare(a.key, b.key)
	})

	n := max(len(entries)/2, 1)
	keys := make([]string, n)
	for i := range n {
		keys[i] = entries[i].key
	}
	if err := p.backend.Delete(keys...); err != nil {
		return 0, err
	}
	return n, nil
}

// CleanupStats reports what a Cleanup pass found.
type CleanupStats struct {
	Scanned    int
	Expired    int
	Unparsable int
}

// Removed returns the number of deleted entries.
func (s CleanupStats) Removed() int {
	return s.Expired + s.Unparsable
}

// Cleanup deletes every expired or unparsable entry in the namespace.
// It runs once at startup.
func (p *Persistent) Cleanup(ctx context.Context) (CleanupStats, error) {
	var (
		stats CleanupStats
		stale []string
	)
	err := p.backend.Scan(Namespace, func(key string, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++

		var env envelope
		if err := json.Unmarshal(value, &env); err != nil || len(env.Data) == 0 {
			stats.Unparsable++
			stale = append(stale, key)
			return nil
		}
		if p.expired(env.Timestamp) {
			stats.Expired++
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if len(stale) > 0 {
		if err := p.backend.Delete(stale...); err != nil {
			return stats, err
		}
	}

	p.logger.Info("ratings cache cleanup complete",
		"scanned", stats.Scanned,
		"expired", stats.Expired,
		"unparsable", stats.Unparsable,
	)
	return stats, nil
}

// Usage returns the bytes held by the backend.
func (p *Persistent) Usage() int64 {
	return p.backend.Usage()
}
