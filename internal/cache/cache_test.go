package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type payload struct {
	Score int    `json:"score"`
	Badge string `json:"badge"`
}

func setupPersistent(t *testing.T, quota int64) (*Persistent, *MemoryBackend, *fakeClock) {
	t.Helper()
	backend := NewMemoryBackend(quota)
	clock := newFakeClock()
	return NewPersistent(backend, time.Hour, nil, WithClock(clock.Now)), backend, clock
}

func TestPersistent_RoundTrip(t *testing.T) {
	p, backend, _ := setupPersistent(t, 0)

	require.True(t, p.Set(Key("mdblist", "movie", "603"), payload{Score: 88, Badge: "rt-fresh"}))

	var got payload
	require.True(t, p.Get("mdblist:movie:603", &got))
	assert.Equal(t, payload{Score: 88, Badge: "rt-fresh"}, got)

	raw, ok, err := backend.Get("spotlight:mdblist:movie:603")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"timestamp":`)
	assert.Contains(t, string(raw), `"data":{"score":88`)
}

func TestPersistent_ExpiredEntryIsAbsentAndRemoved(t *testing.T) {
	p, backend, clock := setupPersistent(t, 0)
	require.True(t, p.Set("awards:tt0133093", payload{Score: 1}))

	clock.Advance(59 * time.Minute)
	var got payload
	assert.True(t, p.Get("awards:tt0133093", &got))

	clock.Advance(2 * time.Minute)
	assert.False(t, p.Get("awards:tt0133093", &got))
	assert.Equal(t, 0, backend.Len())
}

func TestPersistent_NegativeResultsRoundTrip(t *testing.T) {
	p, _, _ := setupPersistent(t, 0)
	require.True(t, p.Set("anilist-xref:tt0000001", (*int)(nil)))

	var got *int
	assert.True(t, p.Get("anilist-xref:tt0000001", &got))
	assert.Nil(t, got)
}

func TestPersistent_UnparsableEntryIsDropped(t *testing.T) {
	p, backend, _ := setupPersistent(t, 0)
	require.NoError(t, backend.Set("spotlight:rt-slug:tt1", []byte("not json")))

	var got string
	assert.False(t, p.Get("rt-slug:tt1", &got))
	assert.Equal(t, 0, backend.Len())
}

func TestPersistent_QuotaEvictsOldestHalfAndRetries(t *testing.T) {
	p, backend, clock := setupPersistent(t, 0)
	for i := range 6 {
		require.True(t, p.Set(fmt.Sprintf("k%d", i), payload{Score: i}))
		clock.Advance(time.Second)
	}

	backend.FailNextWrites(1)
	require.True(t, p.Set("fresh", payload{Score: 99}))

	// 6 entries, oldest 3 evicted, then the retry stored one more.
	assert.Equal(t, 4, backend.Len())
	var got payload
	for i := range 3 {
		assert.False(t, p.Get(fmt.Sprintf("k%d", i), &got), "k%d should be evicted", i)
	}
	for i := 3; i < 6; i++ {
		assert.True(t, p.Get(fmt.Sprintf("k%d", i), &got), "k%d should survive", i)
	}
	assert.True(t, p.Get("fresh", &got))
}

func TestPersistent_SecondQuotaFailureIsDropped(t *testing.T) {
	p, backend, _ := setupPersistent(t, 0)
	require.True(t, p.Set("a", payload{}))
	require.True(t, p.Set("b", payload{}))

	backend.FailNextWrites(2)
	assert.False(t, p.Set("c", payload{}))

	var got payload
	assert.False(t, p.Get("c", &got))
}

func TestPersistent_RealQuota(t *testing.T) {
	p, backend, clock := setupPersistent(t, 400)
	for i := range 20 {
		p.Set(fmt.Sprintf("entry-%02d", i), payload{Score: i, Badge: "metacritic-mustsee"})
		clock.Advance(time.Second)
		assert.LessOrEqual(t, backend.Usage(), int64(400))
	}

	var got payload
	assert.True(t, p.Get("entry-19", &got), "newest entry always fits after eviction")
}

func TestPersistent_Cleanup(t *testing.T) {
	p, backend, clock := setupPersistent(t, 0)
	require.True(t, p.Set("old", payload{}))
	clock.Advance(2 * time.Hour)
	require.True(t, p.Set("new", payload{}))
	require.NoError(t, backend.Set("spotlight:broken", []byte("{")))
	require.NoError(t, backend.Set("other:untouched", []byte("{")))

	stats, err := p.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupStats{Scanned: 3, Expired: 1, Unparsable: 1}, stats)
	assert.Equal(t, 2, stats.Removed())

	_, ok, _ := backend.Get("spotlight:new")
	assert.True(t, ok)
	_, ok, _ = backend.Get("other:untouched")
	assert.True(t, ok, "keys outside the namespace are left alone")
}

func TestPersistent_DeleteMissingKey(t *testing.T) {
	p, _, _ := setupPersistent(t, 0)
	assert.NotPanics(t, func() { p.Delete("nope") })
}

func TestMemoryBackend_QuotaAccounting(t *testing.T) {
	m := NewMemoryBackend(20)
	require.NoError(t, m.Set("k", []byte("0123456789")))
	assert.Equal(t, int64(11), m.Usage())

	// Overwriting counts only the delta.
	require.NoError(t, m.Set("k", []byte("0123456789abcdefgh")))
	assert.Equal(t, int64(19), m.Usage())

	assert.ErrorIs(t, m.Set("j", []byte("xx")), ErrQuotaExceeded)

	require.NoError(t, m.Delete("k", "missing"))
	assert.Equal(t, int64(0), m.Usage())
}
