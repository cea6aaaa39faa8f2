package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBadger(t *testing.T, quota int64) *BadgerBackend {
	t.Helper()
	b, err := OpenBadger(BadgerOptions{Path: filepath.Join(t.TempDir(), "cache"), QuotaBytes: quota}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerBackend_GetSetDelete(t *testing.T) {
	b := setupBadger(t, 0)

	_, ok, err := b.Get("spotlight:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set("spotlight:a", []byte("1")))
	got, ok, err := b.Get("spotlight:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, b.Delete("spotlight:a", "spotlight:missing"))
	_, ok, err = b.Get("spotlight:a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), b.Usage())
}

func TestBadgerBackend_Quota(t *testing.T) {
	b := setupBadger(t, 32)
	require.NoError(t, b.Set("k1", []byte("0123456789")))
	require.NoError(t, b.Set("k2", []byte("0123456789")))
	assert.ErrorIs(t, b.Set("k3", []byte("0123456789")), ErrQuotaExceeded)
	assert.Equal(t, int64(24), b.Usage())
}

func TestBadgerBackend_ScanPrefix(t *testing.T) {
	b := setupBadger(t, 0)
	require.NoError(t, b.Set("spotlight:b", []byte("2")))
	require.NoError(t, b.Set("spotlight:a", []byte("1")))
	require.NoError(t, b.Set("other:c", []byte("3")))

	var keys []string
	require.NoError(t, b.Scan(Namespace, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"spotlight:a", "spotlight:b"}, keys)
}

func TestBadgerBackend_UsageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	b, err := OpenBadger(BadgerOptions{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Set("spotlight:a", []byte("12345")))
	require.NoError(t, b.Close())

	b, err = OpenBadger(BadgerOptions{Path: path}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(len("spotlight:a")+5), b.Usage())
}

func TestPersistent_OverBadger(t *testing.T) {
	clock := newFakeClock()
	p := NewPersistent(setupBadger(t, 0), time.Hour, nil, WithClock(clock.Now))

	for i := range 4 {
		require.True(t, p.Set(fmt.Sprintf("sponsorblock:v%d", i), []int{i}))
	}
	clock.Advance(2 * time.Hour)
	require.True(t, p.Set("sponsorblock:live", []int{9}))

	stats, err := p.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Expired)

	var got []int
	assert.True(t, p.Get("sponsorblock:live", &got))
	assert.Equal(t, []int{9}, got)
}
