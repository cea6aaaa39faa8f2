package itemsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/emby"
	"github.com/spotlightapp/spotlight-server/internal/watcher"
)

type fakeHost struct {
	mu       sync.Mutex
	items    []domain.MediaItem
	byID     map[string]domain.MediaItem
	byIMDb   map[string][]domain.MediaItem
	children map[string][]domain.MediaItem
	err      error
	queries  []emby.ItemsQuery
	shared   bool // return items itself rather than a copy
}

func (h *fakeHost) CurrentUserID(context.Context) (string, error) {
	return "user-1", nil
}

func (h *fakeHost) GetItems(_ context.Context, _ string, q emby.ItemsQuery) ([]domain.MediaItem, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, q)
	if h.err != nil {
		return nil, h.err
	}
	if h.shared {
		return h.items, nil
	}
	return slices.Clone(h.items), nil
}

func (h *fakeHost) GetItem(_ context.Context, _, id string) (*domain.MediaItem, error) {
	item, ok := h.byID[id]
	if !ok {
		return nil, emby.ErrNotFound
	}
	return &item, nil
}

func (h *fakeHost) LookupByProviderID(_ context.Context, _, ref string) ([]domain.MediaItem, error) {
	return h.byIMDb[ref], nil
}

func (h *fakeHost) GetChildren(_ context.Context, _, parentID string) ([]domain.MediaItem, error) {
	return h.children[parentID], nil
}

func hostItems(n int) []domain.MediaItem {
	items := make([]domain.MediaItem, n)
	for i := range items {
		items[i] = domain.MediaItem{ID: "item-" + strconv.Itoa(i), Name: "Item " + strconv.Itoa(i), Type: domain.ItemMovie}
	}
	return items
}

func TestSelectItems_LimitAndDistinct(t *testing.T) {
	items := hostItems(50)
	items = append(items, items[3], items[7]) // host duplicates
	host := &fakeHost{items: items}
	src := New(host, Options{Limit: 10})

	got := src.SelectItems(context.Background())
	require.Len(t, got, 10)

	seen := map[string]bool{}
	for _, item := range got {
		assert.False(t, seen[item.ID], "duplicate %s", item.ID)
		seen[item.ID] = true
	}

	require.Len(t, host.queries, 1)
	q := host.queries[0]
	assert.Equal(t, DefaultCandidateLimit, q.Limit)
	assert.Equal(t, []string{"Movie", "Series"}, q.IncludeItemTypes)
	assert.Nil(t, q.IsPlayed)
}

func TestSelectItems_LeavesHostSliceUntouched(t *testing.T) {
	items := hostItems(20)
	items = append(items, items[0])
	host := &fakeHost{items: items, shared: true}
	src := New(host, Options{Limit: 5})

	want := slices.Clone(items)
	for range 10 {
		require.Len(t, src.SelectItems(context.Background()), 5)
	}
	assert.Equal(t, want, host.items)
}

func TestSelectItems_UnwatchedOnly(t *testing.T) {
	host := &fakeHost{items: hostItems(3)}
	got := New(host, Options{Limit: 10, UnwatchedOnly: true}).SelectItems(context.Background())

	assert.Len(t, got, 3)
	require.NotNil(t, host.queries[0].IsPlayed)
	assert.False(t, *host.queries[0].IsPlayed)
}

func TestSelectItems_HostFailureIsEmpty(t *testing.T) {
	host := &fakeHost{err: errors.New("connection refused")}
	got := New(host, Options{}).SelectItems(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSelectItems_AllowList(t *testing.T) {
	host := &fakeHost{
		byID: map[string]domain.MediaItem{
			"a":   {ID: "a", Type: domain.ItemMovie},
			"box": {ID: "box", Type: domain.ItemBoxSet},
		},
		byIMDb: map[string][]domain.MediaItem{
			"imdb.tt0133093": {{ID: "matrix", Type: domain.ItemMovie}},
		},
		children: map[string][]domain.MediaItem{
			"box": {{ID: "b1", Type: domain.ItemMovie}, {ID: "a", Type: domain.ItemMovie}},
		},
	}
	allow := StaticAllowList("a", "tt0133093", "missing", "box")
	got := New(host, Options{Limit: 10, AllowList: allow}).SelectItems(context.Background())

	var ids []string
	for _, item := range got {
		ids = append(ids, item.ID)
	}
	assert.ElementsMatch(t, []string{"a", "matrix", "b1"}, ids)
	assert.Empty(t, host.queries, "allow-list must not run the candidate query")
}

func TestShuffle_IsPermutation(t *testing.T) {
	s := make([]int, 100)
	for i := range s {
		s[i] = i
	}
	orig := slices.Clone(s)

	Shuffle(s)
	assert.ElementsMatch(t, orig, s)

	var empty []int
	Shuffle(empty)
	one := []int{1}
	Shuffle(one)
	assert.Equal(t, []int{1}, one)
}

func TestParseAllowList(t *testing.T) {
	ids := ParseAllowList([]byte(`
# favourites
  tt0133093
abc123   # trailing comment

tt0133093
	def456
`))
	assert.Equal(t, []string{"tt0133093", "abc123", "def456"}, ids)
}

func TestAllowList_MissingFile(t *testing.T) {
	l, err := LoadAllowList(filepath.Join(t.TempDir(), "none.txt"), nil)
	require.NoError(t, err)
	assert.Empty(t, l.IDs())

	var nilList *AllowList
	assert.Empty(t, nilList.IDs())
}

func TestAllowList_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0o644))

	l, err := LoadAllowList(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Watch(watcher.Options{SettleDelay: 20 * time.Millisecond}))
	t.Cleanup(func() { _ = l.Close() })
	assert.Equal(t, []string{"one"}, l.IDs())

	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o644))
	require.Eventually(t, func() bool {
		return len(l.IDs()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return len(l.IDs()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
