package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlightapp/spotlight-server/internal/clock"
	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/emby"
	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	domainerrors "github.com/spotlightapp/spotlight-server/internal/errors"
	"github.com/spotlightapp/spotlight-server/internal/navigation"
	"github.com/spotlightapp/spotlight-server/internal/sse"
	"github.com/spotlightapp/spotlight-server/internal/video"
)

// fakeHost hands out its own items slice on every query, the way a caching
// host client might.
type fakeHost struct {
	items []domain.MediaItem
	fail  bool
}

func (h *fakeHost) CurrentUserID(context.Context) (string, error) { return "user-1", nil }

func (h *fakeHost) GetItems(_ context.Context, _ string, q emby.ItemsQuery) ([]domain.MediaItem, error) {
	if h.fail {
		return nil, errors.New("host down")
	}
	return h.items, nil
}

func (h *fakeHost) GetItem(_ context.Context, _, itemID string) (*domain.MediaItem, error) {
	for i := range h.items {
		if h.items[i].ID == itemID {
			return &h.items[i], nil
		}
	}
	return nil, emby.ErrNotFound
}

func (h *fakeHost) LookupByProviderID(context.Context, string, string) ([]domain.MediaItem, error) {
	return nil, nil
}

func (h *fakeHost) GetChildren(context.Context, string, string) ([]domain.MediaItem, error) {
	return nil, nil
}

func (h *fakeHost) LocalTrailers(context.Context, string, string) ([]domain.MediaItem, error) {
	return nil, nil
}

func (h *fakeHost) ImageURL(itemID string, opts emby.ImageOptions) string {
	return "http://emby.local/Items/" + itemID + "/Images/" + opts.Type
}

func (h *fakeHost) StreamURL(itemID string) string {
	return "http://emby.local/Videos/" + itemID + "/stream"
}

type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Emit(ev sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) ratedKeys() map[domain.SlideKey]bool {
	keys := make(map[domain.SlideKey]bool)
	for _, ev := range r.ofType(sse.EventSlideRatings) {
		keys[ev.Data.(enrichment.RatingsPatch).SlideKey] = true
	}
	return keys
}

func hostItems(n int) []domain.MediaItem {
	items := make([]domain.MediaItem, n)
	for i := range items {
		critic := 72.0
		items[i] = domain.MediaItem{
			ID:           fmt.Sprintf("item-%02d", i+1),
			ServerID:     "srv-item",
			Name:         fmt.Sprintf("Movie %d", i+1),
			Type:         domain.ItemMovie,
			CriticRating: &critic,
		}
	}
	return items
}

const transition = 300 * time.Millisecond

func newTestManager(t *testing.T, host *fakeHost, mod func(*Config)) (*Manager, *recorder, *clock.Fake) {
	t.Helper()
	rec := &recorder{}
	fc := clock.NewFake()
	cfg := Config{
		Spotlight: config.SpotlightConfig{
			Limit:              10,
			CandidateLimit:     50,
			AutoplayInterval:   8 * time.Second,
			TransitionDuration: transition,
		},
		Toggles:  enrichment.AllEnabled(),
		ServerID: "srv-config",
	}
	if mod != nil {
		mod(&cfg)
	}
	m := NewManager(cfg, Deps{Host: host, Publisher: rec, Clock: fc})
	t.Cleanup(m.Shutdown)
	return m, rec, fc
}

func keysFor(s *Session, indices ...int) map[domain.SlideKey]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make(map[domain.SlideKey]bool)
	for _, idx := range indices {
		keys[domain.NewSlideKey(idx, s.items[idx-1].ID)] = true
	}
	return keys
}

func TestCreate_EnrichesCurrentAndNeighboursOnly(t *testing.T) {
	m, rec, _ := newTestManager(t, &fakeHost{items: hostItems(50)}, nil)

	s, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)
	require.True(t, s.Rendered())

	views := s.Views()
	require.Len(t, views, 12, "ten slides plus two sentinels")
	seen := make(map[string]bool)
	for _, v := range views {
		if !v.Clone {
			assert.False(t, seen[v.ItemID], "duplicate item %s", v.ItemID)
			seen[v.ItemID] = true
		}
		assert.Regexp(t, `<div class="spotlight-ratings" id="[^"]+"></div>`, string(v.HTML), "slides render without badges")
	}
	assert.Len(t, seen, 10)

	want := keysFor(s, 1, 2, 10)
	require.Eventually(t, func() bool { return len(rec.ratedKeys()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.ratedKeys())

	patch := rec.ofType(sse.EventSlideRatings)[0].Data.(enrichment.RatingsPatch)
	require.Len(t, patch.Records, 1)
	assert.Equal(t, domain.BadgeRTFresh, patch.Records[0].Badge)

	st := s.State()
	assert.Equal(t, 1, st.CurrentIndex)
	assert.True(t, st.AutoplayRunning)
	assert.Equal(t, 10, st.Count)
}

func TestCreate_EmptyHost(t *testing.T) {
	m, rec, _ := newTestManager(t, &fakeHost{fail: true}, nil)

	s, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)
	assert.False(t, s.Rendered())
	assert.Empty(t, s.Views())
	assert.Zero(t, s.State().CurrentIndex)
	assert.Empty(t, rec.ofType(sse.EventCarouselIndex))
}

func TestInput_AdvancesAndEnrichesNewNeighbour(t *testing.T) {
	m, rec, fc := newTestManager(t, &fakeHost{items: hostItems(50)}, nil)
	s, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.ratedKeys()) == 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Input(InputNext, 0))
	fc.Advance(transition)

	assert.Equal(t, 2, s.State().CurrentIndex)
	require.Eventually(t, func() bool { return len(rec.ratedKeys()) == 4 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, rec.ratedKeys()[domain.NewSlideKey(3, s.items[2].ID)])

	settled := 0
	for _, ev := range rec.ofType(sse.EventCarouselIndex) {
		if ev.Data.(sse.CarouselIndexEventData).Settled {
			settled++
		}
	}
	assert.Equal(t, 2, settled)
}

func TestInput_Validation(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeHost{items: hostItems(3)}, nil)
	s, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)

	assert.True(t, domainerrors.Is(s.Input("spin", 0), domainerrors.ErrValidation))
	assert.True(t, domainerrors.Is(s.Input(InputGoTo, 4), domainerrors.ErrValidation))
	assert.NoError(t, s.Input(InputGoTo, 3))
	assert.NoError(t, s.Input(InputHoverEnter, 0))
	assert.True(t, s.State().Hovered)
	assert.True(t, domainerrors.Is(s.PlayerEvent("x", "dancing", 0), domainerrors.ErrValidation))
}

func TestRefresh(t *testing.T) {
	host := &fakeHost{items: hostItems(50)}
	hostOrder := slices.Clone(host.items)
	m, rec, _ := newTestManager(t, host, nil)
	s, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.ratedKeys()) == 3 }, 2*time.Second, 5*time.Millisecond)

	views := s.Refresh(context.Background())
	assert.Equal(t, hostOrder, host.items, "selection shuffles its own copy")
	assert.Len(t, views, 12)

	refreshed := rec.ofType(sse.EventSessionRefreshed)
	require.Len(t, refreshed, 1)
	assert.True(t, refreshed[0].Data.(sse.SessionRefreshedEventData).Rendered)

	// The enriched set and the backlog were cleared, so the new current slide
	// and its neighbours are patched again.
	require.Eventually(t, func() bool { return len(s.Replay()) == 3 }, 2*time.Second, 5*time.Millisecond)
	for _, ev := range s.Replay() {
		assert.Equal(t, sse.EventSlideRatings, ev.Type)
	}
}

func TestClose(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeHost{items: hostItems(5)}, nil)
	s, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(s.ID))
	_, err = m.Get(s.ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	assert.True(t, domainerrors.Is(m.Close(s.ID), domainerrors.ErrNotFound))
	_, ok := m.Replay(s.ID)
	assert.False(t, ok)
	assert.False(t, s.Alive(domain.NewSlideKey(1, "item-01")))
}

func TestReap(t *testing.T) {
	m, _, fc := newTestManager(t, &fakeHost{items: hostItems(2)}, nil)
	idle, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)

	fc.Advance(20 * time.Minute)
	active, err := m.Create(context.Background(), ClientInfo{})
	require.NoError(t, err)

	fc.Advance(11 * time.Minute)
	assert.Equal(t, 1, m.Reap())
	_, err = m.Get(idle.ID)
	assert.Error(t, err)
	_, err = m.Get(active.ID)
	assert.NoError(t, err)
}

func TestNavigate(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeHost{items: hostItems(3)}, nil)
	s, err := m.Create(context.Background(), ClientInfo{
		Capabilities: navigation.Capabilities{Dashboard: true, ReportedServerID: "srv-browser"},
	})
	require.NoError(t, err)

	d := s.Navigate("item-01", navigation.ActionShow)
	assert.Equal(t, "dashboard", d.Navigator)
	assert.Equal(t, "srv-item", d.ServerID)
	assert.Equal(t, "item?id=item-01&serverId=srv-item", d.Path)

	d = s.Navigate("elsewhere", navigation.ActionPlay)
	assert.Equal(t, "srv-browser", d.ServerID)
	assert.Equal(t, navigation.ActionPlay, d.Action)
}

func TestVideo_CommandsReachTheBrowser(t *testing.T) {
	items := hostItems(3)
	for i := range items {
		items[i].RemoteTrailers = []domain.RemoteTrailer{{URL: "https://youtu.be/vKQi3bBA1y8"}}
	}
	m, rec, _ := newTestManager(t, &fakeHost{items: items}, func(c *Config) {
		c.Video = config.VideoConfig{Enabled: true, Muted: true, Volume: 30}
	})
	s, err := m.Create(context.Background(), ClientInfo{UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"})
	require.NoError(t, err)

	actions := func() []video.Action {
		var out []video.Action
		for _, ev := range rec.ofType(sse.EventVideoCommand) {
			out = append(out, ev.Data.(video.Command).Action)
		}
		return out
	}
	require.Eventually(t, func() bool {
		a := actions()
		return len(a) > 0 && a[len(a)-1] == video.ActionPlay
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, video.ActionCreate, actions()[0])

	current := s.State()
	require.Equal(t, 1, current.CurrentIndex)
	key := domain.PlayerKey(s.items[0].ID)
	require.NoError(t, s.PlayerEvent(key, PlayerStarted, 0))
	assert.Contains(t, actions(), video.ActionShow)

	st := s.SetVideo(new(false), nil)
	assert.False(t, st.Muted)
	st = s.SetVideo(nil, new(true))
	assert.True(t, st.Paused)
	assert.True(t, s.State().Paused)

	for _, ev := range rec.ofType(sse.EventVideoCommand) {
		assert.True(t, strings.HasPrefix(string(ev.Data.(video.Command).PlayerKey), "item-"))
	}
}

func TestNeighbours(t *testing.T) {
	assert.Equal(t, []int{1, 10, 2}, neighbours(1, 10))
	assert.Equal(t, []int{10, 9, 1}, neighbours(10, 10))
	assert.Equal(t, []int{1, 2}, neighbours(1, 2))
	assert.Equal(t, []int{1}, neighbours(1, 1))
	assert.Nil(t, neighbours(1, 0))
}
