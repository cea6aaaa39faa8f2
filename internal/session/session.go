// Package session owns everything one browser's carousel needs: its slides,
// controller, enrichment pipeline and players.
package session

import (
	"context"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/spotlightapp/spotlight-server/internal/cache"
	"github.com/spotlightapp/spotlight-server/internal/carousel"
	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	domainerrors "github.com/spotlightapp/spotlight-server/internal/errors"
	"github.com/spotlightapp/spotlight-server/internal/fetch"
	"github.com/spotlightapp/spotlight-server/internal/navigation"
	"github.com/spotlightapp/spotlight-server/internal/slide"
	"github.com/spotlightapp/spotlight-server/internal/sse"
	"github.com/spotlightapp/spotlight-server/internal/video"
)

// ClientInfo is what the browser reports when it opens a session.
type ClientInfo struct {
	UserAgent    string
	Capabilities navigation.Capabilities
	SavedIndex   int
}

// SlideView is one rendered slide as the browser receives it.
type SlideView struct {
	Position  int              `json:"position"`
	RealIndex int              `json:"real_index"`
	ItemID    string           `json:"item_id"`
	Clone     bool             `json:"clone"`
	HTML      template.HTML    `json:"html"`
	Video     domain.VideoInfo `json:"video"`
}

// State is a snapshot of a session.
type State struct {
	ID              string `json:"session_id"`
	Rendered        bool   `json:"rendered"`
	Count           int    `json:"count"`
	CurrentIndex    int    `json:"current_index"`
	Position        int    `json:"position"`
	AutoplayRunning bool   `json:"autoplay_running"`
	Hovered         bool   `json:"hovered"`
	Muted           bool   `json:"muted"`
	Paused          bool   `json:"paused"`
	Navigator       string `json:"navigator"`
}

// Input actions.
const (
	InputNext       = "next"
	InputPrev       = "prev"
	InputGoTo       = "goto"
	InputHoverEnter = "hover_enter"
	InputHoverLeave = "hover_leave"
)

// Player report states.
const (
	PlayerStarted  = "started"
	PlayerEnded    = "ended"
	PlayerPosition = "position"
	PlayerBlocked  = "blocked"
	PlayerError    = "error"
)

// Session is one browser's carousel.
type Session struct {
	ID string

	m         *Manager
	builder   *slide.Builder
	navigator navigation.Navigator
	reported  string // server id the browser reported
	tier      *cache.Session[any]
	pipeline  *enrichment.Pipeline
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu         sync.Mutex
	lastActive time.Time
	rendered   bool
	items      []domain.MediaItem
	slides     []*domain.Slide
	alive      map[domain.SlideKey]bool
	backlog    map[string]sse.Event // latest patch per slide region
	current    int
	controller *carousel.Controller
	video      *video.Manager
	closed     bool
}

func newSession(m *Manager, sessionID string, info ClientInfo, tier *cache.Session[any]) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:         sessionID,
		m:          m,
		navigator:  navigation.Select(info.Capabilities),
		reported:   info.Capabilities.ReportedServerID,
		tier:       tier,
		logger:     m.logger.With("session_id", sessionID),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: m.clock.Now(),
		alive:      make(map[domain.SlideKey]bool),
		backlog:    make(map[string]sse.Event),
	}
	s.builder = slide.NewBuilder(m.deps.Host, slide.Options{
		ImageWidth:      m.cfg.Spotlight.ImageWidth,
		LogoWidth:       m.cfg.Spotlight.LogoWidth,
		BackgroundColor: m.cfg.Spotlight.BackgroundColor,
		HighlightColor:  m.cfg.Spotlight.HighlightColor,
		VideoEnabled:    m.cfg.Video.Enabled,
		AllowMobile:     m.cfg.Video.AllowMobile,
		UserAgent:       info.UserAgent,
	})
	s.pipeline = enrichment.New(m.deps.Providers, s, enrichment.Options{
		Toggles:   m.cfg.Toggles,
		Overrides: m.deps.Overrides,
		Tiers:     s.tiers(),
		Logger:    s.logger,
	})
	return s
}

func (s *Session) tiers() fetch.Tiers {
	return fetch.Tiers{
		Session:    s.tier,
		Persistent: s.m.deps.Persistent,
		Flight:     s.m.deps.Flight,
		Logger:     s.logger,
	}
}

// load builds the slides, controller and players for items. Callers hold
// s.mu.
func (s *Session) load(items []domain.MediaItem, savedIndex int) {
	s.items = items
	s.slides = s.builder.BuildAll(s.items)
	s.rendered = len(s.items) > 0
	clear(s.alive)
	clear(s.backlog)
	for _, sl := range s.slides {
		s.alive[sl.Key()] = true
	}
	s.current = 0

	cfg := s.m.cfg
	s.controller = carousel.New(carousel.Options{
		Count:              len(s.items),
		SavedIndex:         savedIndex,
		AutoplayInterval:   cfg.Spotlight.AutoplayInterval,
		TransitionDuration: cfg.Spotlight.TransitionDuration,
		WaitForTrailer:     cfg.Video.WaitForTrailerEnd,
		EndAdvanceDelay:    cfg.Video.EndAdvanceDelay,
		Clock:              s.m.clock,
	}, carousel.Hooks{
		OnPosition:    s.onPosition,
		OnIndexChange: s.onIndexChange,
	})

	var segments video.SegmentSource
	if cfg.Video.SponsorBlockEnabled && s.m.deps.Segments != nil {
		segments = s.m.deps.Segments
	}
	var trailers video.TrailerResolver
	if s.m.userID != "" {
		trailers = video.HostTrailers{Host: s.m.deps.Host, UserID: s.m.userID}
	}
	s.video = video.NewManager(video.RemoteFactory{Sender: s}, s.controller, video.Options{
		Muted:          cfg.Video.Muted,
		Volume:         cfg.Video.Volume,
		WaitForTrailer: cfg.Video.WaitForTrailerEnd,
		EndFallback:    cfg.Video.EndFallback,
		Segments:       segments,
		Categories:     cfg.Video.SponsorBlockCategories,
		Trailers:       trailers,
		Tiers:          s.tiers(),
		Clock:          s.m.clock,
		Logger:         s.logger,
	})
}

// start runs the controller outside the lock since its hooks take it.
func (s *Session) start() {
	s.mu.Lock()
	c := s.controller
	rendered := s.rendered
	s.mu.Unlock()
	if rendered {
		c.Start()
	}
}

// Views renders the current slides.
func (s *Session) Views() []SlideView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views()
}

func (s *Session) views() []SlideView {
	views := make([]SlideView, 0, len(s.slides))
	for _, sl := range s.slides {
		html, err := slide.Render(sl)
		if err != nil {
			s.logger.Warn("render failed", "position", sl.Position, "error", err)
			continue
		}
		views = append(views, SlideView{
			Position:  sl.Position,
			RealIndex: sl.RealIndex,
			ItemID:    sl.Item.ID,
			Clone:     sl.Clone,
			HTML:      html,
			Video:     sl.Video,
		})
	}
	return views
}

// Carousel renders the whole widget positioned on the current slide. An
// unrendered session yields "".
func (s *Session) Carousel() (template.HTML, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rendered {
		return "", nil
	}
	return slide.RenderCarousel(s.slides, max(s.current, 1), s.m.cfg.Spotlight.MarginTop)
}

// Rendered reports whether the session has slides to show.
func (s *Session) Rendered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	c, v := s.controller, s.video
	st := State{
		ID:        s.ID,
		Rendered:  s.rendered,
		Count:     len(s.items),
		Navigator: s.navigator.Name(),
	}
	s.mu.Unlock()

	snap := c.Snapshot()
	vs := v.State()
	st.CurrentIndex = snap.RealIndex
	st.Position = snap.Position
	st.AutoplayRunning = snap.AutoplayRunning
	st.Hovered = snap.Hovered
	st.Muted = vs.Muted
	st.Paused = vs.Paused
	return st
}

// Refresh re-selects and rebuilds everything. Players are destroyed and the
// enriched set is cleared; the persistent cache is kept.
func (s *Session) Refresh(ctx context.Context) []SlideView {
	s.touch()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	oldController, oldVideo := s.controller, s.video
	s.mu.Unlock()

	oldController.Stop()
	oldVideo.Teardown()
	s.pipeline.Reset()
	s.tier.Clear()

	items := s.m.source.SelectItems(ctx)

	s.mu.Lock()
	s.load(items, 0)
	views := s.views()
	rendered := s.rendered
	s.mu.Unlock()

	s.m.publish(sse.NewSessionRefreshedEvent(s.ID, rendered, views))
	s.start()
	return views
}

// Input applies a user action to the carousel.
func (s *Session) Input(action string, index int) error {
	s.touch()
	s.mu.Lock()
	c := s.controller
	n := len(s.items)
	s.mu.Unlock()

	switch action {
	case InputNext:
		c.Next()
	case InputPrev:
		c.Prev()
	case InputGoTo:
		if index < 1 || index > n {
			return domainerrors.Validationf("slide index %d out of range 1..%d", index, n)
		}
		c.GoTo(index)
	case InputHoverEnter:
		c.HoverEnter()
	case InputHoverLeave:
		c.HoverLeave()
	default:
		return domainerrors.Validationf("unknown action %q", action)
	}
	return nil
}

// PlayerEvent applies a browser report about a player.
func (s *Session) PlayerEvent(key domain.PlayerKey, state string, position float64) error {
	s.touch()
	v := s.videoManager()
	switch state {
	case PlayerStarted:
		v.Report(key, position, true)
		v.OnStarted(key)
	case PlayerEnded:
		v.Report(key, position, false)
		v.OnEnded(key)
	case PlayerPosition:
		v.Report(key, position, true)
	case PlayerBlocked:
		v.OnBlocked(key)
	case PlayerError:
		v.Report(key, position, false)
		s.logger.Debug("player reported an error", "player_key", key)
	default:
		return domainerrors.Validationf("unknown player state %q", state)
	}
	return nil
}

// SetVideo applies the global mute and pause toggles.
func (s *Session) SetVideo(muted, paused *bool) video.PlaybackState {
	s.touch()
	v := s.videoManager()
	if muted != nil {
		v.SetMuted(*muted)
	}
	if paused != nil && v.State().Paused != *paused {
		v.TogglePause()
	}
	return v.State()
}

// Navigate returns the directive that opens or plays itemID.
func (s *Session) Navigate(itemID string, action navigation.Action) navigation.Directive {
	s.touch()
	s.mu.Lock()
	var itemServer string
	for i := range s.items {
		if s.items[i].ID == itemID {
			itemServer = s.items[i].ServerID
			break
		}
	}
	s.mu.Unlock()

	if action == navigation.ActionPlay || action == navigation.ActionShow {
		s.videoManager().PauseAll()
	}
	serverID := navigation.ResolveServerID(itemServer, s.reported, s.m.serverID)
	if action == navigation.ActionPlay {
		return s.navigator.PlayItem(itemID, serverID)
	}
	return s.navigator.NavigateToItem(itemID, serverID)
}

// Replay returns the latest patches so a new stream can catch up.
func (s *Session) Replay() []sse.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]sse.Event, 0, len(s.backlog))
	for _, ev := range s.backlog {
		events = append(events, ev)
	}
	return events
}

func (s *Session) videoManager() *video.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

func (s *Session) touch() {
	now := s.m.clock.Now()
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// close tears everything down. The persistent cache is untouched.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	c, v := s.controller, s.video
	clear(s.alive)
	s.mu.Unlock()

	c.Stop()
	v.Teardown()
	s.pipeline.Close()
	s.cancel()
	s.wg.Wait()
	s.tier.Close()

	s.mu.Lock()
	s.items, s.slides = nil, nil
	clear(s.backlog)
	s.mu.Unlock()
}

// onPosition forwards ring movement to the browser.
func (s *Session) onPosition(position int, animate bool) {
	s.mu.Lock()
	n := len(s.items)
	s.mu.Unlock()
	s.m.publish(sse.NewCarouselIndexEvent(s.ID, sse.CarouselIndexEventData{
		Position:  position,
		RealIndex: carousel.RealIndex(position, n),
		Animate:   animate,
	}))
}

// onIndexChange enriches the current slide and its neighbours and switches
// the trailer.
func (s *Session) onIndexChange(real int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = real
	n := len(s.items)
	var current *domain.Slide
	for _, sl := range s.slides {
		if sl.Position == real {
			current = sl
			break
		}
	}
	targets := neighbours(real, n)
	items := make([]*domain.MediaItem, len(targets))
	for i, idx := range targets {
		items[i] = &s.items[idx-1]
	}
	v := s.video
	s.mu.Unlock()

	s.m.publish(sse.NewCarouselIndexEvent(s.ID, sse.CarouselIndexEventData{
		Position:  real,
		RealIndex: real,
		Settled:   true,
	}))

	for i, idx := range targets {
		s.pipeline.EnrichSlide(s.ctx, idx, items[i])
	}

	// Player setup may wait on the host, so it runs off the controller.
	s.wg.Go(func() {
		var key domain.PlayerKey
		if current != nil && v.Ensure(s.ctx, current) {
			key = current.PlayerKey()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == real && s.video == v {
			v.Activate(key)
		}
	})
}

// neighbours returns the real index and the ones on either side, once each.
func neighbours(real, n int) []int {
	if n <= 0 {
		return nil
	}
	out := []int{real}
	for _, idx := range []int{carousel.RealIndex(real-1, n), carousel.RealIndex(real+1, n)} {
		dup := false
		for _, seen := range out {
			dup = dup || seen == idx
		}
		if !dup {
			out = append(out, idx)
		}
	}
	return out
}

// Alive reports whether a slide with key is still rendered.
func (s *Session) Alive(key domain.SlideKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive[key]
}

// PatchRatings publishes a ratings patch.
func (s *Session) PatchRatings(p enrichment.RatingsPatch) {
	s.record("ratings|"+string(p.SlideKey)+"|"+p.Provider, sse.NewRatingsEvent(s.ID, p))
}

// UpgradeBadge publishes a badge upgrade.
func (s *Session) UpgradeBadge(u enrichment.BadgeUpgrade) {
	s.record("upgrade|"+string(u.SlideKey)+"|"+u.Provider, sse.NewBadgeUpgradedEvent(s.ID, u))
}

// PatchAwards publishes an awards patch.
func (s *Session) PatchAwards(p enrichment.AwardsPatch) {
	s.record("awards|"+string(p.SlideKey), sse.NewAwardsEvent(s.ID, p))
}

func (s *Session) record(region string, ev sse.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.backlog[region] = ev
	s.mu.Unlock()
	s.m.publish(ev)
}

// SendCommand publishes a player command.
func (s *Session) SendCommand(cmd video.Command) {
	s.m.publish(sse.NewVideoCommandEvent(s.ID, cmd))
}
