package video

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/spotlightapp/spotlight-server/internal/clock"
	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/fetch"
)

// DefaultPollInterval is how often the skip-segment poll samples the
// playback position.
const DefaultPollInterval = 500 * time.Millisecond

// Autoplay is the part of the carousel the manager drives.
type Autoplay interface {
	VideoStarted()
	VideoEnded()
}

// SegmentSource looks up skippable trailer segments.
type SegmentSource interface {
	Segments(ctx context.Context, videoID string, categories []string) ([]domain.SkipSegment, error)
}

// Options configures a Manager.
type Options struct {
	Muted          bool
	Volume         int
	WaitForTrailer bool
	EndFallback    time.Duration // advance anyway when no end report arrives; 0 disables
	PollInterval   time.Duration

	Segments   SegmentSource // nil disables segment skipping
	Categories []string
	Trailers   TrailerResolver // nil keeps the builder's native URL

	Tiers  fetch.Tiers
	Clock  clock.Clock
	Logger *slog.Logger
}

type player struct {
	p     Player
	video domain.VideoInfo

	retried  bool
	fallback clock.Timer
	poll     clock.Timer
	pollGen  int
	segments []domain.SkipSegment
}

// PlaybackState is the global playback state.
type PlaybackState struct {
	Muted   bool             `json:"muted"`
	Paused  bool             `json:"paused"`
	Current domain.PlayerKey `json:"current,omitempty"`
	Players int              `json:"players"`
}

// Manager owns every player of one session.
type Manager struct {
	factory  PlayerFactory
	autoplay Autoplay
	opts     Options
	clock    clock.Clock
	logger   *slog.Logger
	segments *fetch.Memo[[]domain.SkipSegment]

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu      sync.Mutex
	players map[domain.PlayerKey]*player
	current domain.PlayerKey
	muted   bool
	paused  bool
	closed  bool
}

// NewManager creates a manager. autoplay may be nil.
func NewManager(factory PlayerFactory, autoplay Autoplay, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Tiers.Logger == nil {
		opts.Tiers.Logger = opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory:  factory,
		autoplay: autoplay,
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger,
		segments: fetch.NewMemo[[]domain.SkipSegment]("sponsorblock", opts.Tiers),
		ctx:      ctx,
		cancel:   cancel,
		players:  make(map[domain.PlayerKey]*player),
		muted:    opts.Muted,
	}
}

// Ensure creates the slide's player the first time it is needed. It
// reports whether the slide has a player.
func (m *Manager) Ensure(ctx context.Context, s *domain.Slide) bool {
	if s == nil || s.Item == nil || !s.HasVideo || !s.Video.Attempt {
		return false
	}
	key := s.PlayerKey()

	m.mu.Lock()
	_, exists := m.players[key]
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return false
	}
	if exists {
		return true
	}

	video := s.Video
	if video.Source == domain.VideoNative && m.opts.Trailers != nil {
		if u, err := m.opts.Trailers.ResolveTrailer(ctx, s.Item.ID); err == nil {
			video.URL = u
		} else {
			m.logger.Debug("local trailer not resolved, using item stream",
				"item_id", s.Item.ID, "error", err)
		}
	}

	p, err := m.factory.NewPlayer(key, s, video)
	if err != nil {
		m.logger.Warn("player creation failed", "player_key", key, "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, raced := m.players[key]; raced || m.closed {
		p.Destroy()
		return !m.closed
	}
	p.SetMuted(m.muted)
	p.SetVolume(m.opts.Volume)
	m.players[key] = &player{p: p, video: video}
	s.VideoSetup = true
	return true
}

// Activate makes key the current player and plays it. Every other player
// is paused. An unknown key only pauses the others.
func (m *Manager) Activate(key domain.PlayerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for k, pl := range m.players {
		if k != key {
			m.quiet(pl)
			pl.p.Pause()
		}
	}
	m.current = key
	pl, ok := m.players[key]
	if !ok || m.paused {
		return
	}
	pl.retried = false
	m.play(key, pl)
}

// play starts pl with the global mute state, retrying muted when the
// browser blocks it.
func (m *Manager) play(key domain.PlayerKey, pl *player) {
	pl.p.SetMuted(m.muted)
	pl.p.SetVolume(m.opts.Volume)
	if err := pl.p.Play(); errors.Is(err, ErrAutoplayBlocked) {
		m.retryMuted(key, pl)
	} else if err != nil {
		m.logger.Debug("play failed", "player_key", key, "error", err)
	}
}

func (m *Manager) retryMuted(key domain.PlayerKey, pl *player) {
	if pl.retried {
		return
	}
	pl.retried = true
	m.logger.Debug("autoplay blocked, retrying muted", "player_key", key)
	pl.p.SetMuted(true)
	if err := pl.p.Play(); err != nil {
		m.logger.Debug("muted play failed", "player_key", key, "error", err)
	}
}

// OnBlocked handles a browser report that unmuted playback was refused.
func (m *Manager) OnBlocked(key domain.PlayerKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pl, ok := m.players[key]; ok && key == m.current && !m.closed {
		m.retryMuted(key, pl)
	}
}

// OnStarted handles the start of playback: the video fades in, autoplay
// waits for the trailer when configured, and segment skipping begins.
func (m *Manager) OnStarted(key domain.PlayerKey) {
	m.mu.Lock()
	pl, ok := m.players[key]
	if !ok || key != m.current || m.closed {
		m.mu.Unlock()
		return
	}
	pl.p.Show()
	wait := m.opts.WaitForTrailer && m.autoplay != nil
	if wait && m.opts.EndFallback > 0 {
		if pl.fallback != nil {
			pl.fallback.Stop()
		}
		pl.fallback = m.clock.AfterFunc(m.opts.EndFallback, func() {
			m.logger.Debug("no end report, advancing", "player_key", key)
			m.OnEnded(key)
		})
	}
	m.startPoll(key, pl)
	m.mu.Unlock()

	if wait {
		m.autoplay.VideoStarted()
	}
}

// OnEnded handles the end of playback.
func (m *Manager) OnEnded(key domain.PlayerKey) {
	m.mu.Lock()
	pl, ok := m.players[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.quiet(pl)
	advance := m.opts.WaitForTrailer && m.autoplay != nil && key == m.current && !m.closed
	if !advance {
		m.paused = false
	}
	m.mu.Unlock()

	if advance {
		m.autoplay.VideoEnded()
	}
}

// Report forwards a position report to a remote player.
func (m *Manager) Report(key domain.PlayerKey, position float64, playing bool) {
	m.mu.Lock()
	pl, ok := m.players[key]
	m.mu.Unlock()
	if !ok {
		return
	}
	if r, ok := pl.p.(interface{ Report(float64, bool) }); ok {
		r.Report(position, playing)
	}
}

// PauseAll pauses every player.
func (m *Manager) PauseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pl := range m.players {
		m.quiet(pl)
		pl.p.Pause()
	}
}

// SetMuted sets the global mute state on every player.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	for _, pl := range m.players {
		pl.p.SetMuted(muted)
	}
}

// TogglePause pauses or resumes the current player and returns the new
// paused state. The state carries over to later slides.
func (m *Manager) TogglePause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = !m.paused
	pl, ok := m.players[m.current]
	if !ok {
		return m.paused
	}
	if m.paused {
		m.quiet(pl)
		pl.p.Pause()
	} else {
		m.play(m.current, pl)
		m.startPoll(m.current, pl)
	}
	return m.paused
}

// State returns the global playback state.
func (m *Manager) State() PlaybackState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PlaybackState{Muted: m.muted, Paused: m.paused, Current: m.current, Players: len(m.players)}
}

// Teardown stops every timer and poll and destroys every player.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for key, pl := range m.players {
		m.quiet(pl)
		pl.p.Destroy()
		delete(m.players, key)
	}
	m.current = ""
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// quiet stops pl's timers. Callers hold m.mu.
func (m *Manager) quiet(pl *player) {
	if pl.fallback != nil {
		pl.fallback.Stop()
		pl.fallback = nil
	}
	if pl.poll != nil {
		pl.poll.Stop()
		pl.poll = nil
	}
	pl.pollGen++
}

// startPoll loads skip segments in the background and samples the
// position every poll interval. Callers hold m.mu.
func (m *Manager) startPoll(key domain.PlayerKey, pl *player) {
	if m.opts.Segments == nil || pl.video.Source != domain.VideoYouTube || pl.video.VideoID == "" {
		return
	}
	if pl.poll != nil {
		pl.poll.Stop()
	}
	pl.pollGen++
	gen := pl.pollGen

	if pl.segments == nil {
		videoID := pl.video.VideoID
		m.wg.Go(func() {
			segs, found := m.segments.Do(m.ctx, "sponsorblock:"+videoID, func(ctx context.Context) ([]domain.SkipSegment, bool, error) {
				s, err := m.opts.Segments.Segments(ctx, videoID, m.opts.Categories)
				return s, len(s) > 0, err
			})
			if !found {
				segs = []domain.SkipSegment{}
			}
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.players[key] == pl && pl.segments == nil {
				pl.segments = segs
			}
		})
	}
	pl.poll = m.clock.AfterFunc(m.opts.PollInterval, func() { m.tick(key, pl, gen) })
}

// tick seeks past a skip segment containing the current position. The poll
// ends when the player is gone, unreachable or no longer playing.
func (m *Manager) tick(key domain.PlayerKey, pl *player, gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || pl.pollGen != gen || m.players[key] != pl {
		return
	}
	pos, ok := pl.p.CurrentTime()
	if !ok || !pl.p.Playing() {
		pl.poll = nil
		return
	}
	for _, seg := range pl.segments {
		if pos >= seg.Start && pos < seg.End {
			m.logger.Debug("skipping segment",
				"player_key", key, "category", seg.Category, "from", pos, "to", seg.End)
			pl.p.Seek(seg.End)
			break
		}
	}
	pl.poll = m.clock.AfterFunc(m.opts.PollInterval, func() { m.tick(key, pl, gen) })
}
