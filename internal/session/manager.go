package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/cache"
	"github.com/spotlightapp/spotlight-server/internal/clock"
	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	domainerrors "github.com/spotlightapp/spotlight-server/internal/errors"
	"github.com/spotlightapp/spotlight-server/internal/id"
	"github.com/spotlightapp/spotlight-server/internal/itemsource"
	"github.com/spotlightapp/spotlight-server/internal/slide"
	"github.com/spotlightapp/spotlight-server/internal/sse"
	"github.com/spotlightapp/spotlight-server/internal/video"
)

// DefaultIdleTTL is how long a session lives without requests.
const DefaultIdleTTL = 30 * time.Minute

// reapInterval is how often idle sessions are looked for.
const reapInterval = time.Minute

// Host is the host API surface sessions use; *emby.Client implements it.
type Host interface {
	itemsource.Host
	slide.Images
	video.TrailerHost
}

// Publisher delivers events to session streams; *sse.Manager implements it.
type Publisher interface {
	Emit(event sse.Event)
}

// Config is the per-session configuration.
type Config struct {
	Spotlight      config.SpotlightConfig
	Video          config.VideoConfig
	Toggles        enrichment.Toggles
	ServerID       string // configured fallback for navigation
	IdleTTL        time.Duration
	SessionEntries int
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Host       Host
	AllowList  *itemsource.AllowList
	Providers  enrichment.Providers
	Overrides  badge.Overrides
	Persistent *cache.Persistent // nil keeps lookups in memory only
	Flight     *singleflight.Group
	Segments   video.SegmentSource
	Publisher  Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Manager creates, finds and tears down sessions.
type Manager struct {
	cfg    Config
	deps   Deps
	source *itemsource.Source
	clock  clock.Clock
	logger *slog.Logger

	// resolved once from the host
	userID   string
	serverID string
	resolve  sync.Once

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Flight == nil {
		deps.Flight = &singleflight.Group{}
	}
	return &Manager{
		cfg:  cfg,
		deps: deps,
		source: itemsource.New(deps.Host, itemsource.Options{
			Limit:          cfg.Spotlight.Limit,
			CandidateLimit: cfg.Spotlight.CandidateLimit,
			UnwatchedOnly:  cfg.Spotlight.UnwatchedOnly,
			AllowList:      deps.AllowList,
			Logger:         deps.Logger,
		}),
		clock:    deps.Clock,
		logger:   deps.Logger,
		serverID: cfg.ServerID,
		sessions: make(map[string]*Session),
	}
}

// Create selects items and starts a carousel for one browser. A host that
// returns nothing yields an empty, unrendered session.
func (m *Manager) Create(ctx context.Context, info ClientInfo) (*Session, error) {
	m.resolveHost(ctx)

	sessionID, err := id.Session()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate session id")
	}
	tier, err := cache.NewSession[any](m.cfg.SessionEntries)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create session cache")
	}

	items := m.source.SelectItems(ctx)

	s := newSession(m, sessionID, info, tier)
	s.mu.Lock()
	s.load(items, info.SavedIndex)
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[sessionID] = s
	total := len(m.sessions)
	m.mu.Unlock()

	s.start()
	m.logger.Info("spotlight session created",
		"session_id", sessionID,
		"items", len(items),
		"navigator", s.navigator.Name(),
		"total_sessions", total)
	return s, nil
}

// resolveHost looks up the user and server ids once. Failures leave them
// empty; item selection reports its own errors.
func (m *Manager) resolveHost(ctx context.Context) {
	m.resolve.Do(func() {
		if uid, err := m.deps.Host.CurrentUserID(ctx); err == nil {
			m.userID = uid
		}
		if m.serverID == "" {
			if sid, ok := m.deps.Host.(interface {
				ServerID(context.Context) (string, error)
			}); ok {
				if v, err := sid.ServerID(ctx); err == nil {
					m.serverID = v
				}
			}
		}
	})
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, domainerrors.NotFoundf("session %s not found", sessionID)
	}
	s.touch()
	return s, nil
}

// Close tears a session down.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return domainerrors.NotFoundf("session %s not found", sessionID)
	}
	s.close()
	if d, ok := m.deps.Publisher.(interface{ DisconnectSession(string) }); ok {
		d.DisconnectSession(sessionID)
	}
	m.logger.Info("spotlight session closed", "session_id", sessionID)
	return nil
}

// Replay implements sse.Replayer.
func (m *Manager) Replay(sessionID string) ([]sse.Event, bool) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.Replay(), true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle for longer than the idle TTL and returns how
// many it closed.
func (m *Manager) Reap() int {
	cutoff := m.clock.Now().Add(-m.cfg.IdleTTL)
	var idle []string
	m.mu.RLock()
	for sessionID, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, sessionID)
		}
	}
	m.mu.RUnlock()

	for _, sessionID := range idle {
		if err := m.Close(sessionID); err == nil {
			m.logger.Debug("reaped idle session", "session_id", sessionID)
		}
	}
	return len(idle)
}

// Run reaps idle sessions until ctx ends, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				m.logger.Info("reaped idle sessions", "count", n)
			}
		case <-ctx.Done():
			m.Shutdown()
			return
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for sessionID := range m.sessions {
		ids = append(ids, sessionID)
	}
	m.mu.RUnlock()
	for _, sessionID := range ids {
		_ = m.Close(sessionID)
	}
}

func (m *Manager) publish(ev sse.Event) {
	if m.deps.Publisher != nil {
		m.deps.Publisher.Emit(ev)
	}
}
