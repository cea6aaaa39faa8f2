package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"
	"golang.org/x/sync/singleflight"

	"github.com/spotlightapp/spotlight-server/internal/api"
	"github.com/spotlightapp/spotlight-server/internal/badge"
	"github.com/spotlightapp/spotlight-server/internal/config"
	"github.com/spotlightapp/spotlight-server/internal/emby"
	"github.com/spotlightapp/spotlight-server/internal/enrichment"
	"github.com/spotlightapp/spotlight-server/internal/logger"
	"github.com/spotlightapp/spotlight-server/internal/session"
	"github.com/spotlightapp/spotlight-server/internal/sponsorblock"
	"github.com/spotlightapp/spotlight-server/internal/sse"
)

// requestsPerMinute is the per-client budget for non-stream API calls.
const requestsPerMinute = 600

// Version is reported by /health. It is set at build time.
var Version = "dev"

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// SessionManagerHandle wraps the session manager and its reaper.
type SessionManagerHandle struct {
	*session.Manager
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable. The reaper closes every session
// on its way out.
func (h *SessionManagerHandle) Shutdown() error {
	h.cancel()
	<-h.done
	return nil
}

// ProvideSessionManager provides the carousel session manager.
func ProvideSessionManager(i do.Injector) (*SessionManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	host := do.MustInvoke[*emby.Client](i)
	allowList := do.MustInvoke[*AllowListHandle](i)
	providers := do.MustInvoke[enrichment.Providers](i)
	overrides := do.MustInvoke[badge.Overrides](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	flight := do.MustInvoke[*singleflight.Group](i)
	segments := do.MustInvoke[*sponsorblock.Client](i)

	manager := session.NewManager(session.Config{
		Spotlight: cfg.Spotlight,
		Video:     cfg.Video,
		Toggles: enrichment.Toggles{
			MDBList:            cfg.Ratings.MDBList,
			RottenTomatoes:     cfg.Ratings.RottenTomatoes,
			CertificationCheck: cfg.Ratings.CertificationCheck,
			AniList:            cfg.Ratings.AniList,
			Kinopoisk:          cfg.Ratings.Kinopoisk,
			Allocine:           cfg.Ratings.Allocine,
			Awards:             cfg.Ratings.Awards,
		},
		ServerID:       cfg.Emby.ServerID,
		IdleTTL:        cfg.Server.SessionIdleTTL,
		SessionEntries: cfg.Cache.SessionEntries,
	}, session.Deps{
		Host:       host,
		AllowList:  allowList.AllowList,
		Providers:  providers,
		Overrides:  overrides,
		Persistent: cacheHandle.Persistent,
		Flight:     flight,
		Segments:   segments,
		Publisher:  sseHandle.Manager,
		Logger:     log.Component("session"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		manager.Run(ctx)
	}()

	log.Info("Session manager started", "idle_ttl", cfg.Server.SessionIdleTTL)

	return &SessionManagerHandle{Manager: manager, cancel: cancel, done: done}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.handler.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	sessions := do.MustInvoke[*SessionManagerHandle](i)

	sseHandler := sse.NewHandler(sseHandle.Manager, sessions.Manager, log.Component("sse"))

	handler := api.NewServer(sessions.Manager, sseHandle.Manager, sseHandler, api.Options{
		Version:           Version,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerMinute: requestsPerMinute,
		Client: api.ClientConfig{
			AutoplayIntervalMs: cfg.Spotlight.AutoplayInterval.Milliseconds(),
			TransitionMs:       cfg.Spotlight.TransitionDuration.Milliseconds(),
			MarginTop:          cfg.Spotlight.MarginTop,
			HighlightColor:     cfg.Spotlight.HighlightColor,
			Video: api.ClientVideoConfig{
				Enabled: cfg.Video.Enabled,
				Muted:   cfg.Video.Muted,
				Volume:  cfg.Video.Volume,
				Quality: cfg.Video.Quality,
			},
		},
	}, log.Component("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
