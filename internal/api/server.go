// Package api provides the HTTP API server and handlers for the Spotlight widget.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/spotlightapp/spotlight-server/internal/session"
	"github.com/spotlightapp/spotlight-server/internal/sse"
	"github.com/spotlightapp/spotlight-server/internal/validation"
)

// Options configures the HTTP layer.
type Options struct {
	Version        string
	AllowedOrigins []string
	// Per client IP; zero disables rate limiting.
	RequestsPerMinute int
	Client            ClientConfig
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions   *session.Manager
	sseManager *sse.Manager
	sseHandler *sse.Handler
	validator  *validation.Validator
	limiter    *RateLimiter
	opts       Options
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(sessions *session.Manager, sseManager *sse.Manager, sseHandler *sse.Handler, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		sessions:   sessions,
		sseManager: sseManager,
		sseHandler: sseHandler,
		validator:  validation.New(),
		opts:       opts,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if opts.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(opts.RequestsPerMinute, time.Minute, opts.RequestsPerMinute/2+1)
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Spotlight API", opts.Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the rate limiter.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	// The widget is served from the Emby origin, not ours.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerSpotlightRoutes()

	// The event stream is not a JSON operation, so it bypasses huma.
	s.router.Get("/api/v1/spotlight/sessions/{id}/stream", s.sseHandler.ServeHTTP)
}
