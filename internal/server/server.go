package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/config"
	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/ratelimit"
	"github.com/postpilot/postpilot/internal/server/handlers"
	servermw "github.com/postpilot/postpilot/internal/server/middleware"
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	timeouts    config.ServerConfig
	metricsPort int
	build       handlers.BuildInfo
	health      *handlers.HealthManager
	humanizer   *humanizer.Humanizer
	limiters    *ratelimit.Registry

	trustUserHeader bool
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithTimeouts applies the read, write and idle timeouts from cfg.
func WithTimeouts(cfg config.ServerConfig) Option {
	return func(s *Server) { s.timeouts = cfg }
}

// WithBuildInfo sets the metadata reported by /version and /health.
func WithBuildInfo(build handlers.BuildInfo) Option {
	return func(s *Server) { s.build = build }
}

// WithHealth sets the manager behind the /health probes. Without it the
// probes report healthy with no checks.
func WithHealth(hm *handlers.HealthManager) Option {
	return func(s *Server) { s.health = hm }
}

// WithMetricsPort sets the exporter port /metrics proxies to when the exporter
// has not reported its bound port.
func WithMetricsPort(port int) Option {
	return func(s *Server) {
		if port > 0 {
			s.metricsPort = port
		}
	}
}

// WithHumanizer enables POST /v1/generate.
func WithHumanizer(h *humanizer.Humanizer) Option {
	return func(s *Server) { s.humanizer = h }
}

// WithLimiters enables per-route rate limiting and GET /v1/rate-limit/{limiter}.
func WithLimiters(reg *ratelimit.Registry) Option {
	return func(s *Server) { s.limiters = reg }
}

// WithTrustedUserHeader keys rate limits on X-User-ID when set. Enable it
// only behind a proxy that authenticates callers and owns the header.
func WithTrustedUserHeader(trust bool) Option {
	return func(s *Server) { s.trustUserHeader = trust }
}

// New builds the router and registers routes. Optional features are enabled
// through opts.
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.New(apperrors.CodeNotFound, "resource not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.New(apperrors.CodeMethodNotAllowed, "method not allowed for this resource"))
	})

	s := &Server{
		router:      r,
		host:        host,
		port:        port,
		metricsPort: 9090,
		timeouts: config.ServerConfig{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	// Identify runs first; Recovery sits inside RequestMetrics so panics are
	// recorded as 500s.
	r.Use(middleware.RealIP)
	r.Use(servermw.Identify)
	if s.trustUserHeader {
		r.Use(servermw.TrustUserHeader)
	}
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	if s.health == nil {
		s.health = handlers.NewHealthManager(s.build.Version)
	}

	s.registerRoutes()
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.timeouts.ReadTimeout,
		WriteTimeout: s.timeouts.WriteTimeout,
		IdleTimeout:  s.timeouts.IdleTimeout,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
