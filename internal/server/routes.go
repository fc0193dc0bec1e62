package server

import (
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/server/handlers"
	servermw "github.com/postpilot/postpilot/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.Handler("aggregate"))
	for _, probe := range []string{"live", "ready", "startup"} {
		s.router.Get("/health/"+probe, s.health.Handler(probe))
	}

	s.router.Method(http.MethodGet, "/version", handlers.NewVersionHandler(s.build))

	s.router.Get("/metrics", newMetricsProxy(s.metricsPort).ServeHTTP)

	s.router.Route("/v1", func(r chi.Router) {
		if s.humanizer != nil {
			generate := handlers.NewGenerateHandler(s.humanizer)
			if l, ok := s.limiters.Get("generate"); ok {
				r.With(servermw.RateLimit(l)).Post("/generate", generate.ServeHTTP)
			} else {
				r.Post("/generate", generate.ServeHTTP)
			}
		}
		if s.limiters != nil {
			r.Get("/rate-limit/{limiter}", handlers.NewRateLimitHandler(s.limiters).ServeHTTP)
		}
	})

	// Admin signal endpoint (optional, requires POSTPILOT_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.Get().EnvPrefix
	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
