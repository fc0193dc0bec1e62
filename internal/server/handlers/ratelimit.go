package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/ratelimit"
)

// RateLimitResponse describes a configured limiter.
type RateLimitResponse struct {
	Name          string `json:"name"`
	Prefix        string `json:"prefix"`
	WindowSeconds int64  `json:"window_seconds"`
	Limit         int    `json:"limit"`
}

// RateLimitHandler reports limiter configuration by name.
type RateLimitHandler struct {
	limiters *ratelimit.Registry
}

// NewRateLimitHandler serves limiters from reg.
func NewRateLimitHandler(reg *ratelimit.Registry) *RateLimitHandler {
	return &RateLimitHandler{limiters: reg}
}

func (h *RateLimitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "limiter")
	l, ok := h.limiters.Get(name)
	if !ok {
		apperrors.RespondWithError(w, r, apperrors.Detailed(r.Context(), apperrors.CodeNotFound,
			"unknown rate limiter", map[string]interface{}{"limiter": name, "available": h.limiters.Names()}))
		return
	}

	cfg := l.Config()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RateLimitResponse{
		Name:          l.Name(),
		Prefix:        cfg.Prefix,
		WindowSeconds: int64(cfg.Window.Seconds()),
		Limit:         cfg.Limit,
	})
}
