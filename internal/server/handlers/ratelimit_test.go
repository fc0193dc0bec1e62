package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/ratelimit"
)

func TestRateLimitHandler(t *testing.T) {
	reg, err := ratelimit.NewRegistry(map[string]config.LimiterConfig{
		"generate": {Window: time.Hour, Limit: 60},
		"fetch":    {Prefix: "fx", Window: time.Minute, Limit: 10},
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Get("/v1/rate-limit/{limiter}", NewRateLimitHandler(reg).ServeHTTP)

	t.Run("Known", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rate-limit/fetch", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RateLimitResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, RateLimitResponse{Name: "fetch", Prefix: "fx", WindowSeconds: 60, Limit: 10}, resp)
	})

	t.Run("Unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rate-limit/upload", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)

		var payload map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
		assert.Equal(t, "NOT_FOUND", payload["error"]["code"])
		details, ok := payload["error"]["details"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, []interface{}{"fetch", "generate"}, details["available"])
	})
}
