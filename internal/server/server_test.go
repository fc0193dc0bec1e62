package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/config"
	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/ratelimit"
	"github.com/postpilot/postpilot/internal/server/handlers"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestGenerateRouteIsRateLimited(t *testing.T) {
	gen := humanizer.GeneratorFunc(func(_ context.Context, prompt string, _ humanizer.Params) (*humanizer.Generation, error) {
		return &humanizer.Generation{Text: "echo: " + prompt, Provider: "stub"}, nil
	})
	h, err := humanizer.New(gen, humanizer.Config{Temperature: 0.5, TopP: 1})
	require.NoError(t, err)

	reg, err := ratelimit.NewRegistry(map[string]config.LimiterConfig{
		"generate": {Window: time.Hour, Limit: 2},
	})
	require.NoError(t, err)

	srv := New("127.0.0.1", 0, WithHumanizer(h), WithLimiters(reg))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"prompt":"hello"}`))
		req.Header.Set("X-User-ID", "alice")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := post()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, first.Body.String(), "echo: hello")

	second := post()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := post()
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(third.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestRateLimitRoute(t *testing.T) {
	reg, err := ratelimit.NewRegistry(map[string]config.LimiterConfig{
		"fetch": {Window: time.Minute, Limit: 5},
	})
	require.NoError(t, err)
	srv := New("127.0.0.1", 0, WithLimiters(reg))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rate-limit/fetch", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"limit":5`)
}

func TestGenerateRouteAbsentWithoutHumanizer(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := New("127.0.0.1", 0)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestHealthAndVersionRoutes(t *testing.T) {
	hm := handlers.NewHealthManager("2.0.0")
	hm.RegisterChecker("store", handlers.HealthCheckFunc(func(context.Context) error { return nil }))
	srv := New("127.0.0.1", 0,
		WithHealth(hm),
		WithBuildInfo(handlers.BuildInfo{Version: "2.0.0", Commit: "deadbeef"}))

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/startup"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"git_commit":"deadbeef"`)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
