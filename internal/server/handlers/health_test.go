package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", HealthCheckFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	manager.Handler("aggregate")(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "healthy", resp.Checks["store"])
}

func TestProbesReportUnhealthyStore(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", HealthCheckFunc(func(context.Context) error { return errors.New("database is locked") }))
	manager.RegisterChecker("telemetry", HealthCheckFunc(func(context.Context) error { return nil }))

	for _, probe := range []string{"aggregate", "live", "ready", "startup"} {
		t.Run(probe, func(t *testing.T) {
			rec := httptest.NewRecorder()
			manager.Handler(probe)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var resp struct {
				Error struct {
					Code    string                 `json:"code"`
					Details map[string]interface{} `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
			assert.Equal(t, probe, resp.Error.Details["probe"])

			checks, ok := resp.Error.Details["checks"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "unhealthy", checks["store"])
			assert.Equal(t, "healthy", checks["telemetry"])
		})
	}
}

func TestProbeWithoutCheckers(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthManager("dev").Handler("live")(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "live", resp.Probe)
}

func TestRunReportsTimeout(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("redis", HealthCheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	checks := manager.Run(ctx)

	assert.Equal(t, "timeout", checks["redis"])
	assert.Equal(t, "degraded", Overall(checks))
	assert.Equal(t, []string{"redis"}, manager.Names())
}

func TestOverall(t *testing.T) {
	assert.Equal(t, "healthy", Overall(map[string]string{}))
	assert.Equal(t, "degraded", Overall(map[string]string{"a": "healthy", "b": "timeout"}))
	assert.Equal(t, "unhealthy", Overall(map[string]string{"a": "degraded", "b": "unhealthy"}))
}
