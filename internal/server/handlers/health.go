package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/metrics"
)

// Check results reported per checker.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the live, ready and startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Probe     string    `json:"probe"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is implemented by components the probes depend on.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckFunc adapts a function such as (*store.Store).Ping to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

func (f HealthCheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// probeTimeouts bounds how long each probe waits on its checkers.
var probeTimeouts = map[string]time.Duration{
	"aggregate": 5 * time.Second,
	"live":      2 * time.Second,
	"ready":     5 * time.Second,
	"startup":   3 * time.Second,
}

// HealthManager runs registered checkers for the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager returns a manager with no checkers; it reports healthy
// until one is registered.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{checkers: make(map[string]HealthChecker), version: version}
}

// RegisterChecker adds or replaces the checker for name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// Names returns the registered checker names, sorted.
func (hm *HealthManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every checker concurrently. A checker still running when ctx
// expires is reported as timeout.
func (hm *HealthManager) Run(ctx context.Context) map[string]string {
	hm.mu.RLock()
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, c := range hm.checkers {
		checkers[name] = c
	}
	hm.mu.RUnlock()

	var mu sync.Mutex
	results := make(map[string]string, len(checkers))
	var g errgroup.Group
	for name, checker := range checkers {
		g.Go(func() error {
			started := time.Now()
			err := checker.CheckHealth(ctx)
			metrics.RecordHealthCheck(name, err == nil, time.Since(started))

			result := StatusHealthy
			switch {
			case err != nil && ctx.Err() != nil:
				result = StatusTimeout
			case err != nil:
				result = StatusUnhealthy
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Overall folds per-check results: any unhealthy check wins, then any
// degraded or timed out check.
func Overall(checks map[string]string) string {
	status := StatusHealthy
	for _, result := range checks {
		switch result {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

// Handler returns the HTTP handler for probe: "aggregate", "live", "ready" or
// "startup". Unhealthy results are reported as 503 SERVICE_UNAVAILABLE with
// the per-check results in the error details.
func (hm *HealthManager) Handler(probe string) http.HandlerFunc {
	timeout, ok := probeTimeouts[probe]
	if !ok {
		timeout = probeTimeouts["aggregate"]
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		checks := hm.Run(ctx)
		status := Overall(checks)
		if status == StatusUnhealthy {
			apperrors.RespondWithError(w, r, apperrors.Detailed(r.Context(), apperrors.CodeServiceDown,
				probe+" health check failed", map[string]interface{}{
					"probe":  probe,
					"status": status,
					"checks": checks,
				}))
			return
		}

		now := time.Now().UTC()
		var body interface{} = ProbeResponse{Status: status, Probe: probe, Timestamp: now}
		if probe == "aggregate" {
			body = HealthResponse{
				Status:    status,
				Version:   hm.version,
				Timestamp: now.Format(time.RFC3339),
				Checks:    checks,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}
