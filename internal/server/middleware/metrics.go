package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
)

// statusRecorder captures the status code and body size written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

var knownRoutes = map[string]string{
	"/":               "/",
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
	"/version":        "/version",
	"/metrics":        "/metrics",
}

// routeLabel returns the chi route pattern for r. Requests that matched no
// route collapse to "/unknown" to keep label cardinality bounded.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if route, ok := knownRoutes[r.URL.Path]; ok {
		return route
	}
	return "/unknown"
}

// RequestMetrics records per-request telemetry and writes one access log line
// per request. With telemetry disabled only the log line is written.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		elapsed := time.Since(start)
		if metrics.Enabled() {
			metrics.RecordHTTPRequest(metrics.HTTPRequest{
				Method:        r.Method,
				Route:         route,
				Status:        rec.status,
				Duration:      elapsed,
				RequestBytes:  max(r.ContentLength, 0),
				ResponseBytes: rec.written,
			})
		}

		if logger := observability.ServerLogger; logger != nil {
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.Int64("bytes", rec.written),
				zap.String("client", ClientIdentifier(r)),
				zap.String("request_id", observability.RequestIDFrom(r.Context())))
		}
	})
}
