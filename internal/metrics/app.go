package metrics

import (
	"strconv"
	"time"

	"github.com/postpilot/postpilot/internal/observability"
)

// Metric names following Prometheus conventions.
const (
	RateLimitChecksTotal      = "ratelimit_checks_total"
	RateLimitStoreErrorsTotal = "ratelimit_store_errors_total"
	RateLimitSweptTotal       = "ratelimit_swept_entries_total"

	CacheLookupsTotal   = "offline_cache_lookups_total"
	CacheSavesTotal     = "offline_cache_saves_total"
	CacheEvictionsTotal = "offline_cache_evictions_total"
	FetchesTotal        = "offline_fetches_total"

	GenerationRequestsTotal = "generation_requests_total"
	GenerationDuration      = "generation_duration_ms"
	GenerationTokensTotal   = "generation_tokens_total"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"

	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration_ms"
	HTTPRequestSize     = "http_request_size_bytes"
	HTTPResponseSize    = "http_response_size_bytes"
	HTTPErrorsTotal     = "http_errors_total"

	ErrorsTotal           = "errors_total"
	ErrorsByEndpointTotal = "errors_by_endpoint"
	PanicsTotal           = "panics_total"
)

// Enabled reports whether a telemetry system is installed.
func Enabled() bool {
	return observability.TelemetrySystem != nil
}

func counter(name string, value float64, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, value, labels)
	}
}

func histogram(name string, d time.Duration, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(name, d, labels)
	}
}

func gauge(name string, value float64, labels map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(name, value, labels)
	}
}

// RecordRateLimitCheck records a limiter decision.
func RecordRateLimitCheck(limiter string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	counter(RateLimitChecksTotal, 1, map[string]string{"limiter": limiter, "decision": decision})
}

// RecordRateLimitStoreError records a counter store failure (the check failed open).
func RecordRateLimitStoreError(limiter string) {
	counter(RateLimitStoreErrorsTotal, 1, map[string]string{"limiter": limiter})
}

// RecordRateLimitSweep records entries removed by a cleanup pass.
func RecordRateLimitSweep(limiter string, removed int) {
	if removed <= 0 {
		return
	}
	counter(RateLimitSweptTotal, float64(removed), map[string]string{"limiter": limiter})
}

// RecordCacheLookup records an offline cache read. result is hit, miss,
// expired or error.
func RecordCacheLookup(result string) {
	counter(CacheLookupsTotal, 1, map[string]string{"result": result})
}

// RecordCacheSave records an offline cache write.
func RecordCacheSave(success bool) {
	counter(CacheSavesTotal, 1, map[string]string{"status": status(success)})
}

// RecordCacheEvictions records expired rows deleted from the offline cache.
func RecordCacheEvictions(reason string, removed int64) {
	if removed <= 0 {
		return
	}
	counter(CacheEvictionsTotal, float64(removed), map[string]string{"reason": reason})
}

// RecordFetch records where a network-aware fetch was served from.
func RecordFetch(source string) {
	counter(FetchesTotal, 1, map[string]string{"source": source})
}

// RecordGeneration records a text generation call.
func RecordGeneration(provider string, success bool, duration time.Duration, totalTokens int) {
	labels := map[string]string{"provider": provider, "status": status(success)}
	counter(GenerationRequestsTotal, 1, labels)
	histogram(GenerationDuration, duration, map[string]string{"provider": provider})
	if totalTokens > 0 {
		counter(GenerationTokensTotal, float64(totalTokens), map[string]string{"provider": provider})
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	state := "healthy"
	if !healthy {
		state = "unhealthy"
	}
	counter(HealthCheckTotal, 1, map[string]string{"check": checkName, "status": state})
	histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	gauge(ServerStartTime, float64(timestamp), nil)
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	gauge(ServerUptime, float64(seconds), nil)
}

// HTTPRequest describes one completed request for RecordHTTPRequest. Route is
// the matched route pattern, never the raw path.
type HTTPRequest struct {
	Method        string
	Route         string
	Status        int
	Duration      time.Duration
	RequestBytes  int64
	ResponseBytes int64
}

// RecordHTTPRequest emits the request counter, latency histogram and size
// gauges, plus http_errors_total for 4xx and 5xx responses.
func RecordHTTPRequest(req HTTPRequest) {
	statusLabel := strconv.Itoa(req.Status)
	labels := map[string]string{"method": req.Method, "endpoint": req.Route, "status": statusLabel}
	counter(HTTPRequestsTotal, 1, labels)
	histogram(HTTPRequestDuration, req.Duration, labels)

	sizeLabels := map[string]string{"method": req.Method, "endpoint": req.Route}
	gauge(HTTPRequestSize, float64(req.RequestBytes), sizeLabels)
	gauge(HTTPResponseSize, float64(req.ResponseBytes), sizeLabels)

	if req.Status < 400 {
		return
	}
	class := "client_error"
	if req.Status >= 500 {
		class = "server_error"
	}
	counter(HTTPErrorsTotal, 1, map[string]string{
		"method":     req.Method,
		"endpoint":   req.Route,
		"status":     statusLabel,
		"error_type": class,
	})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordError records an API error response.
func RecordError(errorCode string, httpStatus int) {
	counter(ErrorsTotal, 1, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordErrorByEndpoint records an API error against the request path.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	counter(ErrorsByEndpointTotal, 1, map[string]string{"endpoint": endpoint, "error_code": errorCode})
}

// RecordPanic records a recovered handler panic.
func RecordPanic() {
	counter(PanicsTotal, 1, nil)
}
