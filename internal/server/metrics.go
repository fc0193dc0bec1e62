package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/observability"
)

// hopHeaders are not forwarded from the exporter response.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// metricsProxy serves the Prometheus exporter's output on the API listener so
// a single port can be scraped.
type metricsProxy struct {
	client *http.Client
	port   func() int
}

func newMetricsProxy(configuredPort int) *metricsProxy {
	return &metricsProxy{
		client: &http.Client{Timeout: 5 * time.Second},
		port: func() int {
			if p := observability.MetricsPort(); p != 0 {
				return p
			}
			return configuredPort
		},
	}
}

func (p *metricsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.New(apperrors.CodeServiceDown, "metrics are disabled"))
		return
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", p.port())
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeInternal, err, "build metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeExternalService, err, "metrics exporter unreachable"))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // read-only body

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		observability.OrNop(observability.ServerLogger).Warn("copy metrics response", zap.Error(err))
	}
}
