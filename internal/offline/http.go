package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20

// ErrResponseTooLarge is returned for bodies over 8 MiB. They are never cached.
var ErrResponseTooLarge = errors.New("response body exceeds 8 MiB")

// HTTPFetcher builds LiveFuncs that GET a URL.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// Get returns a LiveFunc for rawURL. Non-2xx responses are errors so the
// fetcher falls back to the cache.
func (h *HTTPFetcher) Get(rawURL string) LiveFunc {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if h != nil && strings.TrimSpace(h.UserAgent) != "" {
			req.Header.Set("User-Agent", h.UserAgent)
		}

		client := &http.Client{Timeout: 30 * time.Second}
		if h != nil && h.Client != nil {
			client = h.Client
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{StatusCode: resp.StatusCode, RetryAfter: retryAfterHeader(resp)}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rawURL, err)
		}
		if len(body) > maxResponseBytes {
			return nil, fmt.Errorf("read %s: %w", rawURL, ErrResponseTooLarge)
		}
		return body, nil
	}
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream status %d, retry after %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
