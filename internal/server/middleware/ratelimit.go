package middleware

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/ratelimit"
)

// RateLimit rejects requests over the limiter's budget with 429 and sets the
// X-RateLimit-* headers on every response it lets through.
func RateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := l.Check(r.Context(), ClientIdentifier(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.Itoa(int(result.RetryAfter(result.CheckedAt)/time.Second)))

			apperrors.RespondWithEnvelope(w, r, apperrors.Detailed(r.Context(), apperrors.CodeRateLimited,
				"rate limit exceeded", map[string]interface{}{
					"limiter":  l.Name(),
					"limit":    result.Limit,
					"reset_at": result.ResetAt.UTC().Format(time.RFC3339),
				}))
		})
	}
}
