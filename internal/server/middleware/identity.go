package middleware

import (
	"net"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/postpilot/postpilot/internal/observability"
)

const (
	// RequestIDHeader carries the correlation id in and out.
	RequestIDHeader = "X-Request-ID"

	// UserIDHeader names the caller when an authenticating proxy in front of
	// the server sets it. Only TrustUserHeader reads it.
	UserIDHeader = "X-User-ID"
)

// Identify stamps every request with a correlation id and a caller identity.
// The id is taken from chi's RequestID middleware, then the X-Request-ID
// header, else generated; it is echoed back in X-Request-ID. The identity is
// the client IP. chi's RealIP rewrites RemoteAddr from X-Forwarded-For and
// X-Real-IP, so it belongs in the chain only behind a proxy that sets them.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())
		if requestID == "" {
			requestID = strings.TrimSpace(r.Header.Get(RequestIDHeader))
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.ContextWithRequestID(r.Context(), requestID)
		ctx = observability.ContextWithClientID(ctx, clientIdentity(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TrustUserHeader replaces the caller identity with "user:<X-User-ID>" when
// the header is present. Install it after Identify, and only when a proxy
// that authenticates callers owns the header; clients can set it freely.
func TrustUserHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(observability.ContextWithClientID(r.Context(), "user:"+id))
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIdentifier returns the rate limit identity for r: the identity set by
// Identify or TrustUserHeader, else "ip:<client ip>".
func ClientIdentifier(r *http.Request) string {
	if id := observability.ClientIDFrom(r.Context()); id != "" {
		return id
	}
	return clientIdentity(r)
}

func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
