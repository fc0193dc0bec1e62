package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response. The panic
// value and stack are logged, never returned to the caller.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := observability.RequestIDFrom(r.Context())
			observability.OrNop(observability.ServerLogger).Error("handler panic",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			metrics.RecordPanic()

			envelope := apperrors.New(apperrors.CodeInternal, "internal server error").
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
			apperrors.RespondWithEnvelope(w, r, envelope)
		}()

		next.ServeHTTP(w, r)
	})
}
