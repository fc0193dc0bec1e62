package errors

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
)

// Error codes carried in API responses and CLI failures.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeDatabase         = "DATABASE_ERROR"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeServiceDown      = "SERVICE_UNAVAILABLE"
	CodeTimeout          = "TIMEOUT"
	CodeConfigInvalid    = "CONFIG_INVALID"
)

var statusByCode = map[string]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodeValidation:       http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeExternalService:  http.StatusBadGateway,
	CodeServiceDown:      http.StatusServiceUnavailable,
	CodeTimeout:          http.StatusGatewayTimeout,

	"AILINK_PROVIDER_TIMEOUT":     http.StatusGatewayTimeout,
	"AILINK_PROVIDER_UNAVAILABLE": http.StatusServiceUnavailable,
	"AILINK_PROVIDER_RATE_LIMIT":  http.StatusServiceUnavailable,
}

// New returns a bare envelope for code.
func New(code, message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(code, message)
}

// Detailed returns an envelope with caller-facing details, correlated to the
// request carried by ctx.
func Detailed(ctx context.Context, code, message string, details map[string]interface{}) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message).WithCorrelationID(correlationID(ctx))
	if len(details) > 0 {
		envelope = envelope.WithDetails(details)
	}
	return envelope
}

// Wrap returns an envelope for code that records err in its context.
func Wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := correlationID(ctx)
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	if err == nil {
		return envelope
	}
	if updated, ctxErr := envelope.WithContext(map[string]interface{}{"wrapped_error": err.Error()}); ctxErr == nil {
		envelope = updated
	}
	return envelope
}

func correlationID(ctx context.Context) string {
	if id := observability.RequestIDFrom(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// EnsureEnvelope normalizes any error into an envelope. Plain errors become
// INTERNAL_ERROR with the original message kept in context.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env, _ := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error").WithSeverity(errors.SeverityCritical)
		return env
	}
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}
	env, _ := errors.NewErrorEnvelope(CodeInternal, "unexpected error").
		WithContext(map[string]interface{}{"wrapped_error": err.Error()})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// HTTPStatusFromEnvelope maps an envelope's code to an HTTP status.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode maps an error code to an HTTP status. Unknown provider
// failures are reported as bad gateway, everything else unknown as 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "AILINK_PROVIDER_") {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ResponseDetails merges envelope details and context into the map returned to
// callers. Details win on key collisions.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil {
		return nil
	}
	details := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		details[key] = value
	}
	for key, value := range envelope.Details {
		details[key] = value
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// HTTPErrorDetail is the body of every API error.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the {"error": {...}} wrapper.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError writes err as a JSON error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope writes envelope with its mapped status, then logs it and
// records the error counters.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}
	if envelope == nil {
		envelope = EnsureEnvelope(nil)
	}
	if envelope.CorrelationID == "" {
		var ctx context.Context
		if r != nil {
			ctx = r.Context()
		}
		envelope = envelope.WithCorrelationID(correlationID(ctx))
	}

	status := HTTPStatusFromEnvelope(envelope)
	logEnvelope(envelope, status)
	metrics.RecordError(envelope.Code, status)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   ResponseDetails(envelope),
		RequestID: envelope.CorrelationID,
	}})
}

func logEnvelope(envelope *errors.ErrorEnvelope, status int) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("request_id", envelope.CorrelationID),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch {
	case envelope.Severity == errors.SeverityCritical || envelope.Severity == errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case status >= http.StatusInternalServerError || envelope.Severity == errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
