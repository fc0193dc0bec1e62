package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/observability"
)

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		"INVALID_INPUT":               http.StatusBadRequest,
		"VALIDATION_FAILED":           http.StatusBadRequest,
		"NOT_FOUND":                   http.StatusNotFound,
		"RATE_LIMITED":                http.StatusTooManyRequests,
		"AILINK_PROVIDER_TIMEOUT":     http.StatusGatewayTimeout,
		"AILINK_PROVIDER_UNAVAILABLE": http.StatusServiceUnavailable,
		"AILINK_PROVIDER_RATE_LIMIT":  http.StatusServiceUnavailable,
		"AILINK_PROVIDER_AUTH":        http.StatusBadGateway,
		"AILINK_PROVIDER_ERROR":       http.StatusBadGateway,
		"AILINK_PROVIDER_BAD_REQUEST": http.StatusBadGateway,
		"METHOD_NOT_ALLOWED":          http.StatusMethodNotAllowed,
		"SERVICE_UNAVAILABLE":         http.StatusServiceUnavailable,
		"SOMETHING_ELSE":              http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestEnsureEnvelope(t *testing.T) {
	env := EnsureEnvelope(fmt.Errorf("boom"))
	assert.Equal(t, "INTERNAL_ERROR", env.Code)
	assert.Equal(t, "boom", env.Context["wrapped_error"])

	original := New(CodeNotFound, "missing")
	assert.Same(t, original, EnsureEnvelope(original))

	assert.Equal(t, "INTERNAL_ERROR", EnsureEnvelope(nil).Code)
}

func TestDetailed(t *testing.T) {
	ctx := observability.ContextWithRequestID(context.Background(), "req-42")
	env := Detailed(ctx, CodeRateLimited, "slow down", map[string]interface{}{"limiter": "generate"})
	assert.Equal(t, "RATE_LIMITED", env.Code)
	assert.Equal(t, "generate", env.Details["limiter"])
	assert.Equal(t, "req-42", env.CorrelationID)
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromEnvelope(env))
}

func TestWrap(t *testing.T) {
	env := Wrap(context.Background(), CodeInvalidInput, fmt.Errorf("unexpected EOF"), "request body must be a JSON object")
	assert.Equal(t, "INVALID_INPUT", env.Code)
	assert.Equal(t, "unexpected EOF", env.Context["wrapped_error"])
	assert.NotEmpty(t, env.CorrelationID)

	assert.Empty(t, Wrap(nil, CodeInternal, nil, "no cause").Context["wrapped_error"]) //nolint:staticcheck // nil context is tolerated
}

func TestRespondWithEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", nil)
	rec := httptest.NewRecorder()

	env := Detailed(context.Background(), "AILINK_PROVIDER_TIMEOUT", "provider request timed out",
		map[string]interface{}{"provider": "openai"})
	RespondWithEnvelope(rec, req, env)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "AILINK_PROVIDER_TIMEOUT", body.Error.Code)
	assert.Equal(t, "openai", body.Error.Details["provider"])
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestResponseDetailsPrefersDetailsOverContext(t *testing.T) {
	env := gferrors.NewErrorEnvelope("CONFLICT", "dup").WithDetails(map[string]interface{}{"key": "details"})
	env, err := env.WithContext(map[string]interface{}{"key": "context", "extra": 1})
	require.NoError(t, err)

	details := ResponseDetails(env)
	assert.Equal(t, "details", details["key"])
	assert.Equal(t, 1, details["extra"])
	assert.Nil(t, ResponseDetails(gferrors.NewErrorEnvelope("CONFLICT", "dup")))
}
