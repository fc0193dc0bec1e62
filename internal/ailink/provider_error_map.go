package ailink

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/postpilot/postpilot/internal/ailink/driver"
)

// Failure is a provider error classified for API and CLI reporting.
type Failure struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

// ClassifyError maps a generation error onto a stable failure code.
func ClassifyError(err error) *Failure {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Code: "AILINK_PROVIDER_TIMEOUT", Message: "provider request timed out", HTTPStatus: http.StatusGatewayTimeout}
	}
	if errors.Is(err, driver.ErrCircuitOpen) {
		return &Failure{Code: "AILINK_PROVIDER_UNAVAILABLE", Message: "provider temporarily disabled after repeated failures", Details: err.Error(), HTTPStatus: http.StatusServiceUnavailable}
	}

	var perr *driver.ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return &Failure{Code: "AILINK_PROVIDER_AUTH", Message: "provider authentication failed", Details: details, HTTPStatus: http.StatusBadGateway}
		case status == http.StatusTooManyRequests:
			return &Failure{Code: "AILINK_PROVIDER_RATE_LIMIT", Message: "provider rate limited", Details: details, HTTPStatus: http.StatusServiceUnavailable}
		case status >= 500 && status <= 599:
			return &Failure{Code: "AILINK_PROVIDER_UNAVAILABLE", Message: "provider unavailable", Details: details, HTTPStatus: http.StatusServiceUnavailable}
		case status >= 400 && status <= 499:
			return &Failure{Code: "AILINK_PROVIDER_BAD_REQUEST", Message: "provider rejected request", Details: details, HTTPStatus: http.StatusBadGateway}
		}
	}

	return &Failure{Code: "AILINK_PROVIDER_ERROR", Message: "provider request failed", Details: err.Error(), HTTPStatus: http.StatusBadGateway}
}
