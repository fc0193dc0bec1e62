package driver

import (
	"errors"
	"fmt"
	"net/http"
)

// ProviderError is returned when a provider responds with a non-2xx status.
//
// Drivers should populate RawResponse with the provider response body bytes.
// RawResponse must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// Transient reports whether the failure is worth retrying later: throttling
// or a server-side fault.
func (e *ProviderError) Transient() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == 0
}

// IsTransient reports whether err is a transient provider failure. Errors that
// are not ProviderErrors (timeouts, connection resets) count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Transient()
	}
	return true
}
