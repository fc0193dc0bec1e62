package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	h := NewVersionHandler(BuildInfo{Version: "1.2.3", Commit: "abcd123", BuildDate: "2026-01-07T12:00:00Z"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "postpilot", resp.App.Name)
	assert.Equal(t, "1.2.3", resp.App.Version)
	assert.Equal(t, "abcd123", resp.App.Commit)
	assert.NotEmpty(t, resp.App.GoVersion)
	assert.NotEmpty(t, resp.Dependencies["gofulmen"])
	assert.NotEmpty(t, resp.Dependencies["crucible"])
}

func TestVersionHandlerDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	NewVersionHandler(BuildInfo{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "dev", resp.App.Version)
	assert.Equal(t, "unknown", resp.App.Commit)
}
