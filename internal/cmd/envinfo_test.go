package cmd

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/ailink"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/output"
)

func TestRedactURL(t *testing.T) {
	got := redactURL("libsql://db.example.io?authToken=secret")
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "authToken=redacted")

	assert.NotContains(t, redactURL("https://user:pw@db.example.io"), "pw")
}

func TestConfigSectionsHideKeys(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.URL = "libsql://db.example.io?authToken=secret"
	cfg.RateLimit.Limiters = map[string]config.LimiterConfig{"generate": {Window: time.Hour, Limit: 60}}
	cfg.AILink.Providers = map[string]ailink.ProviderInstanceConfig{
		"openai-main": {
			Enabled:     true,
			AIProvider:  "openai",
			Models:      map[string]string{"default": "gpt-4o-mini"},
			Credentials: []ailink.CredentialConfig{{APIKey: "sk-live"}, {}},
		},
	}

	rendered, err := renderSections(configSections(cfg), output.FormatJSON)
	require.NoError(t, err)
	assert.NotContains(t, rendered, "sk-live")
	assert.NotContains(t, rendered, "secret")
	assert.Contains(t, rendered, "keys=1/2")
	assert.Contains(t, rendered, "60 per 1h0m0s")

	var sections []envSection
	require.NoError(t, json.Unmarshal([]byte(rendered), &sections))
	assert.Equal(t, "Server", sections[0].Title)
}
