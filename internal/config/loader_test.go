package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points XDG lookups at temp dirs so a developer's config never leaks in.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir("postpilot"), "postpilot.db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)

		assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
		assert.Equal(t, 10*time.Minute, cfg.Cache.SweepInterval)
		assert.False(t, cfg.Cache.Offline)

		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, "memory", cfg.RateLimit.Backend)
		assert.Equal(t, 0.01, cfg.RateLimit.CleanupProbability)
		require.Contains(t, cfg.RateLimit.Limiters, "generate")
		assert.Equal(t, time.Hour, cfg.RateLimit.Limiters["generate"].Window)
		assert.Equal(t, 60, cfg.RateLimit.Limiters["generate"].Limit)

		assert.Equal(t, 0.8, cfg.Humanizer.Temperature)
		assert.True(t, cfg.Humanizer.AddFillerWords)
		assert.Equal(t, 512, cfg.Humanizer.MaxTokens)

		assert.True(t, cfg.Breaker.Enabled)
		assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"humanizer": map[string]any{
				"add_pauses": false,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.False(t, cfg.Humanizer.AddPauses)
		assert.True(t, cfg.Humanizer.AddFillerWords)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("POSTPILOT_PORT", "3000")
		t.Setenv("POSTPILOT_LOG_LEVEL", "warn")
		t.Setenv("POSTPILOT_METRICS_ENABLED", "false")
		t.Setenv("POSTPILOT_RATE_LIMIT_BACKEND", "redis")
		t.Setenv("POSTPILOT_CACHE_DEFAULT_TTL", "15m")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, "redis", cfg.RateLimit.Backend)
		assert.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("POSTPILOT_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 5000},
		})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
rate_limit:
  limiters:
    generate:
      prefix: gen
      window: 30s
      limit: 2
`), 0o600))

		cfg, err := LoadFile(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "gen", cfg.RateLimit.Limiters["generate"].Prefix)
		assert.Equal(t, 30*time.Second, cfg.RateLimit.Limiters["generate"].Window)
		assert.Equal(t, 2, cfg.RateLimit.Limiters["generate"].Limit)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		isolate(t)
		_, err := LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		isolate(t)
		_, err := Load(ctx, map[string]any{
			"humanizer": map[string]any{"temperature": 1.5},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Temperature")

		_, err = Load(ctx, map[string]any{
			"rate_limit": map[string]any{"backend": "memcached"},
		})
		require.Error(t, err)
	})
}

func TestGetConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
}

func TestEnvAliases(t *testing.T) {
	names := map[string]bool{}
	for _, alias := range EnvAliases() {
		names[alias.Name] = true
	}

	assert.True(t, names["POSTPILOT_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, names["POSTPILOT_PORT"], "PORT env var must be mapped")
	assert.True(t, names["POSTPILOT_DB_PATH"], "DB_PATH env var must be mapped")
	assert.True(t, names["POSTPILOT_REDIS_ADDR"], "REDIS_ADDR env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	isolate(t)
	t.Setenv("POSTPILOT_READ_TIMEOUT", "45s")
	t.Setenv("POSTPILOT_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestAILinkDynamicEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_ENABLED", "true")
	t.Setenv("POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_AI_PROVIDER", "OpenAI")
	t.Setenv("POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_MODELS_DEFAULT", "gpt-4o-mini")
	t.Setenv("POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_CREDENTIALS_0_API_KEY", "sk-test")
	t.Setenv("POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_CREDENTIALS_0_PRIORITY", "5")
	t.Setenv("POSTPILOT_AILINK_ROUTING_WRITER", "openai-main")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	provider, ok := cfg.AILink.Providers["openai-main"]
	require.True(t, ok)
	assert.True(t, provider.Enabled)
	assert.Equal(t, "openai", provider.AIProvider)
	assert.Equal(t, "gpt-4o-mini", provider.Models["default"])
	require.Len(t, provider.Credentials, 1)
	assert.Equal(t, "sk-test", provider.Credentials[0].APIKey)
	assert.Equal(t, 5, provider.Credentials[0].Priority)
	assert.Equal(t, "openai-main", cfg.AILink.Routing["writer"])
}

func TestToSlug(t *testing.T) {
	assert.Equal(t, "fast-writer", toSlug("FAST_WRITER"))
	assert.Equal(t, "", toSlug(" _ "))
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{"server": map[string]any{"host": "localhost", "port": 8080}, "debug": true}
	deepMerge(dst, map[string]any{"Server": map[string]any{"Port": 9000}, "debug": map[string]any{"enabled": true}})

	assert.Equal(t, map[string]any{"host": "localhost", "port": 9000}, dst["server"])
	assert.Equal(t, map[string]any{"enabled": true}, dst["debug"])
}

func TestSetProviderEnv(t *testing.T) {
	settings := map[string]any{}
	setProviderEnv(settings, []string{"XAI", "BASE", "URL"}, "https://api.x.ai/v1")
	setProviderEnv(settings, []string{"XAI", "SELECTION", "POLICY"}, "Round_Robin")
	setProviderEnv(settings, []string{"XAI", "CREDENTIALS", "1", "ENABLED"}, "TRUE")
	setProviderEnv(settings, []string{"XAI", "UNKNOWN"}, "ignored")

	provider := settings["ailink"].(map[string]any)["providers"].(map[string]any)["xai"].(map[string]any)
	assert.Equal(t, "https://api.x.ai/v1", provider["base_url"])
	assert.Equal(t, "round_robin", provider["selection_policy"])
	creds := provider["credentials"].([]any)
	require.Len(t, creds, 2)
	assert.Equal(t, true, creds[1].(map[string]any)["enabled"])
	assert.NotContains(t, provider, "unknown")
}
