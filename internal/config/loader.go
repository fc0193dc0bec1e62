// Package config provides centralized configuration management for PostPilot.
// Values are layered with viper: built-in defaults, the user config file
// (XDG config dir or ./config), POSTPILOT_* environment variables, then
// runtime overrides. The merged tree is decoded with mapstructure and
// validated before use.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/postpilot/postpilot/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Load loads configuration from the default search paths.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", runtimeOverrides...)
}

// LoadFile loads configuration using path as the config file when set.
// A missing default config file is not an error; a missing explicit one is.
func LoadFile(ctx context.Context, path string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := appid.Get()
	v := viper.New()
	SetDefaults(v)

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range configSearchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.TrimSuffix(id.EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, alias := range EnvAliases() {
		if err := v.BindEnv(alias.Key, alias.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", alias.Name, err)
		}
	}

	merged := v.AllSettings()
	applyAILinkDynamicEnvOverrides(id.EnvPrefix, merged)
	for _, override := range runtimeOverrides {
		deepMerge(merged, override)
	}

	cfg, err := Decode(merged)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a merged settings tree into a typed Config.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints on a decoded Config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", first.Namespace(), first.Tag(), first.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// defaults holds the built-in value for every config key.
var defaults = map[string]any{
	"server.host":             "localhost",
	"server.port":             8080,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "60s",
	"server.idle_timeout":     "120s",
	"server.shutdown_timeout": "10s",

	"logging.level":   "info",
	"logging.profile": "SIMPLE",

	"store.driver":     "libsql",
	"store.path":       "",
	"store.url":        "",
	"store.auth_token": "",

	"cache.default_ttl":    "1h",
	"cache.sweep_interval": "10m",
	"cache.offline":        false,
	"cache.probe_addr":     "1.1.1.1:443",
	"cache.probe_timeout":  "2s",

	"rate_limit.enabled":             true,
	"rate_limit.backend":             "memory",
	"rate_limit.cleanup_probability": 0.01,
	"rate_limit.trust_user_header":   false,
	"rate_limit.redis.addr":          "localhost:6379",
	"rate_limit.redis.password":      "",
	"rate_limit.redis.db":            0,
	"rate_limit.limiters": map[string]any{
		"generate": map[string]any{"prefix": "ratelimit:generate", "window": "1h", "limit": 60},
		"fetch":    map[string]any{"prefix": "ratelimit:fetch", "window": "1m", "limit": 120},
	},

	"humanizer.temperature":                0.8,
	"humanizer.top_p":                      0.9,
	"humanizer.add_filler_words":           true,
	"humanizer.add_grammatical_variations": true,
	"humanizer.add_pauses":                 true,
	"humanizer.max_tokens":                 512,
	"humanizer.seed":                       0,
	"humanizer.role":                       "writer",

	"ailink.default_provider": "",
	"ailink.default_timeout":  "60s",
	"ailink.prompts_dir":      "",

	"breaker.enabled":       true,
	"breaker.max_requests":  1,
	"breaker.interval":      "60s",
	"breaker.timeout":       "30s",
	"breaker.min_requests":  5,
	"breaker.failure_ratio": 0.6,

	"metrics.enabled": true,
	"metrics.port":    9090,
	"health.enabled":  true,

	"debug.enabled":       false,
	"debug.pprof_enabled": false,
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func configSearchPaths() []string {
	id := appid.Get()
	paths := []string{}
	if dir := gfconfig.GetAppConfigDir(id.ConfigName); strings.TrimSpace(dir) != "" {
		paths = append(paths, dir)
	}
	return append(paths, "./config")
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(appid.Get().ConfigName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	return gfconfig.GetAppDataDir(appid.Get().ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	id := appid.Get()
	dataDir := gfconfig.GetAppDataDir(id.ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + id.BinaryName + ".db"
	}
	return filepath.Join(dataDir, id.BinaryName+".db")
}

// deepMerge overlays src onto dst, merging nested maps and lower-casing keys
// to match viper's normalized settings.
func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		if nested, ok := value.(map[string]any); ok {
			deepMerge(subMap(dst, key), nested)
			continue
		}
		dst[key] = value
	}
}
