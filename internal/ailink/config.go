package ailink

import (
	"strings"
	"time"
)

// Credential selection policies.
const (
	PolicyPriority   = "priority"
	PolicyRoundRobin = "round_robin"
)

// Config is the ailink section of the application config.
type Config struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`
	PromptsDir      string        `mapstructure:"prompts_dir"`

	// Providers are keyed by slug, e.g. "openai-main".
	Providers map[string]ProviderInstanceConfig `mapstructure:"providers"`
	// Routing maps a role such as "writer" to a provider slug.
	Routing map[string]string `mapstructure:"routing"`
	// Fallbacks lists slugs tried in order after a transient failure.
	Fallbacks map[string][]string `mapstructure:"fallbacks"`
}

// ProviderInstanceConfig is one configured backend. AIProvider selects the
// driver: openai, mistral, xai or gemini.
type ProviderInstanceConfig struct {
	Enabled           bool               `mapstructure:"enabled"`
	AIProvider        string             `mapstructure:"ai_provider"`
	SelectionPolicy   string             `mapstructure:"selection_policy"`
	DefaultCredential string             `mapstructure:"default_credential"`
	BaseURL           string             `mapstructure:"base_url"`
	Models            map[string]string  `mapstructure:"models"`
	AllowedModels     []string           `mapstructure:"allowed_models"`
	Roles             []string           `mapstructure:"roles"`
	Credentials       []CredentialConfig `mapstructure:"credentials"`
}

// Policy returns the normalized selection policy. Anything other than
// round_robin means priority.
func (p ProviderInstanceConfig) Policy() string {
	if strings.EqualFold(strings.TrimSpace(p.SelectionPolicy), PolicyRoundRobin) {
		return PolicyRoundRobin
	}
	return PolicyPriority
}

// CredentialConfig is one API key. Keys sharing the highest priority form
// the rotation group.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}
