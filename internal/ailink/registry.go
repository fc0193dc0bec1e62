package ailink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/ailink/driver/gemini"
	"github.com/postpilot/postpilot/internal/ailink/driver/openai"
	"github.com/postpilot/postpilot/internal/ailink/prompt"
)

// DriverFactory builds a driver for a provider instance and credential.
type DriverFactory func(providerID string, provider ProviderInstanceConfig, cred CredentialConfig, timeout time.Duration) (driver.Driver, error)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBreaker wraps every driver the registry builds in a circuit breaker.
func WithBreaker(settings driver.BreakerSettings) RegistryOption {
	return func(r *Registry) { r.breaker = &settings }
}

// WithDriverFactory replaces the built-in driver construction.
func WithDriverFactory(factory DriverFactory) RegistryOption {
	return func(r *Registry) {
		if factory != nil {
			r.factory = factory
		}
	}
}

var errNoRegistry = errors.New("ailink registry not configured")

// Registry resolves roles to provider instances, credentials, drivers and
// models. Drivers are built once per provider and credential.
type Registry struct {
	cfg     Config
	factory DriverFactory
	breaker *driver.BreakerSettings

	mu      sync.Mutex
	drivers map[string]driver.Driver
	cursor  map[string]int
}

// ResolvedProvider is everything needed to send one completion, plus how each
// part was chosen.
type ResolvedProvider struct {
	ProviderID  string
	Provider    ProviderInstanceConfig
	Credential  CredentialConfig
	Driver      driver.Driver
	Model       string
	Route       Route
	ModelSource string
}

func NewRegistry(cfg Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		cfg:     cfg,
		factory: buildDriver,
		drivers: map[string]driver.Driver{},
		cursor:  map[string]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve picks the provider for role and the model to call.
func (r *Registry) Resolve(role string, def *prompt.Prompt, modelOverride, tier string) (*ResolvedProvider, error) {
	if r == nil {
		return nil, errNoRegistry
	}
	id, p, how, err := r.route(role)
	if err != nil {
		return nil, err
	}
	return r.assemble(id, p, how, def, modelOverride, tier)
}

// ResolveID resolves a specific provider instance, bypassing role routing.
func (r *Registry) ResolveID(providerID string, def *prompt.Prompt, modelOverride, tier string) (*ResolvedProvider, error) {
	if r == nil {
		return nil, errNoRegistry
	}
	providerID = strings.TrimSpace(providerID)
	p, err := r.enabled(providerID)
	if err != nil {
		return nil, err
	}
	return r.assemble(providerID, p, RouteExplicit, def, modelOverride, tier)
}

// Fallbacks returns the fallback provider ids configured for role.
func (r *Registry) Fallbacks(role string) []string {
	if r == nil {
		return nil
	}
	return r.cfg.Fallbacks[strings.TrimSpace(role)]
}

func (r *Registry) assemble(id string, p ProviderInstanceConfig, how Route, def *prompt.Prompt, modelOverride, tier string) (*ResolvedProvider, error) {
	cred, credKey, err := pickCredential(p, func(group string, n int) int {
		return r.advance(id+":"+group, n)
	})
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", id, err)
	}
	model, source, err := pickModel(p, def, modelOverride, tier)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", id, err)
	}
	drv, err := r.driver(id, p, cred, credKey)
	if err != nil {
		return nil, err
	}
	return &ResolvedProvider{
		ProviderID:  id,
		Provider:    p,
		Credential:  cred,
		Driver:      drv,
		Model:       model,
		Route:       how,
		ModelSource: source,
	}, nil
}

func (r *Registry) driver(id string, p ProviderInstanceConfig, cred CredentialConfig, credKey string) (driver.Driver, error) {
	key := id
	if credKey != "" {
		key += ":" + credKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if drv, ok := r.drivers[key]; ok {
		return drv, nil
	}
	drv, err := r.factory(id, p, cred, r.cfg.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	if r.breaker != nil {
		drv = driver.WithBreaker(key, drv, *r.breaker)
	}
	r.drivers[key] = drv
	return drv, nil
}

// advance returns the next round-robin slot for key in [0, n).
func (r *Registry) advance(key string, n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.cursor[key] % n
	r.cursor[key]++
	return idx
}

func buildDriver(id string, p ProviderInstanceConfig, cred CredentialConfig, timeout time.Duration) (driver.Driver, error) {
	kind := strings.ToLower(strings.TrimSpace(p.AIProvider))
	switch {
	case openai.SupportsFlavor(kind):
		client := openai.NewCompatibleClient(openai.Flavor(kind), p.BaseURL, cred.APIKey)
		client.Timeout = timeout
		return client, nil
	case kind == "gemini":
		client, err := gemini.NewClient(context.Background(), p.BaseURL, cred.APIKey)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", id, err)
		}
		client.Timeout = timeout
		return client, nil
	}
	return nil, fmt.Errorf("unsupported ai_provider %q for provider %q", cmpOr(kind, "(unset)"), id)
}
