package ailink

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/postpilot/postpilot/internal/ailink/prompt"
)

// Route records which rule picked a provider for a role.
type Route string

const (
	RouteRouting  Route = "routing"
	RouteRoles    Route = "roles"
	RouteDefault  Route = "default_provider"
	RouteOnly     Route = "only_enabled_provider"
	RouteExplicit Route = "explicit"
)

// Model sources, in precedence order.
const (
	ModelFromOverride = "override"
	ModelFromTier     = "provider_tier"
	ModelFromPrompt   = "prompt_preferred_models"
	ModelFromDefault  = "provider_default"
)

var (
	ErrNoProvider    = errors.New("no enabled providers configured")
	ErrAmbiguousRole = errors.New("no provider routing configured")
	ErrNoModel       = errors.New("model not configured")
	ErrNoCredentials = errors.New("no credentials configured")
)

func (r *Registry) route(role string) (string, ProviderInstanceConfig, Route, error) {
	role = strings.TrimSpace(role)

	if id := strings.TrimSpace(r.cfg.Routing[role]); role != "" && id != "" {
		p, err := r.enabled(id)
		if err != nil {
			return "", p, "", fmt.Errorf("role %q: %w", role, err)
		}
		return id, p, RouteRouting, nil
	}

	if role != "" {
		for _, id := range r.providerIDs() {
			if p := r.cfg.Providers[id]; p.Enabled && contains(p.Roles, role) {
				return id, p, RouteRoles, nil
			}
		}
	}

	if id := strings.TrimSpace(r.cfg.DefaultProvider); id != "" {
		p, err := r.enabled(id)
		if err != nil {
			return "", p, "", fmt.Errorf("default provider: %w", err)
		}
		return id, p, RouteDefault, nil
	}

	var live []string
	for _, id := range r.providerIDs() {
		if r.cfg.Providers[id].Enabled {
			live = append(live, id)
		}
	}
	switch len(live) {
	case 0:
		return "", ProviderInstanceConfig{}, "", ErrNoProvider
	case 1:
		return live[0], r.cfg.Providers[live[0]], RouteOnly, nil
	default:
		return "", ProviderInstanceConfig{}, "", ErrAmbiguousRole
	}
}

func (r *Registry) enabled(id string) (ProviderInstanceConfig, error) {
	p, ok := r.cfg.Providers[id]
	switch {
	case !ok:
		return p, fmt.Errorf("unknown provider %q", id)
	case !p.Enabled:
		return p, fmt.Errorf("provider %q is disabled", id)
	}
	return p, nil
}

// providerIDs returns provider ids sorted so role matching is deterministic.
func (r *Registry) providerIDs() []string {
	ids := make([]string, 0, len(r.cfg.Providers))
	for id := range r.cfg.Providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// usable reports whether a credential can be selected. Unlabeled credentials
// come from env overrides and count as enabled.
func usable(c CredentialConfig) bool {
	if strings.TrimSpace(c.APIKey) == "" {
		return false
	}
	return c.Enabled || strings.TrimSpace(c.Label) == ""
}

// pickCredential chooses among the highest-priority usable credentials. When
// none is usable the first is returned so callers can report the missing key.
func pickCredential(p ProviderInstanceConfig, next func(group string, n int) int) (CredentialConfig, string, error) {
	if len(p.Credentials) == 0 {
		return CredentialConfig{}, "", ErrNoCredentials
	}

	candidates := slices.DeleteFunc(slices.Clone(p.Credentials), func(c CredentialConfig) bool { return !usable(c) })
	if len(candidates) == 0 {
		c := p.Credentials[0]
		return c, cmpOr(strings.TrimSpace(c.Label), "0"), nil
	}

	if want := strings.TrimSpace(p.DefaultCredential); want != "" {
		idx := slices.IndexFunc(candidates, func(c CredentialConfig) bool {
			return strings.EqualFold(strings.TrimSpace(c.Label), want)
		})
		if idx >= 0 {
			return candidates[idx], strings.TrimSpace(candidates[idx].Label), nil
		}
	}

	top := slices.MaxFunc(candidates, func(a, b CredentialConfig) int { return a.Priority - b.Priority }).Priority
	group := slices.DeleteFunc(candidates, func(c CredentialConfig) bool { return c.Priority != top })
	groupKey := strconv.Itoa(top)

	idx := 0
	if p.Policy() == PolicyRoundRobin && next != nil {
		idx = next(groupKey, len(group))
	}
	c := group[idx]
	return c, cmpOr(strings.TrimSpace(c.Label), "p"+groupKey), nil
}

// pickModel applies model precedence: override, provider tier, the prompt's
// preferred models, then the provider default.
func pickModel(p ProviderInstanceConfig, def *prompt.Prompt, override, tier string) (string, string, error) {
	if model := strings.TrimSpace(override); model != "" {
		if len(p.AllowedModels) > 0 && !contains(p.AllowedModels, model) {
			return "", "", fmt.Errorf("model %q is not allowed", model)
		}
		return model, ModelFromOverride, nil
	}

	tier = strings.ToLower(strings.TrimSpace(tier))
	if model := strings.TrimSpace(p.Models[tier]); tier != "" && tier != "default" && model != "" {
		return model, ModelFromTier, nil
	}
	if models := PreferredModels(def); len(models) > 0 {
		return models[0], ModelFromPrompt, nil
	}
	if model := strings.TrimSpace(p.Models["default"]); model != "" {
		return model, ModelFromDefault, nil
	}
	return "", "", ErrNoModel
}

// PreferredModels returns the non-blank entries of a prompt's
// preferred_models hint, which may be a string or a list.
func PreferredModels(def *prompt.Prompt) []string {
	if def == nil {
		return nil
	}
	var raw []string
	switch v := def.Config.ProviderHints["preferred_models"].(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	models := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			models = append(models, s)
		}
	}
	return models
}

func contains(values []string, needle string) bool {
	needle = strings.TrimSpace(needle)
	return needle != "" && slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), needle)
	})
}

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
