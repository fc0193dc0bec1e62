package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/postpilot/postpilot/internal/appid"
)

// EnvAlias maps a short environment variable name onto a config key.
type EnvAlias struct {
	Name string
	Key  string
}

var aliasKeys = []EnvAlias{
	{"HOST", "server.host"},
	{"PORT", "server.port"},
	{"READ_TIMEOUT", "server.read_timeout"},
	{"WRITE_TIMEOUT", "server.write_timeout"},
	{"IDLE_TIMEOUT", "server.idle_timeout"},
	{"SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
	{"LOG_LEVEL", "logging.level"},
	{"LOG_PROFILE", "logging.profile"},
	{"DB_DRIVER", "store.driver"},
	{"DB_PATH", "store.path"},
	{"DB_URL", "store.url"},
	{"DB_AUTH_TOKEN", "store.auth_token"},
	{"REDIS_ADDR", "rate_limit.redis.addr"},
	{"REDIS_PASSWORD", "rate_limit.redis.password"},
	{"OFFLINE", "cache.offline"},
}

// EnvAliases returns the short environment variable names accepted in
// addition to the automatic POSTPILOT_<SECTION>_<KEY> mapping.
func EnvAliases() []EnvAlias {
	out := make([]EnvAlias, len(aliasKeys))
	for i, a := range aliasKeys {
		out[i] = EnvAlias{Name: appid.EnvKey(a.Name), Key: a.Key}
	}
	return out
}

// providerSetters apply a scalar provider field from
// <PREFIX>AILINK_PROVIDERS_<ID>_<FIELD>.
var providerSetters = map[string]func(provider map[string]any, value string){
	"ENABLED":            func(p map[string]any, v string) { p["enabled"] = strings.EqualFold(v, "true") },
	"AI_PROVIDER":        func(p map[string]any, v string) { p["ai_provider"] = strings.ToLower(v) },
	"BASE_URL":           func(p map[string]any, v string) { p["base_url"] = v },
	"DEFAULT_CREDENTIAL": func(p map[string]any, v string) { p["default_credential"] = v },
	"SELECTION_POLICY":   func(p map[string]any, v string) { p["selection_policy"] = strings.ToLower(v) },
}

// applyAILinkDynamicEnvOverrides folds provider and routing env vars into
// settings. Provider ids are free-form, so they cannot be bound ahead of time:
//
//	POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_MODELS_DEFAULT=gpt-4o-mini
//	POSTPILOT_AILINK_PROVIDERS_OPENAI_MAIN_CREDENTIALS_0_API_KEY=sk-...
//	POSTPILOT_AILINK_ROUTING_WRITER=openai-main
func applyAILinkDynamicEnvOverrides(prefix string, settings map[string]any) {
	providers := prefix + "AILINK_PROVIDERS_"
	routing := prefix + "AILINK_ROUTING_"

	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(key, providers); ok {
			setProviderEnv(settings, strings.Split(rest, "_"), value)
		} else if role, ok := strings.CutPrefix(key, routing); ok {
			if slug := toSlug(role); slug != "" {
				subMap(subMap(settings, "ailink"), "routing")[slug] = value
			}
		}
	}
}

// setProviderEnv splits parts into a provider id and a field path at the
// first position where the remainder names a known field.
func setProviderEnv(settings map[string]any, parts []string, value string) {
	for i := 1; i < len(parts); i++ {
		field := parts[i:]
		setter, scalar := providerSetters[strings.Join(field, "_")]
		isModel := field[0] == "MODELS" && len(field) > 1
		isCred := field[0] == "CREDENTIALS" && len(field) > 2
		if !scalar && !isModel && !isCred {
			continue
		}

		provider := subMap(subMap(subMap(settings, "ailink"), "providers"), strings.ToLower(strings.Join(parts[:i], "-")))
		switch {
		case scalar:
			setter(provider, value)
		case isModel:
			subMap(provider, "models")[strings.ToLower(strings.Join(field[1:], "_"))] = value
		default:
			setCredentialEnv(provider, field[1], strings.ToLower(strings.Join(field[2:], "_")), value)
		}
		return
	}
}

func setCredentialEnv(provider map[string]any, index, name, value string) {
	idx, err := strconv.Atoi(index)
	if err != nil || idx < 0 {
		return
	}
	creds, _ := provider["credentials"].([]any)
	for len(creds) <= idx {
		creds = append(creds, map[string]any{})
	}
	provider["credentials"] = creds
	cred, ok := creds[idx].(map[string]any)
	if !ok {
		cred = map[string]any{}
		creds[idx] = cred
	}

	switch name {
	case "enabled":
		cred[name] = strings.EqualFold(value, "true")
	case "priority":
		if n, err := strconv.Atoi(value); err == nil {
			cred[name] = n
			return
		}
		cred[name] = value
	default:
		cred[name] = value
	}
}

// subMap returns parent[key] as a map, replacing any non-map value.
func subMap(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}

// toSlug turns an env fragment like FAST_WRITER into fast-writer.
func toSlug(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, "_") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}
