// Package appid holds the static identity of the PostPilot binary: names used
// for config discovery, environment variable prefixes, and telemetry.
package appid

import "strings"

// Identity describes how the application presents itself.
type Identity struct {
	BinaryName         string
	ConfigName         string
	EnvPrefix          string
	Description        string
	TelemetryNamespace string
}

var identity = Identity{
	BinaryName:         "postpilot",
	ConfigName:         "postpilot",
	EnvPrefix:          "POSTPILOT_",
	Description:        "AI assistant backend for social media posting",
	TelemetryNamespace: "postpilot",
}

// Get returns the application identity.
func Get() Identity {
	return identity
}

// EnvKey builds a prefixed environment variable name from a config path such
// as "server.port".
func EnvKey(path string) string {
	key := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(strings.TrimSpace(path)))
	return identity.EnvPrefix + key
}
