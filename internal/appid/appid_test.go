package appid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	id := Get()
	assert.Equal(t, "postpilot", id.BinaryName)
	assert.Equal(t, "POSTPILOT_", id.EnvPrefix)
	assert.NotEmpty(t, id.Description)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "POSTPILOT_SERVER_PORT", EnvKey("server.port"))
	assert.Equal(t, "POSTPILOT_RATE_LIMIT_REDIS_ADDR", EnvKey("rate_limit.redis.addr"))
	assert.Equal(t, "POSTPILOT_AILINK_DEFAULT_PROVIDER", EnvKey(" ailink.default-provider "))
}
