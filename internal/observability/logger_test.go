package observability

import (
	"context"
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLoggers(t *testing.T) {
	t.Cleanup(func() {
		CLILogger = nil
		ServerLogger = nil
	})

	require.NoError(t, InitCLILogger("postpilot-test", true))
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("mode", "verbose"))
	assert.Same(t, CLILogger, Current())

	require.NoError(t, InitServerLogger("postpilot-test", "debug", "postpilot"))
	require.NotNil(t, ServerLogger)
	ServerLogger.Info("server logger ready", zap.String("component", "test"))
	assert.Same(t, ServerLogger, Current())
}

func TestOrNop(t *testing.T) {
	var typedNil *logging.Logger
	assert.NotPanics(t, func() {
		OrNop(typedNil).Info("discarded")
		OrNop(nil).Warn("discarded")
	})

	logger := zap.NewNop()
	assert.Same(t, logger, OrNop(logger))
}

func TestCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
}

func TestRequestContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithClientID(ctx, "user:alice")

	assert.Equal(t, "req-1", RequestIDFrom(ctx))
	assert.Equal(t, "user:alice", ClientIDFrom(ctx))
	assert.Empty(t, RequestIDFrom(context.Background()))
	assert.Empty(t, ClientIDFrom(nil)) //nolint:staticcheck // nil context is tolerated
}

func TestBoundPort(t *testing.T) {
	assert.Equal(t, 9464, boundPort("[::]:9464", 0))
	assert.Equal(t, 9090, boundPort("not-an-addr", 9090))
	assert.Equal(t, 9090, boundPort(":0", 9090))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, "DEBUG", severity(" Debug "))
	assert.Equal(t, "WARN", severity("warning"))
	assert.Equal(t, "TRACE", severity("trace"))
	assert.Equal(t, "INFO", severity("verbose"))
}

func TestDeployEnvironment(t *testing.T) {
	t.Setenv("POSTPILOT_ENV", "")
	assert.Equal(t, "production", deployEnvironment())
	t.Setenv("POSTPILOT_ENV", "staging")
	assert.Equal(t, "staging", deployEnvironment())
}
