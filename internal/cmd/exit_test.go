package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"

	"github.com/postpilot/postpilot/internal/ailink/driver"
	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/offline"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"config", fmt.Errorf("%w: bad port", errConfig), foundry.ExitConfigInvalid},
		{"not cached", fmt.Errorf("fetch k: %w", offline.ErrNotCached), foundry.ExitFileNotFound},
		{"circuit open", fmt.Errorf("generation failed: %w", driver.ErrCircuitOpen), foundry.ExitExternalServiceUnavailable},
		{"deadline", context.DeadlineExceeded, foundry.ExitExternalServiceUnavailable},
		{"provider", fmt.Errorf("wrap: %w", &driver.ProviderError{Provider: "openai", StatusCode: 503}), foundry.ExitExternalServiceUnavailable},
		{"other", errors.New("boom"), foundry.ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}

func TestWriteExitReport(t *testing.T) {
	var buf bytes.Buffer
	env := apperrors.Wrap(context.Background(), apperrors.CodeDatabase, errors.New("disk full"), "store unavailable")
	writeExitReport(&buf, foundry.ExitFailure, "Store ping failed", env)

	out := buf.String()
	assert.Contains(t, out, "FATAL: Store ping failed [DATABASE_ERROR]: store unavailable")
	assert.Contains(t, out, "cause: disk full")
	assert.Contains(t, out, fmt.Sprintf("exit %d", foundry.ExitFailure))

	buf.Reset()
	writeExitReport(&buf, foundry.ExitConfigInvalid, "bad config", nil)
	assert.Contains(t, buf.String(), "FATAL: bad config\n")
}

func TestExitWithCodeStderrExits(t *testing.T) {
	var got int
	prev := exit
	exit = func(code int) { got = code }
	t.Cleanup(func() { exit = prev })

	ExitWithCodeStderr(foundry.ExitConfigInvalid, "bad config", errors.New("port"))
	assert.Equal(t, int(foundry.ExitConfigInvalid), got)
}
