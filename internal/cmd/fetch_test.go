package cmd

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/postpilot/postpilot/internal/offline"
)

func TestProbeAddr(t *testing.T) {
	cases := []struct {
		configured string
		rawURL     string
		want       string
	}{
		{"", "https://example.com/feed", "example.com:443"},
		{"", "http://example.com/feed", "example.com:80"},
		{"", "http://localhost:8080/x", "localhost:8080"},
		{" 1.1.1.1:53 ", "https://example.com", "1.1.1.1:53"},
		{"", "https://[::1]/feed", "[::1]:443"},
		{"", "http://[2001:db8::7]/feed", "[2001:db8::7]:80"},
		{"", "https://[::1]:8443/feed", "[::1]:8443"},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.rawURL)
		require.NoError(t, err)
		assert.Equal(t, tc.want, probeAddr(tc.configured, u), tc.rawURL)
	}
}

func TestLogFetchLeavesStaleWarningToFetcher(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	result := &offline.Result{Data: []byte("v1"), Source: offline.SourceStale}

	logFetch(zap.New(core), "feed", result, time.Millisecond)

	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	entries := logs.FilterMessage("Fetch complete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "stale", entries[0].ContextMap()["source"])
	assert.NotPanics(t, func() { logFetch(nil, "feed", result, 0) })
}
