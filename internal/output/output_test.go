package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleResponses() []store.CachedResponse {
	return []store.CachedResponse{
		{
			ID:        "feed-1",
			URL:       "feed",
			Response:  []byte(`{"posts": [1, 2, 3]}`),
			Timestamp: now.Add(-time.Minute),
			ExpiresAt: now.Add(time.Hour),
		},
		{
			ID:        "profile-1",
			URL:       "profile",
			Response:  []byte(strings.Repeat("x", 100)),
			Timestamp: now.Add(-2 * time.Hour),
			ExpiresAt: now.Add(-time.Hour),
		},
	}
}

func sampleRateLimits() []store.RateLimitEntry {
	return []store.RateLimitEntry{
		{Key: "generate:user:alice", Count: 3, WindowResetAt: now.Add(30 * time.Minute)},
		{Key: "fetch:ip:10.0.0.1", Count: 9, WindowResetAt: now.Add(-time.Second)},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("md")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	f := NewFormatter(FormatTable)

	rendered, err := f.FormatResponses(sampleResponses(), now)
	require.NoError(t, err)
	assert.Contains(t, rendered, "feed")
	assert.Contains(t, rendered, "fresh")
	assert.Contains(t, rendered, "expired")
	assert.Contains(t, rendered, "1/2 expired")
	assert.Contains(t, rendered, "...")
	assert.Contains(t, rendered, "1 hour from now")
	assert.Contains(t, rendered, "1 hour ago")
	assert.Contains(t, rendered, "100 B")

	rendered, err = f.FormatRateLimits(sampleRateLimits(), now)
	require.NoError(t, err)
	assert.Contains(t, rendered, "generate:user:alice")
	assert.Contains(t, rendered, "active")
	assert.Contains(t, rendered, "2 entries")
}

func TestMarkdownFormatter(t *testing.T) {
	f := NewFormatter(FormatMarkdown)

	rendered, err := f.FormatRateLimits(sampleRateLimits(), now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rendered, "## Rate limits"))
	assert.Contains(t, rendered, "| generate:user:alice |")

	rendered, err = f.FormatGeneration(&humanizer.Result{Text: "hi", Provider: "a|b", Model: "m", TotalTokens: 5})
	require.NoError(t, err)
	assert.Contains(t, rendered, `a\|b`)
}

func TestJSONFormatter(t *testing.T) {
	f := NewFormatter(FormatJSON)

	rendered, err := f.FormatResponses(sampleResponses(), now)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "feed", decoded[0]["key"])
	assert.Equal(t, `{"posts": [1, 2, 3]}`, decoded[0]["body"])
	assert.Equal(t, "expired", decoded[1]["state"])

	rendered, err = f.FormatRateLimits(sampleRateLimits(), now)
	require.NoError(t, err)
	assert.Contains(t, rendered, `"key": "fetch:ip:10.0.0.1"`)
	assert.Contains(t, rendered, `"state": "expired"`)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview([]byte("a\n  b")))
	long := preview([]byte(strings.Repeat("y", 200)))
	assert.Len(t, long, previewLen)
}
