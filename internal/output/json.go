package output

import (
	"encoding/json"
	"time"

	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

type rateLimitJSON struct {
	store.RateLimitEntry
	State string `json:"state"`
}

type responseJSON struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Bytes     int       `json:"bytes"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expires_at"`
	State     string    `json:"state"`
}

type generationJSON struct {
	Text        string `json:"text"`
	Raw         string `json:"raw"`
	Model       string `json:"model,omitempty"`
	Provider    string `json:"provider,omitempty"`
	TotalTokens int    `json:"total_tokens,omitempty"`
}

func (f *JSONFormatter) FormatRateLimits(entries []store.RateLimitEntry, now time.Time) (string, error) {
	out := make([]rateLimitJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, rateLimitJSON{RateLimitEntry: e, State: rateLimitState(e, now)})
	}
	return f.marshal(out)
}

func (f *JSONFormatter) FormatResponses(rows []store.CachedResponse, now time.Time) (string, error) {
	out := make([]responseJSON, 0, len(rows))
	for _, r := range rows {
		out = append(out, responseJSON{
			ID:        r.ID,
			Key:       r.URL,
			Bytes:     len(r.Response),
			Body:      string(r.Response),
			Timestamp: r.Timestamp.UTC(),
			ExpiresAt: r.ExpiresAt.UTC(),
			State:     responseState(r, now),
		})
	}
	return f.marshal(out)
}

func (f *JSONFormatter) FormatGeneration(result *humanizer.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	return f.marshal(generationJSON{
		Text:        result.Text,
		Raw:         result.Raw,
		Model:       result.Model,
		Provider:    result.Provider,
		TotalTokens: result.TotalTokens,
	})
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
