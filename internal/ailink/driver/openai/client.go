package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/ailink/driver"
)

// Flavor names an OpenAI-compatible chat completions API.
type Flavor string

const (
	FlavorOpenAI  Flavor = "openai"
	FlavorMistral Flavor = "mistral"
	FlavorXAI     Flavor = "xai"
)

var defaultBaseURLs = map[Flavor]string{
	FlavorOpenAI:  "https://api.openai.com/v1",
	FlavorMistral: "https://api.mistral.ai/v1",
	FlavorXAI:     "https://api.x.ai/v1",
}

// Client implements the chat completions API shared by OpenAI, Mistral and
// xAI via direct HTTP.
type Client struct {
	Flavor     Flavor
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns an OpenAI client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	return NewCompatibleClient(FlavorOpenAI, baseURL, apiKey)
}

// NewCompatibleClient returns a client for an OpenAI-compatible provider.
func NewCompatibleClient(flavor Flavor, baseURL, apiKey string) *Client {
	if _, ok := defaultBaseURLs[flavor]; !ok {
		flavor = FlavorOpenAI
	}
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURLs[flavor]
	}

	return &Client{
		Flavor:  flavor,
		BaseURL: url,
		APIKey:  strings.TrimSpace(apiKey),
	}
}

// SupportsFlavor reports whether name is an OpenAI-compatible provider type.
func SupportsFlavor(name string) bool {
	_, ok := defaultBaseURLs[Flavor(strings.ToLower(strings.TrimSpace(name)))]
	return ok
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	if c == nil || c.Flavor == "" {
		return string(FlavorOpenAI)
	}
	return string(c.Flavor)
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsSystemPrompt: true,
		SupportsTopP:         true,
		SupportsStreaming:    false,
	}
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	raw, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.toDriverResponse()
}

// post sends payload as JSON to path under BaseURL and returns the 2xx body.
// Every exchange is traced, including transport failures.
func (c *Client) post(ctx context.Context, path string, payload *chatCompletionRequest) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	call := driver.Call{Driver: c.Name(), Endpoint: endpoint, Model: payload.Model, Started: time.Now(), Request: payload}
	resp, err := hc.Do(httpReq)
	if err != nil {
		call.Err = err
		driver.Trace(call)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	call.Status, call.Response = resp.StatusCode, raw
	if resp.StatusCode/100 != 2 {
		perr := &driver.ProviderError{
			Provider:    c.Name(),
			StatusCode:  resp.StatusCode,
			Message:     errorMessage(raw),
			RawResponse: raw,
		}
		call.Err = perr
		driver.Trace(call)
		return nil, perr
	}
	driver.Trace(call)
	return raw, nil
}

// errorMessage pulls error.message out of a {"error": {...}} body, falling
// back to the trimmed body text.
func errorMessage(raw []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		if body.Error.Type != "" {
			return body.Error.Type + ": " + body.Error.Message
		}
		return body.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
