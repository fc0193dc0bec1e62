package ailink

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/ailink/content"
	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/ailink/prompt"
	"github.com/postpilot/postpilot/internal/humanizer"
)

type scriptedDriver struct {
	name     string
	text     string
	err      error
	requests []*driver.Request
}

func (d *scriptedDriver) Complete(_ context.Context, req *driver.Request) (*driver.Response, error) {
	d.requests = append(d.requests, req)
	if d.err != nil {
		return nil, d.err
	}
	return &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: "  " + d.text + "\n"}},
		FinishReason: "stop",
		Usage:        &driver.Usage{TotalTokens: 9},
	}, nil
}

func (d *scriptedDriver) Name() string                      { return d.name }
func (d *scriptedDriver) Capabilities() driver.Capabilities { return driver.Capabilities{} }

func newTestGenerator(t *testing.T, drivers map[string]*scriptedDriver, opts ...GeneratorOption) *Generator {
	t.Helper()

	providers := map[string]ProviderInstanceConfig{}
	for id := range drivers {
		providers[id] = ProviderInstanceConfig{
			Enabled:     true,
			AIProvider:  "openai",
			Models:      map[string]string{"default": id + "-model", "fast": id + "-fast"},
			Credentials: []CredentialConfig{{APIKey: "k"}},
		}
	}
	reg := NewRegistry(Config{
		Providers: providers,
		Routing:   map[string]string{"writer": "primary"},
		Fallbacks: map[string][]string{"writer": {"primary", "backup"}},
	}, WithDriverFactory(func(providerID string, _ ProviderInstanceConfig, _ CredentialConfig, _ time.Duration) (driver.Driver, error) {
		return drivers[providerID], nil
	}))

	prompts, err := prompt.LoadRegistry("")
	require.NoError(t, err)
	return NewGenerator(reg, prompts, append([]GeneratorOption{WithDefaultRole("writer")}, opts...)...)
}

func TestGenerateFreeFormPrompt(t *testing.T) {
	primary := &scriptedDriver{name: "openai", text: "hello there"}
	var observed []string
	gen := newTestGenerator(t, map[string]*scriptedDriver{"primary": primary},
		WithCallObserver(func(providerID string, err error, _ time.Duration, usage *driver.Usage) {
			observed = append(observed, providerID)
			assert.NoError(t, err)
			assert.Equal(t, 9, usage.TotalTokens)
		}))

	result, err := gen.Generate(context.Background(), TextRequest{
		Prompt:      "Say hi",
		System:      "be nice",
		Temperature: driver.Float64(0.4),
		TopP:        driver.Float64(0.9),
		MaxTokens:   50,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, "primary", result.ProviderID)
	assert.Equal(t, "primary-model", result.Model)
	assert.Equal(t, []string{"primary"}, observed)

	require.Len(t, primary.requests, 1)
	req := primary.requests[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "Say hi", req.Messages[1].Text())
	assert.Equal(t, 0.4, *req.Temperature)
	assert.Equal(t, 50, *req.MaxTokens)
}

func TestGenerateFromTemplateUsesPromptTierHint(t *testing.T) {
	primary := &scriptedDriver{name: "openai", text: "post"}
	gen := newTestGenerator(t, map[string]*scriptedDriver{"primary": primary})

	result, err := gen.Generate(context.Background(), TextRequest{
		PromptSlug: "x-post",
		Variables:  map[string]string{"topic": "our new bakery hours"},
		Prompt:     "mention Saturday",
	})
	require.NoError(t, err)
	assert.Equal(t, "primary-fast", result.Model)

	req := primary.requests[0]
	assert.Contains(t, req.Messages[0].Text(), "280")
	assert.Contains(t, req.Messages[1].Text(), "our new bakery hours")
	assert.Contains(t, req.Messages[1].Text(), "mention Saturday")
	assert.Equal(t, "x-post", req.PromptSlug)
}

func TestGenerateFallsBackOnTransientError(t *testing.T) {
	primary := &scriptedDriver{name: "openai", err: &driver.ProviderError{Provider: "openai", StatusCode: http.StatusServiceUnavailable}}
	backup := &scriptedDriver{name: "mistral", text: "from backup"}
	gen := newTestGenerator(t, map[string]*scriptedDriver{"primary": primary, "backup": backup})

	result, err := gen.Generate(context.Background(), TextRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "from backup", result.Text)
	assert.Equal(t, "backup", result.ProviderID)
	assert.Len(t, primary.requests, 1)
}

func TestGenerateDoesNotFallBackOnClientError(t *testing.T) {
	rejected := &driver.ProviderError{Provider: "openai", StatusCode: http.StatusBadRequest, Message: "bad"}
	primary := &scriptedDriver{name: "openai", err: rejected}
	backup := &scriptedDriver{name: "mistral", text: "unused"}
	gen := newTestGenerator(t, map[string]*scriptedDriver{"primary": primary, "backup": backup})

	_, err := gen.Generate(context.Background(), TextRequest{Prompt: "hi"})
	require.ErrorIs(t, err, rejected)
	assert.Empty(t, backup.requests)
}

func TestGenerateValidatesInput(t *testing.T) {
	gen := newTestGenerator(t, map[string]*scriptedDriver{"primary": {name: "openai"}})

	_, err := gen.Generate(context.Background(), TextRequest{})
	require.Error(t, err)

	_, err = gen.Generate(context.Background(), TextRequest{PromptSlug: "x-post"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")

	_, err = gen.Generate(context.Background(), TextRequest{PromptSlug: "nope", Prompt: "x"})
	require.Error(t, err)
}

func TestTextBackendFeedsHumanizer(t *testing.T) {
	primary := &scriptedDriver{name: "openai", text: "plain output"}
	gen := newTestGenerator(t, map[string]*scriptedDriver{"primary": primary})

	h, err := humanizer.New(gen.TextBackend("writer"), humanizer.Config{Temperature: 0.3, TopP: 0.8, MaxTokens: 64})
	require.NoError(t, err)

	res, err := h.Generate(context.Background(), "say something", humanizer.Options{})
	require.NoError(t, err)
	assert.Equal(t, "plain output", res.Text)
	assert.Equal(t, "primary", res.Provider)
	assert.Equal(t, 9, res.TotalTokens)

	req := primary.requests[0]
	assert.Equal(t, 0.3, *req.Temperature)
	assert.Equal(t, 0.8, *req.TopP)
	assert.Equal(t, 64, *req.MaxTokens)
}
