// Package gemini implements the AILink driver for Google Gemini via the
// google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/postpilot/postpilot/internal/ailink/content"
	"github.com/postpilot/postpilot/internal/ailink/driver"
)

const driverName = "gemini"

// contentGenerator is the subset of *genai.Models the driver calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements driver.Driver on top of the genai SDK.
type Client struct {
	models  contentGenerator
	Timeout time.Duration
}

// NewClient creates a Gemini API client. baseURL is optional.
func NewClient(ctx context.Context, baseURL, apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if url := strings.TrimSpace(baseURL); url != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: url}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{models: client.Models}, nil
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return driverName
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsSystemPrompt: true,
		SupportsTopP:         true,
		SupportsStreaming:    false,
	}
}

// Complete sends a generateContent request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil || c.models == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	contents, system, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	call := driver.Call{Driver: driverName, Endpoint: "generateContent", Model: req.Model, Started: time.Now(), Request: contents}
	resp, err := c.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		call.Err = toProviderError(err)
		driver.Trace(call)
		return nil, call.Err
	}
	call.Status = http.StatusOK
	driver.Trace(call)

	return toDriverResponse(resp, req.Model)
}

func convertMessages(messages []content.Message) ([]*genai.Content, *genai.Content, error) {
	if len(messages) == 0 {
		return nil, nil, fmt.Errorf("messages are required")
	}

	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range messages {
		text := msg.Text()
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "system":
			system = append(system, text)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(text, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("at least one user message is required")
	}

	var instruction *genai.Content
	if len(system) > 0 {
		instruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, instruction, nil
}

func toDriverResponse(resp *genai.GenerateContentResponse, model string) (*driver.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response candidates")
	}

	out := &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: resp.Text()}},
		FinishReason: strings.ToLower(string(resp.Candidates[0].FinishReason)),
		Model:        model,
	}
	if v := strings.TrimSpace(resp.ModelVersion); v != "" {
		out.Model = v
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func toProviderError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &driver.ProviderError{Provider: driverName, StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
