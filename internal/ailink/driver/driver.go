package driver

import (
	"context"

	"github.com/postpilot/postpilot/internal/ailink/content"
)

// Driver defines the interface for AI completion providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "openai").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsSystemPrompt bool
	SupportsTopP         bool
	SupportsStreaming    bool
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []content.Message
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	PromptSlug  string
	Metadata    map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
	Model        string
}

// Text returns the concatenated text content of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return content.JoinText(r.Content)
}

// Float64 returns a pointer to v, or nil when v is negative.
func Float64(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}

// Int returns a pointer to v, or nil when v is not positive.
func Int(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
