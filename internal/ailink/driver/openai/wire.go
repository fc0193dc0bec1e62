package openai

import (
	"fmt"
	"strings"

	"github.com/postpilot/postpilot/internal/ailink/content"
	"github.com/postpilot/postpilot/internal/ailink/driver"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	return &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}, nil
}

func convertMessages(messages []content.Message) ([]chatMessage, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}
	result := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Type != content.ContentTypeText && block.Type != "" {
				return nil, fmt.Errorf("unsupported content type: %s", block.Type)
			}
		}
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			role = "user"
		}
		result = append(result, chatMessage{Role: role, Content: msg.Text()})
	}
	return result, nil
}

// chatCompletionResponse is the subset of the chat completions reply the
// driver reads. Mistral and xAI return the same shape.
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *driver.Usage `json:"usage,omitempty"`
}

// toDriverResponse takes the first choice; the driver never asks for n > 1.
func (r *chatCompletionResponse) toDriverResponse() (*driver.Response, error) {
	if r == nil || len(r.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}
	first := r.Choices[0]
	return &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: first.Message.Content}},
		FinishReason: first.FinishReason,
		Model:        r.Model,
		Usage:        r.Usage,
	}, nil
}
