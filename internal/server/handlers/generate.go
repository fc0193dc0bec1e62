package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/postpilot/postpilot/internal/ailink"
	apperrors "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/humanizer"
)

const maxGenerateBody = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// platformPrompts maps a request platform onto its prompt template slug.
var platformPrompts = map[string]string{
	"x":        "x-post",
	"linkedin": "linkedin-post",
	"facebook": "facebook-post",
	"reply":    "reply",
}

// TextHumanizer is the part of humanizer.Humanizer the handler needs.
type TextHumanizer interface {
	Generate(ctx context.Context, prompt string, opts humanizer.Options) (*humanizer.Result, error)
}

// GenerateRequest is the POST /v1/generate body. Either Prompt or Platform
// must be set.
type GenerateRequest struct {
	Prompt    string            `json:"prompt" validate:"required_without=Platform,max=8000"`
	Platform  string            `json:"platform" validate:"omitempty,oneof=x linkedin facebook reply"`
	Variables map[string]string `json:"variables"`
	Model     string            `json:"model" validate:"max=200"`
	MaxTokens int               `json:"max_tokens" validate:"gte=0,lte=8192"`
}

// GenerateResponse carries the humanized text.
type GenerateResponse struct {
	Text        string `json:"text"`
	Model       string `json:"model,omitempty"`
	Provider    string `json:"provider,omitempty"`
	TotalTokens int    `json:"total_tokens,omitempty"`
}

// GenerateHandler serves humanized text generation.
type GenerateHandler struct {
	humanizer TextHumanizer
}

// NewGenerateHandler wraps h.
func NewGenerateHandler(h TextHumanizer) *GenerateHandler {
	return &GenerateHandler{humanizer: h}
}

func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeInvalidInput, err, "request body must be a JSON object"))
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			apperrors.RespondWithError(w, r, apperrors.Detailed(r.Context(), apperrors.CodeValidation,
				"invalid generate request", map[string]interface{}{"fields": fields}))
			return
		}
		apperrors.RespondWithError(w, r, apperrors.Wrap(r.Context(), apperrors.CodeValidation, err, "invalid generate request"))
		return
	}

	res, err := h.humanizer.Generate(r.Context(), req.Prompt, humanizer.Options{
		MaxTokens:  req.MaxTokens,
		PromptSlug: platformPrompts[req.Platform],
		Variables:  req.Variables,
		Model:      req.Model,
	})
	if err != nil {
		failure := ailink.ClassifyError(err)
		details := map[string]interface{}{}
		if failure.Details != "" {
			details["provider_message"] = failure.Details
		}
		apperrors.RespondWithError(w, r, apperrors.Detailed(r.Context(), failure.Code, failure.Message, details))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(GenerateResponse{
		Text:        res.Text,
		Model:       res.Model,
		Provider:    res.Provider,
		TotalTokens: res.TotalTokens,
	})
}
