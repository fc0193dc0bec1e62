package ailink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/ailink/content"
	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/ailink/prompt"
	"github.com/postpilot/postpilot/internal/observability"
)

// TextRequest asks a provider for one piece of text. Either PromptSlug or
// Prompt must be set; when both are, Prompt is appended to the rendered user
// template as extra instructions.
type TextRequest struct {
	Role       string
	PromptSlug string
	Variables  map[string]string
	Prompt     string
	System     string
	Model      string
	Tier       string

	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

// TextResult is the raw provider output plus provenance.
type TextResult struct {
	Text         string
	ProviderID   string
	Driver       string
	Model        string
	FinishReason string
	Usage        *driver.Usage
	Duration     time.Duration
}

// CallObserver is notified after every provider attempt.
type CallObserver func(providerID string, err error, elapsed time.Duration, usage *driver.Usage)

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the generator logger.
func WithLogger(l observability.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = observability.OrNop(l) }
}

// WithCallObserver registers a hook for metrics.
func WithCallObserver(fn CallObserver) GeneratorOption {
	return func(g *Generator) { g.observe = fn }
}

// WithDefaultRole sets the role used when a request names none.
func WithDefaultRole(role string) GeneratorOption {
	return func(g *Generator) { g.defaultRole = strings.TrimSpace(role) }
}

// Generator turns TextRequests into provider completions.
type Generator struct {
	registry    *Registry
	prompts     prompt.Registry
	logger      observability.Logger
	observe     CallObserver
	defaultRole string
}

// NewGenerator builds a generator. prompts may be nil when only free-form
// prompts are used.
func NewGenerator(registry *Registry, prompts prompt.Registry, opts ...GeneratorOption) *Generator {
	g := &Generator{
		registry: registry,
		prompts:  prompts,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders the request, resolves a provider for its role and calls it.
// A transient failure moves on to the role's configured fallbacks; the last
// error is returned when every provider fails.
func (g *Generator) Generate(ctx context.Context, req TextRequest) (*TextResult, error) {
	if g == nil || g.registry == nil {
		return nil, fmt.Errorf("generator not configured")
	}

	promptDef, messages, err := g.buildMessages(req)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = g.defaultRole
	}
	tier := strings.TrimSpace(req.Tier)
	if tier == "" && promptDef != nil {
		if hint, ok := promptDef.Config.ProviderHints["tier"].(string); ok {
			tier = hint
		}
	}

	resolved, err := g.registry.Resolve(role, promptDef, req.Model, tier)
	if err != nil {
		return nil, err
	}

	result, err := g.complete(ctx, resolved, req, messages)
	if err == nil || !driver.IsTransient(err) {
		return result, err
	}

	for _, providerID := range g.registry.Fallbacks(role) {
		if providerID == resolved.ProviderID {
			continue
		}
		if ctx.Err() != nil {
			return nil, err
		}
		fallback, rerr := g.registry.ResolveID(providerID, promptDef, req.Model, tier)
		if rerr != nil {
			g.logger.Warn("Skipping fallback provider", zap.String("provider", providerID), zap.Error(rerr))
			continue
		}
		g.logger.Warn("Primary provider failed, trying fallback",
			zap.String("failed_provider", resolved.ProviderID),
			zap.String("fallback_provider", providerID),
			zap.Error(err))

		result, ferr := g.complete(ctx, fallback, req, messages)
		if ferr == nil {
			return result, nil
		}
		err = ferr
		if !driver.IsTransient(ferr) {
			break
		}
	}
	return nil, err
}

func (g *Generator) complete(ctx context.Context, resolved *ResolvedProvider, req TextRequest, messages []content.Message) (*TextResult, error) {
	started := time.Now()
	resp, err := resolved.Driver.Complete(ctx, &driver.Request{
		Model:       resolved.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   driver.Int(req.MaxTokens),
		PromptSlug:  req.PromptSlug,
	})
	elapsed := time.Since(started)

	var usage *driver.Usage
	if resp != nil {
		usage = resp.Usage
	}
	if g.observe != nil {
		g.observe(resolved.ProviderID, err, elapsed, usage)
	}
	if err != nil {
		g.logger.Debug("Provider call failed",
			zap.String("provider", resolved.ProviderID),
			zap.String("model", resolved.Model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	model := resolved.Model
	if strings.TrimSpace(resp.Model) != "" {
		model = resp.Model
	}
	g.logger.Debug("Provider call completed",
		zap.String("provider", resolved.ProviderID),
		zap.String("model", model),
		zap.Duration("elapsed", elapsed))

	return &TextResult{
		Text:         strings.TrimSpace(resp.Text()),
		ProviderID:   resolved.ProviderID,
		Driver:       resolved.Driver.Name(),
		Model:        model,
		FinishReason: resp.FinishReason,
		Usage:        usage,
		Duration:     elapsed,
	}, nil
}

func (g *Generator) buildMessages(req TextRequest) (*prompt.Prompt, []content.Message, error) {
	system := strings.TrimSpace(req.System)
	user := strings.TrimSpace(req.Prompt)

	var promptDef *prompt.Prompt
	if slug := strings.TrimSpace(req.PromptSlug); slug != "" {
		if g.prompts == nil {
			return nil, nil, fmt.Errorf("prompt registry not configured")
		}
		def, err := g.prompts.Get(slug)
		if err != nil {
			return nil, nil, err
		}
		renderedSystem, renderedUser, err := def.Render(req.Variables)
		if err != nil {
			return nil, nil, err
		}
		promptDef = def
		if system == "" {
			system = renderedSystem
		}
		if user != "" {
			user = renderedUser + "\n\n" + user
		} else {
			user = renderedUser
		}
	}

	if user == "" {
		return nil, nil, fmt.Errorf("prompt is required")
	}

	messages := make([]content.Message, 0, 2)
	if system != "" {
		messages = append(messages, content.TextMessage("system", system))
	}
	messages = append(messages, content.TextMessage("user", user))
	return promptDef, messages, nil
}
