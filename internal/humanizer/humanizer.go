// Package humanizer wraps a text generator and roughens its output so it
// reads less like a model wrote it.
package humanizer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/observability"
)

// Params are the sampling settings sent to the generator for one call.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int

	// Optional routing hints passed through untouched.
	PromptSlug string
	Variables  map[string]string
	Model      string
}

// Generation is the generator's raw answer.
type Generation struct {
	Text        string
	Model       string
	Provider    string
	TotalTokens int
}

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, params Params) (*Generation, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string, params Params) (*Generation, error)

func (f GeneratorFunc) GenerateText(ctx context.Context, prompt string, params Params) (*Generation, error) {
	return f(ctx, prompt, params)
}

// Config is fixed for the lifetime of a Humanizer.
type Config struct {
	Temperature              float64 `validate:"gte=0,lte=1"`
	TopP                     float64 `validate:"gte=0,lte=1"`
	AddFillerWords           bool
	AddGrammaticalVariations bool
	AddPauses                bool

	// MaxTokens is used when a call does not set its own.
	MaxTokens int `validate:"gte=0"`
}

var validate = validator.New()

// Options are per-call overrides.
type Options struct {
	MaxTokens  int
	PromptSlug string
	Variables  map[string]string
	Model      string
}

// Result is the humanized text plus what the generator returned.
type Result struct {
	Text        string
	Raw         string
	Model       string
	Provider    string
	TotalTokens int
}

// Option configures a Humanizer.
type Option func(*Humanizer)

// WithRand sets the random source. Tests pass a fixed source to force or
// suppress every random step.
func WithRand(r *rand.Rand) Option {
	return func(h *Humanizer) {
		if r != nil {
			h.rng = r
		}
	}
}

// WithSeed makes the transforms reproducible.
func WithSeed(seed uint64) Option {
	return func(h *Humanizer) { h.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(h *Humanizer) { h.logger = observability.OrNop(logger) }
}

// Humanizer generates text and post-processes it. It is safe for concurrent
// use.
type Humanizer struct {
	gen    TextGenerator
	cfg    Config
	logger observability.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New validates cfg and returns a Humanizer around gen.
func New(gen TextGenerator, cfg Config, opts ...Option) (*Humanizer, error) {
	if gen == nil {
		return nil, errors.New("text generator is required")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid humanizer config: %w", err)
	}

	h := &Humanizer{
		gen:    gen,
		cfg:    cfg,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rng == nil {
		h.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return h, nil
}

// Config returns the instance configuration.
func (h *Humanizer) Config() Config { return h.cfg }

// Generate calls the generator and humanizes its text. Generator errors are
// returned unchanged.
func (h *Humanizer) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	maxTokens := h.cfg.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	gen, err := h.gen.GenerateText(ctx, prompt, Params{
		Temperature: h.cfg.Temperature,
		TopP:        h.cfg.TopP,
		MaxTokens:   maxTokens,
		PromptSlug:  opts.PromptSlug,
		Variables:   opts.Variables,
		Model:       opts.Model,
	})
	if err != nil {
		return nil, err
	}
	if gen == nil {
		gen = &Generation{}
	}

	text := h.Humanize(gen.Text)
	h.logger.Debug("Humanized generated text",
		zap.Int("raw_len", len(gen.Text)),
		zap.Int("humanized_len", len(text)),
		zap.String("model", gen.Model))

	return &Result{
		Text:        text,
		Raw:         gen.Text,
		Model:       gen.Model,
		Provider:    gen.Provider,
		TotalTokens: gen.TotalTokens,
	}, nil
}

// GenerateText is Generate returning only the humanized text.
func (h *Humanizer) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	res, err := h.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Humanize applies the enabled transforms to text in order: fillers, then
// grammatical variation, then pauses.
func (h *Humanizer) Humanize(text string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cfg.AddFillerWords {
		text = addFillerWords(text, h.rng)
	}
	if h.cfg.AddGrammaticalVariations {
		text = addGrammaticalVariations(text, h.rng)
	}
	if h.cfg.AddPauses {
		text = addPauses(text, h.rng)
	}
	return text
}
