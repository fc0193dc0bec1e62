package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/ailink"
	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/ailink/prompt"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/ratelimit"
	"github.com/postpilot/postpilot/internal/store"
)

const defaultRole = "writer"

func humanizerRole(cfg *config.Config) string {
	if role := strings.TrimSpace(cfg.Humanizer.Role); role != "" {
		return role
	}
	return defaultRole
}

func buildProviderRegistry(cfg *config.Config, logger observability.Logger) *ailink.Registry {
	var opts []ailink.RegistryOption
	if cfg.Breaker.Enabled {
		logger = observability.OrNop(logger)
		opts = append(opts, ailink.WithBreaker(driver.BreakerSettings{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
			OnStateChange: func(name, from, to string) {
				logger.Warn(fmt.Sprintf("Provider circuit %s: %s -> %s", name, from, to))
			},
		}))
	}
	return ailink.NewRegistry(cfg.AILink, opts...)
}

func buildGenerator(cfg *config.Config, logger observability.Logger) (*ailink.Generator, error) {
	prompts, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	return ailink.NewGenerator(buildProviderRegistry(cfg, logger), prompts,
		ailink.WithLogger(logger),
		ailink.WithDefaultRole(humanizerRole(cfg)),
		ailink.WithCallObserver(func(providerID string, err error, elapsed time.Duration, usage *driver.Usage) {
			tokens := 0
			if usage != nil {
				tokens = usage.TotalTokens
			}
			metrics.RecordGeneration(providerID, err == nil, elapsed, tokens)
		}),
	), nil
}

// humanizerConfig converts the config section into the humanizer's config.
func humanizerConfig(hc config.HumanizerConfig) humanizer.Config {
	return humanizer.Config{
		Temperature:              hc.Temperature,
		TopP:                     hc.TopP,
		AddFillerWords:           hc.AddFillerWords,
		AddGrammaticalVariations: hc.AddGrammaticalVariations,
		AddPauses:                hc.AddPauses,
		MaxTokens:                hc.MaxTokens,
	}
}

func buildHumanizer(cfg *config.Config, gen humanizer.TextGenerator, logger observability.Logger) (*humanizer.Humanizer, error) {
	opts := []humanizer.Option{humanizer.WithLogger(logger)}
	if cfg.Humanizer.Seed != 0 {
		opts = append(opts, humanizer.WithSeed(cfg.Humanizer.Seed))
	}
	return humanizer.New(gen, humanizerConfig(cfg.Humanizer), opts...)
}

// buildLimiters returns nil when rate limiting is disabled. The returned
// cleanup releases the backend connection.
func buildLimiters(ctx context.Context, cfg *config.Config, db *store.Store, logger observability.Logger) (*ratelimit.Registry, func() error, error) {
	noop := func() error { return nil }
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}

	backend, closeBackend, err := ratelimit.NewStore(ctx, cfg.RateLimit, db)
	if err != nil {
		return nil, noop, err
	}

	reg, err := ratelimit.NewRegistry(cfg.RateLimit.Limiters,
		ratelimit.WithStore(backend),
		ratelimit.WithCleanupProbability(cfg.RateLimit.CleanupProbability),
		ratelimit.WithLogger(logger),
	)
	if err != nil {
		_ = closeBackend()
		return nil, noop, err
	}
	return reg, closeBackend, nil
}
