package ailink

import (
	"context"

	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/humanizer"
)

// TextBackend adapts the generator to humanizer.TextGenerator. Every call is
// routed through role unless the role is empty, in which case the generator's
// default role applies.
func (g *Generator) TextBackend(role string) humanizer.TextGenerator {
	return humanizer.GeneratorFunc(func(ctx context.Context, prompt string, p humanizer.Params) (*humanizer.Generation, error) {
		res, err := g.Generate(ctx, TextRequest{
			Role:        role,
			PromptSlug:  p.PromptSlug,
			Variables:   p.Variables,
			Prompt:      prompt,
			Model:       p.Model,
			Temperature: driver.Float64(p.Temperature),
			TopP:        driver.Float64(p.TopP),
			MaxTokens:   p.MaxTokens,
		})
		if err != nil {
			return nil, err
		}

		total := 0
		if res.Usage != nil {
			total = res.Usage.TotalTokens
		}
		return &humanizer.Generation{
			Text:        res.Text,
			Model:       res.Model,
			Provider:    res.ProviderID,
			TotalTokens: total,
		}, nil
	})
}
