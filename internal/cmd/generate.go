package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/humanizer"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/output"
	"github.com/postpilot/postpilot/internal/ratelimit"
)

var platformPrompts = map[string]string{
	"x":        "x-post",
	"linkedin": "linkedin-post",
	"facebook": "facebook-post",
	"reply":    "reply",
}

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a humanized post",
	Long: `Generate text with the configured AI provider and humanize it.

Pass a free-form prompt, a --platform template, or both (the prompt is then
appended to the template as extra instructions).`,
	Example: `  postpilot generate "announce our spring sale"
  postpilot generate --platform x --var topic="spring sale" --var tone=playful
  postpilot generate --platform reply --context-file thread.txt --raw`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("platform", "", "Post template: x, linkedin, facebook, reply")
	generateCmd.Flags().StringToString("var", nil, "Template variable (repeatable, key=value)")
	generateCmd.Flags().String("context-file", "", "Read the context variable from a file (truncated to 2000 chars)")
	generateCmd.Flags().String("model", "", "Model override")
	generateCmd.Flags().Int("max-tokens", 0, "Max tokens override")
	generateCmd.Flags().Uint64("seed", 0, "Seed the humanizer for reproducible output")
	generateCmd.Flags().Bool("raw", false, "Skip humanization")
	generateCmd.Flags().Bool("no-fillers", false, "Disable filler words")
	generateCmd.Flags().Bool("no-grammar", false, "Disable grammatical variations")
	generateCmd.Flags().Bool("no-pauses", false, "Disable pauses")
	addOutputFlags(generateCmd, output.FormatTable, output.FormatJSON, output.FormatMarkdown)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	promptText := ""
	if len(args) > 0 {
		promptText = strings.TrimSpace(args[0])
	}
	platform, _ := cmd.Flags().GetString("platform")
	platform = strings.ToLower(strings.TrimSpace(platform))
	slug := ""
	if platform != "" {
		var ok bool
		if slug, ok = platformPrompts[platform]; !ok {
			return fmt.Errorf("unknown platform %q (want x, linkedin, facebook or reply)", platform)
		}
	}
	if promptText == "" && slug == "" {
		return errors.New("a prompt or --platform is required")
	}

	variables, _ := cmd.Flags().GetStringToString("var")
	if variables == nil {
		variables = map[string]string{}
	}
	if contextFile, _ := cmd.Flags().GetString("context-file"); contextFile != "" {
		content, err := readTruncatedFile(contextFile, 2000)
		if err != nil {
			return fmt.Errorf("reading context file: %w", err)
		}
		variables["context"] = content
	}
	modelOverride, _ := cmd.Flags().GetString("model")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")

	target, err := resolveOutput(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	hc := cfg.Humanizer
	if seed, _ := cmd.Flags().GetUint64("seed"); seed != 0 {
		hc.Seed = seed
	}
	raw, _ := cmd.Flags().GetBool("raw")
	if off, _ := cmd.Flags().GetBool("no-fillers"); off || raw {
		hc.AddFillerWords = false
	}
	if off, _ := cmd.Flags().GetBool("no-grammar"); off || raw {
		hc.AddGrammaticalVariations = false
	}
	if off, _ := cmd.Flags().GetBool("no-pauses"); off || raw {
		hc.AddPauses = false
	}
	cfg.Humanizer = hc

	logger := observability.CLILogger

	// Shared backends let CLI runs count against the same budget as the API.
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend != ratelimit.BackendMemory {
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		limiters, closeLimiters, err := buildLimiters(ctx, cfg, db, logger)
		if err != nil {
			return err
		}
		defer closeLimiters() // nolint:errcheck // best-effort cleanup

		if l, ok := limiters.Get("generate"); ok {
			res := l.Check(ctx, "cli:"+localUser())
			if !res.Allowed {
				return fmt.Errorf("generate rate limit reached; retry in %s", res.RetryAfter(time.Now()))
			}
		}
	}

	gen, err := buildGenerator(cfg, logger)
	if err != nil {
		return err
	}
	h, err := buildHumanizer(cfg, gen.TextBackend(humanizerRole(cfg)), logger)
	if err != nil {
		return err
	}

	result, err := h.Generate(ctx, promptText, humanizer.Options{
		MaxTokens:  maxTokens,
		PromptSlug: slug,
		Variables:  variables,
		Model:      modelOverride,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	logger.Debug("Generation complete",
		zap.String("provider", result.Provider),
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.TotalTokens))

	rendered, err := output.NewFormatter(target.format).FormatGeneration(result)
	if err != nil {
		return err
	}
	stem := "generate"
	if slug != "" {
		stem = slug
	}
	return target.write(cmd, stem, rendered)
}

func localUser() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "local"
}

func readTruncatedFile(path string, maxLen int) (result string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if maxLen <= 0 {
		return "", nil
	}

	reader := bufio.NewReader(f)
	var builder strings.Builder
	builder.Grow(maxLen + 3)

	count := 0
	for count < maxLen+1 {
		r, _, readErr := reader.ReadRune()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return "", readErr
		}
		if count < maxLen {
			builder.WriteRune(r)
		}
		count++
	}

	content := builder.String()
	if count > maxLen {
		content += "..."
	}
	return content, nil
}
