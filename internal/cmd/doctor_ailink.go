package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/ailink"
	"github.com/postpilot/postpilot/internal/ailink/prompt"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/output"
)

var (
	doctorAILinkRole  string
	doctorAILinkModel string
	doctorAILinkTier  string
)

// aiLinkReport explains how a role and prompt resolve to a provider call.
// API keys are reported as set or unset only.
type aiLinkReport struct {
	Role            string   `json:"role"`
	Prompt          string   `json:"prompt"`
	Route           string   `json:"route"`
	Provider        string   `json:"provider"`
	AIProvider      string   `json:"ai_provider"`
	BaseURL         string   `json:"base_url,omitempty"`
	Fallbacks       []string `json:"fallbacks,omitempty"`
	Model           string   `json:"model"`
	ModelSource     string   `json:"model_source"`
	SelectionPolicy string   `json:"selection_policy"`
	Credential      string   `json:"credential"`
	Priority        int      `json:"priority"`
	APIKeySet       bool     `json:"api_key_set"`
}

func newAILinkReport(role, slug string, resolved *ailink.ResolvedProvider, fallbacks []string) aiLinkReport {
	return aiLinkReport{
		Role:            role,
		Prompt:          slug,
		Route:           string(resolved.Route),
		Provider:        resolved.ProviderID,
		AIProvider:      resolved.Provider.AIProvider,
		BaseURL:         resolved.Provider.BaseURL,
		Fallbacks:       fallbacks,
		Model:           resolved.Model,
		ModelSource:     resolved.ModelSource,
		SelectionPolicy: resolved.Provider.Policy(),
		Credential:      resolved.Credential.Label,
		Priority:        resolved.Credential.Priority,
		APIKeySet:       strings.TrimSpace(resolved.Credential.APIKey) != "",
	}
}

func (r aiLinkReport) render(format output.Format) (string, error) {
	if format == output.FormatJSON {
		b, err := json.MarshalIndent(r, "", "  ")
		return string(b), err
	}

	keyState := "not set"
	if r.APIKeySet {
		keyState = "set"
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("AILink resolution")
	t.AppendRows([]table.Row{
		{"role", r.Role},
		{"prompt", r.Prompt},
		{"route", r.Route},
		{"provider", fmt.Sprintf("%s (%s)", r.Provider, r.AIProvider)},
		{"base_url", r.BaseURL},
		{"fallbacks", strings.Join(r.Fallbacks, ", ")},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"model", r.Model},
		{"model_source", r.ModelSource},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"selection_policy", r.SelectionPolicy},
		{"credential", fmt.Sprintf("%s (priority %d)", r.Credential, r.Priority)},
		{"api_key", keyState},
	})
	return t.Render(), nil
}

var doctorAILinkCmd = &cobra.Command{
	Use:   "ailink [prompt-slug]",
	Short: "Inspect AILink provider resolution",
	Long:  "Resolve the generation role and a post template to a provider instance and show credential selection.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		slug := platformPrompts["x"]
		if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
			slug = strings.TrimSpace(args[0])
		}
		role := strings.TrimSpace(doctorAILinkRole)
		if role == "" {
			role = humanizerRole(cfg)
		}

		prompts, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			return fmt.Errorf("load prompt registry: %w", err)
		}
		def, err := prompts.Get(slug)
		if err != nil {
			return err
		}

		providers := ailink.NewRegistry(cfg.AILink)
		resolved, err := providers.Resolve(role, def, doctorAILinkModel, doctorAILinkTier)
		if err != nil {
			return fmt.Errorf("resolve provider: %w", err)
		}

		report := newAILinkReport(role, slug, resolved, providers.Fallbacks(role))
		if !report.APIKeySet {
			observability.OrNop(observability.CLILogger).Warn("Selected credential has no API key",
				zap.String("provider", report.Provider))
		}
		rendered, err := report.render(target.format)
		if err != nil {
			return err
		}
		return target.write(cmd, "doctor.ailink", rendered)
	},
}

func init() {
	doctorCmd.AddCommand(doctorAILinkCmd)

	addOutputFlags(doctorAILinkCmd, output.FormatTable, output.FormatJSON)
	doctorAILinkCmd.Flags().StringVar(&doctorAILinkRole, "role", "", "Role to resolve (defaults to humanizer.role)")
	doctorAILinkCmd.Flags().StringVar(&doctorAILinkTier, "tier", "", "Model tier to resolve (fast, quality)")
	doctorAILinkCmd.Flags().StringVar(&doctorAILinkModel, "model", "", "Model override (defaults to prompt/provider config)")
}
