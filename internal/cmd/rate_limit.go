package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/observability"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect limiters and manage persisted rate limit state",
}

var rateLimitLimitersCmd = &cobra.Command{
	Use:   "limiters",
	Short: "Show configured limiters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Limiter", "Prefix", "Window", "Limit"})
		for name, lc := range cfg.RateLimit.Limiters {
			prefix := lc.Prefix
			if prefix == "" {
				prefix = name
			}
			t.AppendRow(table.Row{name, prefix, lc.Window, lc.Limit})
		}
		t.SortBy([]table.SortBy{{Name: "Limiter", Mode: table.Asc}})
		t.AppendFooter(table.Row{"backend", cfg.RateLimit.Backend, "enabled", cfg.RateLimit.Enabled})
		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	},
}

var rateLimitCheckCmd = &cobra.Command{
	Use:   "check <limiter> <identifier>",
	Short: "Consume one request from a limiter and print the decision",
	Long: `Run a single check against a configured limiter. The check counts as a
request. With the memory backend every invocation starts from an empty window.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cfg.RateLimit.Enabled = true
		limiters, closeLimiters, err := buildLimiters(ctx, cfg, db, observability.CLILogger)
		if err != nil {
			return err
		}
		defer closeLimiters() // nolint:errcheck // best-effort cleanup

		l, ok := limiters.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown limiter %q (configured: %v)", args[0], limiters.Names())
		}

		now := time.Now()
		res := l.Check(ctx, args[1])
		decision := "allowed"
		if !res.Allowed {
			decision = fmt.Sprintf("denied (retry in %s)", res.RetryAfter(now))
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, remaining %d/%d, resets %s\n",
			l.Key(args[1]), decision, res.Remaining, res.Limit, res.ResetAt.UTC().Format(time.RFC3339))
		return err
	},
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rateLimitCmd.AddCommand(rateLimitLimitersCmd)
	rateLimitCmd.AddCommand(rateLimitCheckCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
