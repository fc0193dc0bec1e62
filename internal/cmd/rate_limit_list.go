package cmd

import (
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/output"
	"github.com/postpilot/postpilot/internal/store"
)

var (
	rateLimitListAll     bool
	rateLimitListPrefix  string
	rateLimitListExpired bool
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit counters",
	Long: `List rate limit counters persisted by the store backend
(rate_limit.backend: store). Memory and redis counters are not listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.RateLimitQuery{
			All:     rateLimitListAll,
			Prefix:  strings.TrimSpace(rateLimitListPrefix),
			Expired: rateLimitListExpired,
		}
		if !query.All && query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		if len(entries) == 0 && target.format == output.FormatTable {
			return target.write(cmd, "rate-limit.list",
				strings.TrimRight(ascii.DrawBox("Rate Limits\n\n(no stored rate limit counters)", 0), "\n"))
		}

		rendered, err := output.NewFormatter(target.format).FormatRateLimits(entries, time.Now())
		if err != nil {
			return err
		}
		return target.write(cmd, "rate-limit.list", rendered)
	},
}

func init() {
	addOutputFlags(rateLimitListCmd, output.FormatTable, output.FormatJSON, output.FormatMarkdown)
	rateLimitListCmd.Flags().BoolVar(&rateLimitListAll, "all", false, "List all keys")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListExpired, "expired", false, "Only list counters whose window has ended")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List keys with matching prefix (e.g. generate:)")
}
