package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/output"
	"github.com/postpilot/postpilot/internal/store"
)

var (
	rateLimitResetAll    bool
	rateLimitResetKey    string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
	rateLimitResetStale  bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored rate limit counters",
	Long: `Delete rate limit counters persisted by the store backend so the
affected identifiers start a fresh window on their next request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		query := store.RateLimitQuery{
			All:     rateLimitResetAll,
			Key:     strings.TrimSpace(rateLimitResetKey),
			Prefix:  strings.TrimSpace(rateLimitResetPrefix),
			Expired: rateLimitResetStale,
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !query.Expired && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
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

		matched, err := db.CountRateLimits(cmd.Context(), query)
		if err != nil {
			return err
		}

		var deleted int64
		if !rateLimitResetDryRun {
			if deleted, err = db.ResetRateLimits(cmd.Context(), query); err != nil {
				return err
			}
		}
		rendered, err := renderRateLimitReset(target.format, matched, deleted, rateLimitResetDryRun)
		if err != nil {
			return err
		}
		return target.write(cmd, "rate-limit.reset", rendered)
	},
}

func renderRateLimitReset(format output.Format, matched int, deleted int64, dryRun bool) (string, error) {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		return string(payload), err
	}
	if dryRun {
		return fmt.Sprintf("Would delete %d rate limit entr(ies)", matched), nil
	}
	return fmt.Sprintf("Deleted %d/%d rate limit entr(ies)", deleted, matched), nil
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset all keys")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetKey, "key", "", "Reset a single key (exact match, e.g. generate:user:alice)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset keys with matching prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetStale, "expired", false, "Only reset counters whose window has ended (--all --expired needs no --yes)")
	addOutputFlags(rateLimitResetCmd, output.FormatTable, output.FormatJSON)
}
