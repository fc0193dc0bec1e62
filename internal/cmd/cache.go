package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/offline"
	"github.com/postpilot/postpilot/internal/output"
	"github.com/postpilot/postpilot/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the offline response cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the cached response for a key",
	Args:  cobra.ExactArgs(1),
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

		cache := offline.NewCache(db, offline.WithLogger(observability.CLILogger))
		data, ok := cache.Get(ctx, args[0])
		if !ok {
			return fmt.Errorf("cache %s: %w", args[0], offline.ErrNotCached)
		}

		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}
		w, closeOut, err := target.open(cmd, args[0])
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			_ = closeOut()
			return err
		}
		return closeOut()
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}
		prefix, _ := cmd.Flags().GetString("prefix")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		rows, err := db.ListResponses(ctx, store.ResponseQuery{Prefix: strings.TrimSpace(prefix), Limit: limit})
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(target.format).FormatResponses(rows, time.Now())
		if err != nil {
			return err
		}
		return target.write(cmd, "cache.list", rendered)
	},
}

var cacheClearExpiredCmd = &cobra.Command{
	Use:   "clear-expired",
	Short: "Delete expired cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		removed := offline.NewCache(db, offline.WithLogger(observability.CLILogger)).ClearExpired(ctx)

		rendered := fmt.Sprintf("Removed %d expired response(s)", removed)
		if target.format == output.FormatJSON {
			payload, err := json.MarshalIndent(map[string]any{"removed": removed}, "", "  ")
			if err != nil {
				return err
			}
			rendered = string(payload)
		}
		return target.write(cmd, "cache.clear-expired", rendered)
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheGetCmd, cacheListCmd, cacheClearExpiredCmd)

	addOutputFlags(cacheGetCmd)

	cacheListCmd.Flags().String("prefix", "", "Only keys with this prefix")
	cacheListCmd.Flags().Int("limit", 100, "Maximum rows to list (0 for all)")
	addOutputFlags(cacheListCmd, output.FormatTable, output.FormatJSON, output.FormatMarkdown)

	addOutputFlags(cacheClearExpiredCmd, output.FormatTable, output.FormatJSON)
}
