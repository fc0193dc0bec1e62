package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the configuration loads and the store opens.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.New(errwrap.CodeConfigInvalid, "Logger not initialized"))
			return
		}
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.New(errwrap.CodeConfigInvalid, "Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration loaded")

		db, err := openStore(ctx, cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Store unavailable", err)
			return
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup
		if err := db.Ping(ctx); err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Store ping failed", err)
			return
		}
		logger.Info("✅ Store reachable", zap.String("driver", cfg.Store.Driver))

		_, closeLimiters, err := buildLimiters(ctx, cfg, db, logger)
		if err != nil {
			code := foundry.ExitFailure
			if cfg.RateLimit.Backend == "redis" {
				code = foundry.ExitExternalServiceUnavailable
			}
			ExitWithCode(logger, code, "Rate limiter backend unavailable", err)
			return
		}
		defer closeLimiters() // nolint:errcheck // best-effort cleanup
		logger.Info("✅ Rate limiters ready", zap.String("backend", cfg.RateLimit.Backend))

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
