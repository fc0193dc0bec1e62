package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           filepath.Base(os.Args[0]),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Disable global telemetry early so CLI commands never emit metrics to
	// stdout. serve installs the Prometheus-backed system.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	identity := appid.Get()
	rootCmd.Use = identity.BinaryName
	rootCmd.Short = identity.Description
	rootCmd.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.", identity.BinaryName, identity.Description)

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace provider requests/responses to NDJSON file")
}

// initLogging sets up the CLI logger and optional provider tracing before any
// command runs.
func initLogging() {
	if err := observability.InitCLILogger(appid.Get().BinaryName, verbose); err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if traceFile != "" {
		// The trace file stays open for the life of the process.
		if _, err := driver.EnableTracing(traceFile); err != nil {
			observability.CLILogger.Warn("Failed to enable tracing", zap.Error(err))
		} else {
			observability.CLILogger.Debug("Provider tracing enabled", zap.String("file", traceFile))
		}
	}
}

// loadConfig loads configuration honoring --config.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return cfg, nil
}
