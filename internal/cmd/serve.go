package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/config"
	errwrap "github.com/postpilot/postpilot/internal/errors"
	"github.com/postpilot/postpilot/internal/metrics"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/offline"
	"github.com/postpilot/postpilot/internal/server"
	"github.com/postpilot/postpilot/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.New(errwrap.CodeInternal, "telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP API with graceful shutdown support.

Endpoints:
  POST /v1/generate              humanized post generation (rate limited)
  GET  /v1/rate-limit/{limiter}  limiter configuration
  GET  /health, /version, /metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-validate config (restart to apply changes)`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	overrides := map[string]any{}
	if cmd.Flags().Changed("host") || cmd.Flags().Changed("port") {
		serverOverrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			serverOverrides["host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			serverOverrides["port"] = serverPort
		}
		overrides["server"] = serverOverrides
	}

	cfg, err := config.LoadFile(ctx, cfgFile, overrides)
	if err != nil {
		return errors.Join(errConfig, err)
	}

	identity := appid.Get()
	namespace := identity.TelemetryNamespace
	if err := observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace); err != nil {
		return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "logger initialization failed")
	}
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "metrics initialization failed")
		}
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return errwrap.Wrap(ctx, errwrap.CodeDatabase, err, "store initialization failed")
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	limiters, closeLimiters, err := buildLimiters(ctx, cfg, db, logger)
	if err != nil {
		return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "rate limiter initialization failed")
	}
	defer closeLimiters() // nolint:errcheck // best-effort cleanup

	gen, err := buildGenerator(cfg, logger)
	if err != nil {
		return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "generator initialization failed")
	}
	h, err := buildHumanizer(cfg, gen.TextBackend(humanizerRole(cfg)), logger)
	if err != nil {
		return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "humanizer initialization failed")
	}

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("store_driver", db.Driver()),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.Strings("limiters", limiters.Names()))

	hm := handlers.NewHealthManager(versionInfo.Version)
	hm.RegisterChecker("store", handlers.HealthCheckFunc(db.Ping))
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithTimeouts(cfg.Server),
		server.WithBuildInfo(handlers.BuildInfo(versionInfo)),
		server.WithHealth(hm),
		server.WithMetricsPort(cfg.Metrics.Port),
		server.WithHumanizer(h),
		server.WithLimiters(limiters),
		server.WithTrustedUserHeader(cfg.RateLimit.TrustUserHeader),
	)

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Shutdown handlers run LIFO: the HTTP server stops first, the logger is
	// flushed last.
	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})
	signals.OnShutdown(func(ctx context.Context) error {
		defer cancel()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, stop := context.WithTimeout(ctx, shutdownTimeout)
		defer stop()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: validating configuration")
		if _, err := config.LoadFile(ctx, cfgFile); err != nil {
			logger.Error("Configuration reload failed", zap.Error(err))
			return errwrap.Wrap(ctx, errwrap.CodeConfigInvalid, err, "config reload failed")
		}
		logger.Info("Configuration is valid; restart to apply changes")
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	started := time.Now()
	metrics.SetServerStartTime(started.Unix())

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return signals.Listen(gctx)
	})

	if cfg.Cache.SweepInterval > 0 {
		cache := offline.NewCache(db, offline.WithLogger(logger))
		sweeper := offline.NewSweeper(cache, cfg.Cache.SweepInterval, logger)
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				metrics.SetServerUptime(int64(time.Since(started).Seconds()))
			}
		}
	})

	// A server failure cancels gctx; make sure the listener is closed too.
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return errwrap.Wrap(ctx, errwrap.CodeInternal, err, "server error")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
