package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/offline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a URL through the offline cache",
	Long: `Fetch a URL, caching successful responses for offline use.

When the network is unreachable (or --offline is set) the last cached response
is served instead. If the live request fails, a cached copy is served with a
warning.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("key", "", "Cache key (default: the URL)")
	fetchCmd.Flags().Duration("ttl", 0, "Cache TTL for a live response (default: cache.default_ttl)")
	fetchCmd.Flags().Bool("offline", false, "Serve from cache without network access")
	addOutputFlags(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rawURL := strings.TrimSpace(args[0])
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid url %q: want http(s)://host/...", rawURL)
	}

	key, _ := cmd.Flags().GetString("key")
	if key = strings.TrimSpace(key); key == "" {
		key = rawURL
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Cache.DefaultTTL
	}
	forceOffline, _ := cmd.Flags().GetBool("offline")
	target, err := resolveOutput(cmd)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	logger := observability.CLILogger
	fetcher := &offline.Fetcher{
		Cache: offline.NewCache(db, offline.WithLogger(logger)),
		Connectivity: &offline.Probe{
			Addr:         probeAddr(cfg.Cache.ProbeAddr, parsed),
			Timeout:      cfg.Cache.ProbeTimeout,
			ForceOffline: forceOffline || cfg.Cache.Offline,
		},
		DefaultTTL: ttl,
		Logger:     logger,
	}

	identity := appid.Get()
	live := (&offline.HTTPFetcher{UserAgent: identity.BinaryName + "/" + versionInfo.Version}).Get(rawURL)

	started := time.Now()
	result, err := fetcher.Fetch(ctx, key, live)
	if err != nil {
		if errors.Is(err, offline.ErrNotCached) {
			return fmt.Errorf("fetch %s: %w", key, err)
		}
		return err
	}
	logFetch(logger, key, result, time.Since(started))

	w, closeOut, err := target.open(cmd, key)
	if err != nil {
		return err
	}
	if _, err := w.Write(result.Data); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}

// probeAddr prefers the configured probe address, else dials the target host.
func probeAddr(configured string, target *url.URL) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if port := target.Port(); port != "" {
		return target.Host
	}
	if target.Scheme == "http" {
		return net.JoinHostPort(target.Hostname(), "80")
	}
	return net.JoinHostPort(target.Hostname(), "443")
}

// logFetch records where the data came from. Stale fallbacks are already
// warned about by the fetcher.
func logFetch(logger observability.Logger, key string, result *offline.Result, elapsed time.Duration) {
	observability.OrNop(logger).Debug("Fetch complete",
		zap.String("key", key),
		zap.String("source", string(result.Source)),
		zap.Int("bytes", len(result.Data)),
		zap.Duration("elapsed", elapsed))
}
