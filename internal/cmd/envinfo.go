package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"runtime"
	"slices"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/output"
)

// envSection is one titled block of envinfo output.
type envSection struct {
	Title string      `json:"title"`
	Rows  [][2]string `json:"rows"`
}

func (s *envSection) add(key string, value any) {
	s.Rows = append(s.Rows, [2]string{key, fmt.Sprint(value)})
}

func buildInfoSections() []envSection {
	versions := crucible.GetVersion()
	app := envSection{Title: "Application"}
	app.add("name", appid.Get().BinaryName)
	app.add("version", versionInfo.Version)
	app.add("commit", versionInfo.Commit)
	app.add("built", versionInfo.BuildDate)
	app.add("gofulmen", versions.Gofulmen)
	app.add("crucible", versions.Crucible)

	rt := envSection{Title: "Runtime"}
	rt.add("go", runtime.Version())
	rt.add("platform", runtime.GOOS+"/"+runtime.GOARCH)
	rt.add("cpus", runtime.NumCPU())
	return []envSection{app, rt}
}

func configSections(cfg *config.Config) []envSection {
	srv := envSection{Title: "Server"}
	srv.add("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	srv.add("log_level", cfg.Logging.Level)
	srv.add("metrics_port", cfg.Metrics.Port)
	srv.add("config_file", config.DefaultConfigPath())

	st := envSection{Title: "Store"}
	st.add("driver", cfg.Store.Driver)
	if cfg.Store.URL != "" {
		st.add("url", redactURL(cfg.Store.URL))
	} else {
		st.add("path", cfg.Store.Path)
	}

	cache := envSection{Title: "Offline cache"}
	cache.add("default_ttl", cfg.Cache.DefaultTTL)
	cache.add("sweep_interval", cfg.Cache.SweepInterval)
	cache.add("forced_offline", cfg.Cache.Offline)
	if cfg.Cache.ProbeAddr != "" {
		cache.add("probe_addr", cfg.Cache.ProbeAddr)
	}

	rl := envSection{Title: "Rate limiting"}
	rl.add("enabled", cfg.RateLimit.Enabled)
	rl.add("backend", cfg.RateLimit.Backend)
	rl.add("cleanup_probability", cfg.RateLimit.CleanupProbability)
	if cfg.RateLimit.Backend == "redis" {
		rl.add("redis_addr", cfg.RateLimit.Redis.Addr)
	}
	names := make([]string, 0, len(cfg.RateLimit.Limiters))
	for name := range cfg.RateLimit.Limiters {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		lc := cfg.RateLimit.Limiters[name]
		rl.add("limiter."+name, fmt.Sprintf("%d per %s", lc.Limit, lc.Window))
	}

	hz := envSection{Title: "Humanizer"}
	hz.add("role", humanizerRole(cfg))
	hz.add("temperature", cfg.Humanizer.Temperature)
	hz.add("top_p", cfg.Humanizer.TopP)
	hz.add("max_tokens", cfg.Humanizer.MaxTokens)
	hz.add("fillers", cfg.Humanizer.AddFillerWords)
	hz.add("grammar", cfg.Humanizer.AddGrammaticalVariations)
	hz.add("pauses", cfg.Humanizer.AddPauses)

	return []envSection{srv, st, cache, rl, hz, providerSection(cfg), aliasSection()}
}

func providerSection(cfg *config.Config) envSection {
	sec := envSection{Title: "AILink"}
	sec.add("default_provider", cmpOrUnset(cfg.AILink.DefaultProvider))
	sec.add("default_timeout", cfg.AILink.DefaultTimeout)

	ids := make([]string, 0, len(cfg.AILink.Providers))
	for id := range cfg.AILink.Providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p := cfg.AILink.Providers[id]
		keys := 0
		for _, c := range p.Credentials {
			if strings.TrimSpace(c.APIKey) != "" {
				keys++
			}
		}
		state := "disabled"
		if p.Enabled {
			state = "enabled"
		}
		sec.add(id, fmt.Sprintf("%s %s model=%s keys=%d/%d", state, p.AIProvider, p.Models["default"], keys, len(p.Credentials)))
	}
	return sec
}

func aliasSection() envSection {
	sec := envSection{Title: "Environment"}
	for _, alias := range config.EnvAliases() {
		sec.add(alias.Name, alias.Key+" "+envStatus(alias.Name))
	}
	return sec
}

func cmpOrUnset(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(unset)"
	}
	return v
}

// redactURL hides credentials embedded in a store URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	q := u.Query()
	if q.Has("authToken") {
		q.Set("authToken", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

func renderSections(sections []envSection, format output.Format) (string, error) {
	if format == output.FormatJSON {
		b, err := json.MarshalIndent(sections, "", "  ")
		return string(b), err
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(appid.Get().BinaryName + " environment")
	for i, sec := range sections {
		if i > 0 {
			t.AppendSeparator()
		}
		t.AppendRow(table.Row{strings.ToUpper(sec.Title), ""})
		for _, row := range sec.Rows {
			t.AppendRow(table.Row{"  " + row[0], row[1]})
		}
	}
	return t.Render(), nil
}

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display build, runtime and effective configuration details. Secrets are reported as set or unset only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		sections := buildInfoSections()
		if cfg, err := loadConfig(cmd.Context()); err != nil {
			observability.OrNop(observability.CLILogger).Warn("Config load failed", zap.Error(err))
		} else {
			sections = append(sections, configSections(cfg)...)
		}

		rendered, err := renderSections(sections, target.format)
		if err != nil {
			return err
		}
		return target.write(cmd, "envinfo", rendered)
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
	addOutputFlags(envInfoCmd, output.FormatTable, output.FormatJSON)
}
