package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"go/version"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/ailink"
	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/observability"
	"github.com/postpilot/postpilot/internal/output"
	"github.com/postpilot/postpilot/internal/store"
)

const minGoVersion = "go1.23"

type checkStatus string

const (
	statusOK   checkStatus = "ok"
	statusWarn checkStatus = "warn"
	statusFail checkStatus = "fail"
	statusSkip checkStatus = "skip"
)

var statusIcons = map[checkStatus]string{
	statusOK:   "✅",
	statusWarn: "⚠️ ",
	statusFail: "❌",
	statusSkip: "➖",
}

// checkResult is one row of doctor output.
type checkResult struct {
	Name   string      `json:"name"`
	Status checkStatus `json:"status"`
	Detail string      `json:"detail"`
	Hint   string      `json:"hint,omitempty"`
}

// doctorRun carries state shared between checks. Later checks skip when an
// earlier one could not load config or open the store.
type doctorRun struct {
	ctx     context.Context
	logger  observability.Logger
	cfg     *config.Config
	db      *store.Store
	closers []func() error
}

func (d *doctorRun) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

type doctorCheck struct {
	name string
	run  func(*doctorRun) checkResult
}

var doctorChecks = []doctorCheck{
	{"go runtime", checkRuntime},
	{"crucible", checkCrucible},
	{"config", checkConfig},
	{"store", checkStore},
	{"offline cache", checkOfflineCache},
	{"rate limiters", checkLimiters},
	{"ai backend", checkAIBackendStep},
}

func checkRuntime(*doctorRun) checkResult {
	goVersion := runtime.Version()
	detail := fmt.Sprintf("%s %s/%s", goVersion, runtime.GOOS, runtime.GOARCH)
	if version.IsValid(goVersion) && version.Compare(goVersion, minGoVersion) < 0 {
		return checkResult{Status: statusWarn, Detail: detail, Hint: "recommended: " + minGoVersion + "+"}
	}
	return checkResult{Status: statusOK, Detail: detail}
}

func checkCrucible(*doctorRun) checkResult {
	v := crucible.GetVersion()
	if v.Crucible == "" {
		return checkResult{Status: statusFail, Detail: "crucible catalog not embedded"}
	}
	return checkResult{Status: statusOK, Detail: "v" + v.Crucible + ", gofulmen " + v.Gofulmen}
}

func checkConfig(d *doctorRun) checkResult {
	path := config.DefaultConfigPath()
	if cfgFile != "" {
		path = cfgFile
	}
	cfg, err := loadConfig(d.ctx)
	if err != nil {
		return checkResult{Status: statusFail, Detail: err.Error(), Hint: "run 'doctor validate' for details"}
	}
	d.cfg = cfg
	if !fileExists(path) {
		return checkResult{Status: statusWarn, Detail: "defaults only, " + path + " missing", Hint: "run 'doctor init'"}
	}
	return checkResult{Status: statusOK, Detail: path}
}

func checkStore(d *doctorRun) checkResult {
	if d.cfg == nil {
		return checkResult{Status: statusSkip, Detail: "config not loaded"}
	}
	db, err := openStore(d.ctx, d.cfg)
	if err != nil {
		return checkResult{Status: statusFail, Detail: err.Error()}
	}
	d.closers = append(d.closers, db.Close)
	if err := db.Ping(d.ctx); err != nil {
		return checkResult{Status: statusFail, Detail: "ping: " + err.Error()}
	}
	d.db = db
	return checkResult{Status: statusOK, Detail: describeStore(d.cfg)}
}

func checkOfflineCache(d *doctorRun) checkResult {
	if d.db == nil {
		return checkResult{Status: statusSkip, Detail: "store unavailable"}
	}
	rows, err := d.db.ListResponses(d.ctx, store.ResponseQuery{})
	if err != nil {
		return checkResult{Status: statusFail, Detail: err.Error()}
	}
	now := time.Now()
	expired := 0
	for _, row := range rows {
		if row.Expired(now) {
			expired++
		}
	}
	res := checkResult{
		Status: statusOK,
		Detail: fmt.Sprintf("%d entries, %d expired, ttl %s", len(rows), expired, d.cfg.Cache.DefaultTTL),
	}
	if expired > 0 {
		res.Hint = fmt.Sprintf("run '%s cache clear-expired'", appid.Get().BinaryName)
	}
	return res
}

func checkLimiters(d *doctorRun) checkResult {
	switch {
	case d.cfg == nil:
		return checkResult{Status: statusSkip, Detail: "config not loaded"}
	case !d.cfg.RateLimit.Enabled:
		return checkResult{Status: statusWarn, Detail: "rate limiting disabled"}
	case d.cfg.RateLimit.Backend == "store" && d.db == nil:
		return checkResult{Status: statusSkip, Detail: "store unavailable"}
	}
	reg, closeFn, err := buildLimiters(d.ctx, d.cfg, d.db, d.logger)
	if err != nil {
		return checkResult{Status: statusFail, Detail: d.cfg.RateLimit.Backend + " backend: " + err.Error()}
	}
	d.closers = append(d.closers, closeFn)
	return checkResult{Status: statusOK, Detail: d.cfg.RateLimit.Backend + " backend: " + strings.Join(reg.Names(), ", ")}
}

func checkAIBackendStep(d *doctorRun) checkResult {
	if d.cfg == nil {
		return checkResult{Status: statusSkip, Detail: "config not loaded"}
	}
	if err := checkAIBackend(d.cfg); err != nil {
		return checkResult{Status: statusWarn, Detail: err.Error(), Hint: "see 'doctor ailink'"}
	}
	return checkResult{Status: statusOK, Detail: fmt.Sprintf("role %q resolves", humanizerRole(d.cfg))}
}

// checkAIBackend reports whether the humanizer role resolves to a provider
// credential with an API key.
func checkAIBackend(cfg *config.Config) error {
	resolved, err := ailink.NewRegistry(cfg.AILink).Resolve(humanizerRole(cfg), nil, "", "")
	if err != nil {
		return err
	}
	if strings.TrimSpace(resolved.Credential.APIKey) == "" {
		return fmt.Errorf("provider %s has no API key", resolved.ProviderID)
	}
	return nil
}

func runDoctor(ctx context.Context, logger observability.Logger, checks []doctorCheck) []checkResult {
	d := &doctorRun{ctx: ctx, logger: logger}
	defer d.close()

	results := make([]checkResult, 0, len(checks))
	for _, c := range checks {
		res := c.run(d)
		res.Name = c.name
		logger.Debug("doctor check", zap.String("check", c.name), zap.String("status", string(res.Status)))
		results = append(results, res)
	}
	return results
}

func renderDoctor(results []checkResult, format output.Format) (string, error) {
	if format == output.FormatJSON {
		b, err := json.MarshalIndent(results, "", "  ")
		return string(b), err
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(appid.Get().BinaryName + " doctor")
	t.AppendHeader(table.Row{"", "Check", "Result", "Hint"})
	for _, r := range results {
		t.AppendRow(table.Row{statusIcons[r.Status], r.Name, r.Detail, r.Hint})
	}
	return t.Render(), nil
}

func failedChecks(results []checkResult) []string {
	var failed []string
	for _, r := range results {
		if r.Status == statusFail {
			failed = append(failed, r.Name)
		}
	}
	return failed
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues. Exits non-zero when a check fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd)
		if err != nil {
			return err
		}

		results := runDoctor(cmd.Context(), observability.OrNop(observability.CLILogger), doctorChecks)
		rendered, err := renderDoctor(results, target.format)
		if err != nil {
			return err
		}
		if err := target.write(cmd, "doctor", rendered); err != nil {
			return err
		}
		if failed := failedChecks(results); len(failed) > 0 {
			return fmt.Errorf("doctor: %d check(s) failed: %s", len(failed), strings.Join(failed, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	addOutputFlags(doctorCmd, output.FormatTable, output.FormatJSON)
}
