package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/postpilot/postpilot/internal/appid"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/observability"
)

var (
	doctorInitForce    bool
	doctorInitAPIKey   string
	doctorInitProvider string
	doctorResetConfig  bool
	doctorResetData    bool
	doctorResetAll     bool
)

type initProvider struct {
	id         string
	aiProvider string
	baseURL    string
	model      string
}

var initProviders = map[string]initProvider{
	"openai":  {id: "openai-main", aiProvider: "openai", baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	"mistral": {id: "mistral-main", aiProvider: "mistral", baseURL: "https://api.mistral.ai/v1", model: "mistral-small-latest"},
	"xai":     {id: "xai-main", aiProvider: "xai", baseURL: "https://api.x.ai/v1", model: "grok-3-mini"},
	"gemini":  {id: "gemini-main", aiProvider: "gemini", model: "gemini-2.0-flash"},
}

// Starter config file layout written by 'doctor init'.
type (
	starterConfig struct {
		AILink    starterAILink    `yaml:"ailink"`
		RateLimit starterRateLimit `yaml:"rate_limit"`
		Humanizer starterHumanizer `yaml:"humanizer"`
	}
	starterAILink struct {
		DefaultProvider string                     `yaml:"default_provider"`
		Routing         map[string]string          `yaml:"routing"`
		Providers       map[string]starterProvider `yaml:"providers"`
	}
	starterProvider struct {
		Enabled     bool                `yaml:"enabled"`
		AIProvider  string              `yaml:"ai_provider"`
		BaseURL     string              `yaml:"base_url,omitempty"`
		Models      map[string]string   `yaml:"models"`
		Credentials []starterCredential `yaml:"credentials"`
	}
	starterCredential struct {
		Label    string `yaml:"label"`
		Enabled  bool   `yaml:"enabled"`
		Priority int    `yaml:"priority"`
		APIKey   string `yaml:"api_key,omitempty"`
	}
	starterRateLimit struct {
		Enabled bool   `yaml:"enabled"`
		Backend string `yaml:"backend"`
	}
	starterHumanizer struct {
		AddFillerWords           bool `yaml:"add_filler_words"`
		AddGrammaticalVariations bool `yaml:"add_grammatical_variations"`
		AddPauses                bool `yaml:"add_pauses"`
	}
)

func keyEnvName(providerID string) string {
	return appid.EnvKey("AILINK_PROVIDERS_" + providerID + "_CREDENTIALS_0_API_KEY")
}

// buildInitConfig renders a starter config routing the default role to p.
// Without apiKey the file names the env var that supplies it instead.
func buildInitConfig(p initProvider, apiKey string) (string, error) {
	doc := starterConfig{
		AILink: starterAILink{
			DefaultProvider: p.id,
			Routing:         map[string]string{defaultRole: p.id},
			Providers: map[string]starterProvider{p.id: {
				Enabled:     true,
				AIProvider:  p.aiProvider,
				BaseURL:     p.baseURL,
				Models:      map[string]string{"default": p.model},
				Credentials: []starterCredential{{Label: "default", Enabled: true, APIKey: strings.TrimSpace(apiKey)}},
			}},
		},
		RateLimit: starterRateLimit{Enabled: true, Backend: "store"},
		Humanizer: starterHumanizer{AddFillerWords: true, AddGrammaticalVariations: true, AddPauses: true},
	}
	body, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render starter config: %w", err)
	}

	binary := appid.Get().BinaryName
	var b strings.Builder
	fmt.Fprintf(&b, "# %s config - created by '%s doctor init'\n", binary, binary)
	if strings.TrimSpace(apiKey) == "" {
		fmt.Fprintf(&b, "# api_key is unset; export %s or add it under credentials.\n", keyEnvName(p.id))
	}
	b.Write(body)
	return b.String(), nil
}

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if path == "" {
			return errors.New("config path not resolved")
		}
		if fileExists(path) && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		provider, ok := initProviders[strings.ToLower(strings.TrimSpace(doctorInitProvider))]
		if !ok {
			return fmt.Errorf("unsupported provider %q (use openai, mistral, xai or gemini)", doctorInitProvider)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter provider API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		rendered, err := buildInitConfig(provider, apiKey)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		mode := fs.FileMode(0o644)
		if apiKey != "" {
			mode = 0o600
		}
		if err := os.WriteFile(path, []byte(rendered), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.OrNop(observability.CLILogger).Info("Config initialized",
			zap.String("path", path), zap.String("provider", provider.aiProvider))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetTitle("Configuration")

		cfgPath := config.DefaultConfigPath()
		dataDir := config.DefaultDataDir()
		t.AppendRow(table.Row{"config file", cfgPath, presence(cfgPath)})
		t.AppendRow(table.Row{"data directory", dataDir, presence(dataDir)})

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			t.AppendRow(table.Row{"load", err.Error(), "error"})
			return plainTarget(cmd).write(cmd, "doctor.config", t.Render())
		}
		t.AppendRow(table.Row{"store", describeStore(cfg), ""})

		t.AppendSeparator()
		for id := range cfg.AILink.Providers {
			name := keyEnvName(id)
			t.AppendRow(table.Row{name, "", envStatus(name)})
		}
		redis := appid.EnvKey("REDIS_PASSWORD")
		t.AppendRow(table.Row{redis, "", envStatus(redis)})

		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"cache.default_ttl", cfg.Cache.DefaultTTL, ""},
			{"cache.offline", cfg.Cache.Offline, ""},
			{"rate_limit.enabled", cfg.RateLimit.Enabled, ""},
			{"rate_limit.backend", cfg.RateLimit.Backend, ""},
			{"humanizer.role", humanizerRole(cfg), ""},
			{"breaker.enabled", cfg.Breaker.Enabled, ""},
		})
		return plainTarget(cmd).write(cmd, "doctor.config", t.Render())
	},
}

// plainTarget returns the --out target for commands without output flags.
func plainTarget(cmd *cobra.Command) outputTarget {
	t, _ := resolveOutput(cmd)
	return t
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		wantConfig := doctorResetConfig || doctorResetAll
		wantData := doctorResetData || doctorResetAll
		if !wantConfig && !wantData {
			return errors.New("specify --config, --data, or --all")
		}
		logger := observability.OrNop(observability.CLILogger)

		if wantConfig {
			if path := config.DefaultConfigPath(); path == "" {
				logger.Warn("Config path not resolved; skipping config reset")
			} else if err := removeReported(logger, "config", path); err != nil {
				return err
			}
		}
		if wantData {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Store.URL != "" {
				return errors.New("remote store configured; database reset is not supported")
			}
			abs, err := filepath.Abs(storePath(cfg))
			if err != nil {
				return err
			}
			if err := removeReported(logger, "database", abs); err != nil {
				return err
			}
		}
		return nil
	},
}

func removeReported(logger observability.Logger, what, path string) error {
	err := os.Remove(path)
	switch {
	case err == nil:
		logger.Info(what+" removed", zap.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		logger.Info(what+" already absent", zap.String("path", path))
	default:
		return fmt.Errorf("remove %s: %w", what, err)
	}
	return nil
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strings.TrimSpace(cfgFile)
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if path == "" {
			return errors.New("config path not resolved")
		}
		if !fileExists(path) {
			return fmt.Errorf("config file not found: %s", path)
		}
		if _, err := config.LoadFile(cmd.Context(), path); err != nil {
			return fmt.Errorf("%w: %w", errConfig, err)
		}
		observability.OrNop(observability.CLILogger).Info("Config is valid", zap.String("path", path))
		return nil
	},
}

func storePath(cfg *config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return config.DefaultStorePath()
}

// describeStore renders the store location for diagnostics.
func describeStore(cfg *config.Config) string {
	if cfg.Store.URL != "" {
		return redactURL(cfg.Store.URL) + " (remote)"
	}
	path := storePath(cfg)
	if path == ":memory:" {
		return path
	}
	abs, _ := filepath.Abs(path)
	info, err := os.Stat(abs)
	switch {
	case err == nil:
		return fmt.Sprintf("%s (%s)", abs, humanize.IBytes(uint64(info.Size())))
	case errors.Is(err, fs.ErrNotExist):
		return abs + " (not created yet)"
	default:
		return fmt.Sprintf("%s (error: %v)", abs, err)
	}
}

func promptForValue(in io.Reader, out io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err
	}
	value, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func presence(path string) string {
	switch {
	case path == "":
		return "unresolved"
	case fileExists(path):
		return "exists"
	default:
		return "missing"
	}
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}

func init() {
	doctorCmd.AddCommand(doctorInitCmd, doctorConfigCmd, doctorResetCmd, doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitProvider, "provider", "openai", "provider to configure: openai, mistral, xai or gemini")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set provider api key or use 'prompt' to enter")

	addOutputFlags(doctorConfigCmd)

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}
