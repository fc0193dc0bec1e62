package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/appid"
)

var (
	// CLILogger writes human-readable output for commands.
	CLILogger *logging.Logger

	// ServerLogger writes JSON records while serving.
	ServerLogger *logging.Logger
)

// Logger is the logging surface components depend on. *logging.Logger and
// *zap.Logger both satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return zap.NewNop()
}

// Current returns the server logger when the server is running, else the CLI
// logger, else a no-op logger.
func Current() Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	if CLILogger != nil {
		return CLILogger
	}
	return NopLogger()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger()
	}
	if typed, ok := l.(*logging.Logger); ok && typed == nil {
		return NopLogger()
	}
	return l
}

// InitCLILogger installs the human-oriented CLI logger. verbose lowers the
// level to debug.
func InitCLILogger(serviceName string, verbose bool) error {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		return fmt.Errorf("init cli logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
	return nil
}

// InitServerLogger installs the JSON server logger on stderr. The optional
// namespace is attached to every record.
func InitServerLogger(serviceName, level string, namespace ...string) error {
	static := map[string]any{}
	if len(namespace) > 0 && namespace[0] != "" {
		static["namespace"] = namespace[0]
	}

	logger, err := logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: severity(level),
		Service:      serviceName,
		Environment:  deployEnvironment(),
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "json",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}
	ServerLogger = logger
	return nil
}

func deployEnvironment() string {
	if env := strings.TrimSpace(os.Getenv(appid.EnvKey("env"))); env != "" {
		return env
	}
	return "production"
}

var severities = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// severity maps a config log level onto a gofulmen severity, defaulting to INFO.
func severity(level string) string {
	if s, ok := severities[strings.ToLower(strings.TrimSpace(level))]; ok {
		return s
	}
	return "INFO"
}
