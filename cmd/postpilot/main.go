package main

import (
	"context"

	"github.com/postpilot/postpilot/internal/cmd"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-01-20"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(context.Background()); err != nil {
		cmd.ExitWithCodeStderr(cmd.ExitCodeFor(err), "Command execution failed", err)
	}
}
