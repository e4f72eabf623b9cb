// Package main provides the agentgraph CLI.
package main

import (
	"github.com/dotcommander/agentgraph/internal/cmd"
	"github.com/dotcommander/agentgraph/internal/config"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cfg, cfgErr := config.Ensure()
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA}, cfg, cfgErr)
}
