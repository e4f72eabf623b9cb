package cmd

import (
	"os"
	"strings"

	"github.com/dotcommander/agentgraph/internal/config"
)

// Execute wires commands and runs Cobra.
func Execute(build BuildInfo, cfg config.Config, cfgErr error) {
	root := NewRootCmd(build, cfg, cfgErr)
	if err := root.Execute(); err != nil {
		if strings.HasPrefix(err.Error(), "required flag") {
			err = newFlagParseError(err)
		}
		maybeWriteMemProfile()
		drainStdin()
		handleError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
	maybeWriteMemProfile()
}
