package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

const installPkg = "github.com/dotcommander/agentgraph@latest"

func newUpgradeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade agentgraph to the latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := stderr(cmd)
			fmt.Fprintf(out, "Current version: %s\n", rt.build.Version)
			fmt.Fprintf(out, "Upgrading via go install %s ...\n", installPkg)

			gobin, err := exec.LookPath("go")
			if err != nil {
				return fmt.Errorf("go not found in PATH: %w", err)
			}

			install := exec.CommandContext(cmd.Context(), gobin, "install", installPkg)
			install.Stdout = stdout(cmd)
			install.Stderr = out
			if err := install.Run(); err != nil {
				return fmt.Errorf("go install failed: %w", err)
			}

			fmt.Fprintln(out, "Upgrade complete.")
			return nil
		},
	}
}
