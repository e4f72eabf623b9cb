package cmd

import (
	"fmt"
	"strings"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/config"
)

func newManCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:                   "man",
		Short:                 "Generates manpages",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manPage, err := mcobra.NewManPage(1, root)
			if err != nil {
				return fmt.Errorf("build man page: %w", err)
			}
			manPage = manPage.
				WithSection("Environment", manEnvironment()).
				WithSection("Files", manFiles())
			if _, err := fmt.Fprint(stdout(cmd), manPage.Build(roff.NewDocument())); err != nil {
				return fmt.Errorf("write man page: %w", err)
			}
			return nil
		},
	}
}

func manEnvironment() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n  Path of the settings file.\n", config.ConfigEnv)
	for _, v := range config.EnvVars() {
		fmt.Fprintf(&sb, "%s\n  Overrides the %s setting.\n", v.Name, v.Setting)
	}
	fmt.Fprintf(&sb, "%s, %s\n  Credentials of openai and google_genai agents, looked up by the api_key_name of each model.\n",
		blueprint.OpenAIKeyName, blueprint.GoogleKeyName)
	return sb.String()
}

func manFiles() string {
	return "$XDG_CONFIG_HOME/agentgraph/agentgraph.yml\n  Settings file, created on first run.\n" +
		"<data-dir>/transcripts\n  Recorded runs, one JSON lines file per run plus index.jsonl.\n"
}
