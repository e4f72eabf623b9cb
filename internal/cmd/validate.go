package cmd

import (
	"fmt"
	"maps"
	"slices"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/graph"
	"github.com/dotcommander/agentgraph/internal/present"
)

func newValidateCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a blueprint without contacting any dependency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bp, err := blueprint.Load(rt.cfg.BlueprintPath)
			if err != nil {
				return err
			}
			if _, err := blueprint.Validate(bp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, bp)
			}
			printSummary(cmd, bp)
			return nil
		},
	}
	blueprintFlag(cmd, &rt.cfg.BlueprintPath)
	cmd.Flags().BoolVar(&asJSON, "json", false, present.StdoutStyles().FlagDesc.Render("Print the normalized blueprint as JSON"))
	return cmd
}

func printSummary(cmd *cobra.Command, bp *blueprint.Blueprint) {
	out := stdout(cmd)
	styles := present.StdoutStyles()
	present.PrintConfirmation(out, "valid", fmt.Sprintf("%s %s", bp.Name, styles.Comment.Render(bp.WorkflowID)))

	counts := []struct {
		label string
		n     int
	}{
		{"agents", len(blueprint.NodesOf[blueprint.Agent](bp))},
		{"remote agents", len(blueprint.NodesOf[blueprint.RemoteAgent](bp))},
		{"tools", len(blueprint.NodesOf[blueprint.Tool](bp))},
		{"connections", len(bp.Connections)},
	}
	for _, c := range counts {
		fmt.Fprintf(out, "  %-14s %d\n", c.label, c.n)
	}

	nodes := bp.NodesByID()
	tools := graph.GroupTools(bp)
	for _, agent := range slices.Sorted(maps.Keys(tools)) {
		endpoints := tools[agent]
		fmt.Fprintf(out, "  %s %s\n", styles.NodeName.Render(nodes[agent].DisplayName()), styles.Comment.Render(fmt.Sprint(endpoints)))
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the blueprint JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, blueprint.JSONSchema())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(stdout(cmd), string(data))
	return err
}
