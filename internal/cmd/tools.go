package cmd

import (
	"fmt"
	"slices"
	"strings"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	imcp "github.com/dotcommander/agentgraph/internal/mcp"
	"github.com/dotcommander/agentgraph/internal/present"
)

func newToolsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tools <endpoint> [more...]",
		Short: "List the tools an MCP server offers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := stdout(cmd)
			styles := present.StdoutStyles()
			for _, endpoint := range args {
				tools, err := imcp.Probe(cmd.Context(), endpoint, rt.cfg.MCPTimeout)
				if err != nil {
					return fmt.Errorf("%s: %w", endpoint, err)
				}
				slices.SortFunc(tools, func(a, b mmcp.Tool) int { return strings.Compare(a.Name, b.Name) })
				for _, tool := range tools {
					fmt.Fprint(out, styles.Timeago.Render(endpoint+" > "))
					fmt.Fprint(out, tool.Name)
					if tool.Description != "" {
						fmt.Fprint(out, "  ", styles.Comment.Render(firstLine(tool.Description)))
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
