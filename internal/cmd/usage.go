package cmd

import (
	"fmt"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/agentgraph/internal/present"
)

func useLine(cmd *cobra.Command) string {
	styles := present.StdoutStyles()
	appName := cmd.CommandPath()
	if !cmd.HasParent() && present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = present.MakeGradientText(styles.AppName, appName)
	}

	args := "[OPTIONS]"
	if cmd.HasAvailableSubCommands() {
		args = "[COMMAND] [OPTIONS]"
	}
	return fmt.Sprintf("%s %s", appName, styles.CliArgs.Render(args))
}

func usageFunc(cmd *cobra.Command) error {
	styles := present.StdoutStyles()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Usage:\n  %s\n\n", useLine(cmd))

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(out, "Commands:")
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			fmt.Fprintf(out, "  %-26s %s\n", styles.Command.Render(sub.Name()), styles.FlagDesc.Render(sub.Short))
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Options:")
	printFlag := func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Fprintf(out,
				"  %-44s %s\n",
				styles.Flag.Render("--"+f.Name),
				styles.FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Fprintf(out,
				"  %s%s %-40s %s\n",
				styles.Flag.Render("-"+f.Shorthand),
				styles.FlagComma,
				styles.Flag.Render("--"+f.Name),
				styles.FlagDesc.Render(f.Usage),
			)
		}
	}
	cmd.LocalFlags().VisitAll(printFlag)
	cmd.InheritedFlags().VisitAll(printFlag)

	if cmd.HasExample() {
		if code, ok := examples[cmd.Example]; ok {
			fmt.Fprintf(out,
				"\nExample:\n  %s\n  %s\n",
				styles.Comment.Render("# "+cmd.Example),
				cheapHighlighting(styles, code),
			)
		}
	}

	return nil
}
