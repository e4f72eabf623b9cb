package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/llm"
	"github.com/dotcommander/agentgraph/internal/present"
	"github.com/dotcommander/agentgraph/internal/readiness"
)

func newCheckCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every model, tool server and remote agent of a blueprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireConfig(); err != nil {
				return err
			}
			models, err := llm.NewFactory(config.EnvCredentials{}, rt.cfg.HTTPProxy)
			if err != nil {
				return err
			}
			prober := readiness.NetworkProber{
				Models: models,
				A2A:    a2a.Options{PollInterval: rt.cfg.A2APollInterval, Timeout: rt.cfg.A2ATimeout},
			}
			return rt.check(cmd, prober)
		},
	}
	blueprintFlag(cmd, &rt.cfg.BlueprintPath)
	cmd.Flags().Var(newDurationFlag(rt.cfg.ProbeTimeout, &rt.cfg.ProbeTimeout), "timeout", present.StdoutStyles().FlagDesc.Render(helpText["timeout"]))
	return cmd
}

func (rt *runtime) check(cmd *cobra.Command, prober readiness.Prober) error {
	bp, err := blueprint.Load(rt.cfg.BlueprintPath)
	if err != nil {
		return err
	}
	if _, err := blueprint.Validate(bp); err != nil {
		return err
	}

	checker := readiness.NewChecker(prober, rt.cfg.ProbeTimeout, rt.cfg.ProbeConcurrency)
	start := time.Now()
	outcomes := checker.Run(cmd.Context(), bp)

	out := stdout(cmd)
	styles := present.StdoutStyles()
	var failures []readiness.Outcome
	for _, o := range outcomes {
		mark := styles.Ok.Render("✓")
		if o.Err != nil {
			mark = styles.Failed.Render("✗")
			failures = append(failures, o)
		}
		fmt.Fprintf(out, "%s %-13s %s %s\n", mark, o.Kind, styles.NodeName.Render(o.Name), styles.Comment.Render(o.Address))
		if o.Err != nil {
			fmt.Fprintf(out, "  %s\n", styles.ErrorDetails.Render(o.Err.Error()))
		}
	}
	fmt.Fprintf(out, "\n%d of %d dependencies reachable %s\n",
		len(outcomes)-len(failures), len(outcomes),
		styles.Timeago.Render(fmt.Sprintf("in %s", time.Since(start).Round(time.Millisecond))))

	if len(failures) > 0 {
		return errReported
	}
	return nil
}
