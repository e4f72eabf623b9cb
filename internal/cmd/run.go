package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/present"
	"github.com/dotcommander/agentgraph/internal/session"
	"github.com/dotcommander/agentgraph/internal/translate"
)

// preparer is satisfied by *session.Service.
type preparer interface {
	Prepare(ctx context.Context, req session.Request) (*session.Run, error)
}

func newRunCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a blueprint once and stream its answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireConfig(); err != nil {
				return err
			}
			svc, err := session.New(rt.cfg, config.EnvCredentials{})
			if err != nil {
				return errs.Wrap(err, "Could not start the run service.")
			}
			return rt.runOnce(cmd, svc)
		},
	}
	flags := cmd.Flags()
	blueprintFlag(cmd, &rt.cfg.BlueprintPath)
	flags.StringVarP(&rt.cfg.Query, "query", "q", rt.cfg.Query, present.StdoutStyles().FlagDesc.Render(helpText["query"]))
	flags.StringVarP(&rt.cfg.User, "user", "u", rt.cfg.User, present.StdoutStyles().FlagDesc.Render(helpText["user"]))
	flags.BoolVarP(&rt.cfg.Raw, "raw", "r", rt.cfg.Raw, present.StdoutStyles().FlagDesc.Render(helpText["raw"]))
	flags.BoolVarP(&rt.cfg.Pretty, "pretty", "p", rt.cfg.Pretty, present.StdoutStyles().FlagDesc.Render(helpText["pretty"]))
	flags.BoolVar(&rt.cfg.RecordTranscripts, "record", rt.cfg.RecordTranscripts, present.StdoutStyles().FlagDesc.Render(helpText["record"]))
	cmd.MarkFlagsMutuallyExclusive("raw", "pretty")
	return cmd
}

func (rt *runtime) runOnce(cmd *cobra.Command, svc preparer) error {
	ctx := cmd.Context()
	bp, err := blueprint.Load(rt.cfg.BlueprintPath)
	if err != nil {
		return err
	}
	query, err := rt.query(ctx, cmd.InOrStdin())
	if err != nil {
		return err
	}

	run, err := svc.Prepare(ctx, session.Request{Blueprint: bp, Query: query, UserID: rt.cfg.User})
	if err != nil {
		return err
	}

	var sink translate.Sink
	var term *termSink
	if rt.cfg.Raw {
		sink = translate.NewLineWriter(stdout(cmd))
	} else {
		term = newTermSink(stdout(cmd), stderr(cmd), rt.cfg.Pretty && present.Detect().RendersReplies())
		sink = term
	}

	sum, err := run.Stream(ctx, sink)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errs.Wrap(err, "Run canceled.")
		}
		return errs.Wrap(err, "Could not write the run output.")
	}
	if term != nil {
		if err := term.Close(); err != nil {
			return err
		}
	}
	if sum.Failure != nil {
		return errReported
	}
	return nil
}

// query resolves the -q flag, falling back to piped stdin.
func (rt *runtime) query(ctx context.Context, in io.Reader) (string, error) {
	if rt.cfg.Query != "" {
		text, err := config.LoadText(ctx, rt.cfg.Query)
		if err != nil {
			return "", errs.Wrap(err, "Could not load the query.")
		}
		return text, nil
	}
	if in == os.Stdin && !present.Detect().QueryPiped() {
		return "", errs.Wrap(errs.UserErrorf("pass --query or pipe it through stdin"), "No query given.")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", errs.Wrap(err, "Could not read the query from stdin.")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errs.Wrap(errs.UserErrorf("pass --query or pipe it through stdin"), "No query given.")
	}
	return text, nil
}
