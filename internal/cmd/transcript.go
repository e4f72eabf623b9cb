package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	timeago "github.com/caarlos0/timea.go"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/present"
	"github.com/dotcommander/agentgraph/internal/transcript"
)

func newTranscriptCmd(rt *runtime) *cobra.Command {
	transcriptCmd := &cobra.Command{
		Use:     "transcript",
		Aliases: []string{"transcripts"},
		Short:   "Manage recorded runs",
	}

	transcriptCmd.AddCommand(newTranscriptListCmd(rt))
	transcriptCmd.AddCommand(newTranscriptShowCmd(rt))
	transcriptCmd.AddCommand(newTranscriptDeleteCmd(rt))
	transcriptCmd.AddCommand(newTranscriptPruneCmd(rt))

	return transcriptCmd
}

func (rt *runtime) openTranscripts() (*transcript.Store, error) {
	if err := rt.requireConfig(); err != nil {
		return nil, err
	}
	store, err := transcript.Open(rt.cfg.DataDir)
	if err != nil {
		return nil, errs.Wrap(err, "Could not open the transcript store.")
	}
	return store, nil
}

// completeRunIDs completes run id prefixes from the index.
func (rt *runtime) completeRunIDs(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	store, err := rt.openTranscripts()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, rec := range store.Index().List() {
		if strings.HasPrefix(rec.RunID, toComplete) {
			out = append(out, rec.RunID+"\t"+rec.Workflow)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func newTranscriptListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.openTranscripts()
			if err != nil {
				return err
			}
			records := store.Index().List()
			if len(records) == 0 {
				fmt.Fprintln(stderr(cmd), "No transcripts found.")
				return nil
			}
			printRecords(stdout(cmd), records)
			return nil
		},
	}
}

func newTranscriptShowCmd(rt *runtime) *cobra.Command {
	var frames bool
	showCmd := &cobra.Command{
		Use:               "show <run-id>",
		Short:             "Show a recorded run",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: rt.completeRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openTranscripts()
			if err != nil {
				return err
			}
			rec, err := store.Index().Find(args[0])
			if err != nil {
				return errs.Wrap(err, "Could not find the run.")
			}
			out := stdout(cmd)
			if frames {
				return store.Read(rec.RunID, func(r io.Reader) error {
					_, err := io.Copy(out, r)
					return err
				})
			}
			return showTranscript(out, store, rec)
		},
	}
	showCmd.Flags().BoolVar(&frames, "frames", false, present.StdoutStyles().FlagDesc.Render(helpText["show-frames"]))
	return showCmd
}

func newTranscriptDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "rm <run-id> [more...]",
		Aliases:           []string{"delete"},
		Short:             "Delete recorded runs",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: rt.completeRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rt.openTranscripts()
			if err != nil {
				return err
			}
			for _, prefix := range args {
				rec, err := store.Index().Find(prefix)
				if err != nil {
					return errs.Wrap(err, "Could not find the run to delete.")
				}
				if err := store.Delete(rec.RunID); err != nil {
					return errs.Wrap(err, "Could not delete the run.")
				}
				fmt.Fprintln(stderr(cmd), "Transcript deleted:", rec.RunID[:transcript.ShortIDLen])
			}
			return nil
		},
	}
}

func newTranscriptPruneCmd(rt *runtime) *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
	)
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not prune transcripts.")
			}
			store, err := rt.openTranscripts()
			if err != nil {
				return err
			}

			cutoff := time.Now().Add(-olderThan)
			var stale []transcript.Record
			for _, rec := range store.Index().List() {
				if rec.StartedAt.Before(cutoff) {
					stale = append(stale, rec)
				}
			}
			if len(stale) == 0 {
				fmt.Fprintln(stderr(cmd), "No transcripts found.")
				return nil
			}
			printRecords(stdout(cmd), stale)
			if dryRun {
				return nil
			}

			var errsOut error
			for _, rec := range stale {
				errsOut = errors.Join(errsOut, store.Delete(rec.RunID))
			}
			if errsOut != nil {
				return errs.Wrap(errsOut, "Could not delete every old transcript.")
			}
			present.PrintConfirmation(stderr(cmd), "pruned", fmt.Sprintf("%d transcripts", len(stale)))
			return nil
		},
	}
	pruneCmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", present.StdoutStyles().FlagDesc.Render(helpText["older-than"]))
	pruneCmd.Flags().BoolVar(&dryRun, "dry-run", false, present.StdoutStyles().FlagDesc.Render(helpText["dry-run"]))
	return pruneCmd
}

func printRecords(w io.Writer, records []transcript.Record) {
	styles := present.StdoutStyles()
	for _, rec := range records {
		status := styles.Ok.Render("ok")
		if rec.Failed {
			status = styles.Failed.Render("failed")
		}
		fmt.Fprintf(w,
			"%s\t%s\t%s\t%s\t%s\n",
			styles.ShortID.Render(rec.RunID[:transcript.ShortIDLen]),
			rec.Workflow,
			status,
			firstLine(rec.Query),
			styles.Timeago.Render(timeago.Of(rec.StartedAt)),
		)
	}
}

// showTranscript prints the query and the text the run produced.
func showTranscript(w io.Writer, store *transcript.Store, rec *transcript.Record) error {
	styles := present.StdoutStyles()
	fmt.Fprintf(w, "%s %s %s\n", styles.ShortID.Render(rec.RunID), rec.Workflow, styles.Timeago.Render(timeago.Of(rec.StartedAt)))
	fmt.Fprintf(w, "%s %s\n\n", styles.Comment.Render("user "+rec.UserID+":"), rec.Query)

	return store.Read(rec.RunID, func(r io.Reader) error {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		node := ""
		for sc.Scan() {
			frame := gjson.ParseBytes(sc.Bytes())
			if frame.Get("type").String() == "error" {
				fmt.Fprintf(w, "\n%s %s\n", styles.Failed.Render("error"), frame.Get("content").String())
				continue
			}
			if name := frame.Get("node.name").String(); name != node {
				node = name
				fmt.Fprintf(w, "\n%s\n", styles.NodeName.Render("▸ "+name))
			}
			for _, call := range frame.Get("tool_calls").Array() {
				fmt.Fprintln(w, styles.ToolCall.Render("  → "+call.Get("name").String()+" "+call.Get("args").Raw))
			}
			content := frame.Get("content").String()
			switch frame.Get("type").String() {
			case "tool":
				fmt.Fprintln(w, styles.ToolCall.Render("  ← "+preview(content)))
			default:
				fmt.Fprint(w, content)
				if frame.Get("stream_type").String() == "message" && content != "" {
					fmt.Fprintln(w)
				}
			}
		}
		fmt.Fprintln(w)
		return sc.Err()
	})
}
