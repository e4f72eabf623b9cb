package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/present"
	"github.com/dotcommander/agentgraph/internal/readiness"
)

// errReported marks a failure already shown to the user, such as a run that
// ended with an error frame.
var errReported = errors.New("failure already reported")

func exitCode(err error) int {
	var ferr flagParseError
	if errors.As(err, &ferr) {
		return 2
	}
	return 1
}

func handleError(w io.Writer, err error) {
	if errors.Is(err, errReported) {
		return
	}

	styles := present.StderrStyles()
	format := "\n%s\n\n"

	var ferr flagParseError
	if errors.As(err, &ferr) {
		args := []any{
			fmt.Sprintf(
				"Check out %s %s",
				styles.InlineCode.Render("agentgraph -h"),
				styles.Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				styles.InlineCode.Render(ferr.Flag()),
			),
		}
		fmt.Fprintf(w, format+"%s\n\n", args...)
		return
	}

	var rerr *readiness.ReadinessError
	if errors.As(err, &rerr) {
		fmt.Fprintf(w, format, styles.ErrPadding.Render(styles.ErrorHeader.String(), errs.Reason(err)))
		for _, f := range rerr.Failures {
			fmt.Fprintln(w, styles.ErrPadding.Render(
				styles.Failed.Render("✗"),
				fmt.Sprintf("%s %s", f.Kind, styles.NodeName.Render(f.Name)),
				styles.Comment.Render(f.Address),
			))
			fmt.Fprintln(w, styles.ErrPadding.Render("   "+styles.ErrorDetails.Render(f.Err.Error())))
		}
		fmt.Fprintln(w)
		return
	}

	var uerr errs.Error
	if errors.As(err, &uerr) || errs.Kind(err) != "internal" {
		fmt.Fprintf(w, format+"%s\n\n",
			styles.ErrPadding.Render(styles.ErrorHeader.String(), errs.Reason(err)),
			styles.ErrPadding.Render(styles.ErrorDetails.Render(err.Error())),
		)
		return
	}

	fmt.Fprintf(w, format, styles.ErrPadding.Render(styles.ErrorDetails.Render(err.Error())))
}

// drainStdin exhausts piped input so upstream writers do not see EPIPE.
func drainStdin() {
	if !present.Detect().QueryPiped() {
		return
	}
	_, _ = io.Copy(io.Discard, os.Stdin)
}
