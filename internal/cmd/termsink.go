package cmd

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/dotcommander/agentgraph/internal/present"
	"github.com/dotcommander/agentgraph/internal/translate"
)

const maxToolPreview = 120

// termSink renders frames for a person at a terminal: answer text on out,
// progress and errors on errw. With pretty set, answer text is buffered and
// rendered as markdown on Close.
type termSink struct {
	out    io.Writer
	errw   io.Writer
	pretty bool
	styles present.Styles

	node    string
	midLine bool
	text    strings.Builder
}

func newTermSink(out, errw io.Writer, pretty bool) *termSink {
	return &termSink{out: out, errw: errw, pretty: pretty, styles: present.StderrStyles()}
}

// WriteFrame implements translate.Sink.
func (t *termSink) WriteFrame(v any) error {
	switch f := v.(type) {
	case translate.Frame:
		return t.frame(f)
	case translate.ErrorFrame:
		t.endLine()
		_, err := fmt.Fprintf(t.errw, "\n%s %s\n", t.styles.ErrorHeader.String(), t.styles.ErrorDetails.Render(f.Content))
		return err
	default:
		return fmt.Errorf("unsupported frame %T", v)
	}
}

func (t *termSink) frame(f translate.Frame) error {
	if name := f.Node.DisplayName(); name != t.node {
		t.endLine()
		t.node = name
		if _, err := fmt.Fprintln(t.errw, t.styles.NodeName.Render("▸ "+name)); err != nil {
			return err
		}
	}

	switch {
	case f.Type == translate.RoleTool:
		t.endLine()
		_, err := fmt.Fprintln(t.errw, t.styles.ToolCall.Render("  ← "+preview(f.Content)))
		return err
	case len(f.ToolCalls) > 0:
		t.endLine()
		for _, call := range f.ToolCalls {
			args, _ := json.Marshal(call.Args)
			if _, err := fmt.Fprintln(t.errw, t.styles.ToolCall.Render(fmt.Sprintf("  → %s %s", call.Name, preview(string(args))))); err != nil {
				return err
			}
		}
		return nil
	case f.Content == "":
		return nil
	}

	text := f.Content
	if f.StreamType == translate.StreamMessage && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if t.pretty {
		t.text.WriteString(text)
		return nil
	}
	if _, err := io.WriteString(t.out, text); err != nil {
		return err
	}
	t.midLine = !strings.HasSuffix(text, "\n")
	return nil
}

func (t *termSink) endLine() {
	if t.midLine {
		_, _ = io.WriteString(t.out, "\n")
		t.midLine = false
	}
}

// Close flushes buffered output.
func (t *termSink) Close() error {
	t.endLine()
	if !t.pretty || t.text.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(t.out, present.RenderReply(t.text.String(), present.ReplyWidth))
	return err
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxToolPreview {
		return string(r[:maxToolPreview]) + "…"
	}
	return s
}
