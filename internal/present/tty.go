package present

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Terminal records which standard streams are attached to a terminal.
type Terminal struct {
	Stdin  bool
	Stdout bool
	Stderr bool
}

// QueryPiped reports whether the run query arrives on stdin rather than
// from a person typing at a prompt.
func (t Terminal) QueryPiped() bool { return !t.Stdin }

// RendersReplies reports whether replies can be rendered as markdown: the
// answer goes to a terminal and nothing downstream parses it.
func (t Terminal) RendersReplies() bool { return t.Stdout }

type fdTester func(fd uintptr) bool

func detectTerminal(isTerm fdTester) Terminal {
	return Terminal{
		Stdin:  isTerm(os.Stdin.Fd()),
		Stdout: isTerm(os.Stdout.Fd()),
		Stderr: isTerm(os.Stderr.Fd()),
	}
}

var terminal = sync.OnceValue(func() Terminal {
	return detectTerminal(func(fd uintptr) bool {
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	})
})

// Detect returns the terminal state of the process, probed once.
func Detect() Terminal { return terminal() }

// output pairs a stream's renderer with the styles built on it.
type output struct {
	renderer func() *lipgloss.Renderer
	styles   func() Styles
}

func newOutput(f *os.File) output {
	renderer := sync.OnceValue(func() *lipgloss.Renderer {
		return lipgloss.NewRenderer(f, termenv.WithColorCache(true))
	})
	return output{
		renderer: renderer,
		styles:   sync.OnceValue(func() Styles { return MakeStyles(renderer()) }),
	}
}

// Replies and answer text go to stdout; node progress, tool activity and
// errors go to stderr.
var (
	stdout = newOutput(os.Stdout)
	stderr = newOutput(os.Stderr)
)

// StdoutRenderer returns the renderer bound to stdout.
func StdoutRenderer() *lipgloss.Renderer { return stdout.renderer() }

// StdoutStyles returns the styles bound to stdout.
func StdoutStyles() Styles { return stdout.styles() }

// StderrRenderer returns the renderer bound to stderr.
func StderrRenderer() *lipgloss.Renderer { return stderr.renderer() }

// StderrStyles returns the styles bound to stderr.
func StderrStyles() Styles { return stderr.styles() }
