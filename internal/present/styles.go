package present

import "github.com/charmbracelet/lipgloss"

// Styles are the terminal styles shared by the CLI commands.
type Styles struct {
	AppName      lipgloss.Style
	CliArgs      lipgloss.Style
	Comment      lipgloss.Style
	ErrorHeader  lipgloss.Style
	ErrorDetails lipgloss.Style
	ErrPadding   lipgloss.Style
	Flag         lipgloss.Style
	FlagComma    lipgloss.Style
	FlagDesc     lipgloss.Style
	InlineCode   lipgloss.Style
	Link         lipgloss.Style
	Pipe         lipgloss.Style
	Quote        lipgloss.Style
	ShortID      lipgloss.Style
	Timeago      lipgloss.Style
	Ok           lipgloss.Style
	Failed       lipgloss.Style
	NodeName     lipgloss.Style
	ToolCall     lipgloss.Style
	Command      lipgloss.Style
}

// MakeStyles builds the styles for output rendered through r.
func MakeStyles(r *lipgloss.Renderer) Styles {
	s := Styles{}
	s.AppName = r.NewStyle().Bold(true)
	s.CliArgs = r.NewStyle().Foreground(lipgloss.Color("#585858"))
	s.Comment = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#727272"})
	s.ErrorHeader = r.NewStyle().
		Foreground(lipgloss.Color("#F1F1F1")).
		Background(lipgloss.Color("#FF5F87")).
		Bold(true).
		Padding(0, 1).
		SetString("ERROR")
	s.ErrorDetails = s.Comment
	s.ErrPadding = r.NewStyle().Padding(0, 2)
	s.Flag = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).Bold(true)
	s.FlagComma = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5DD6C0", Dark: "#427C72"}).SetString(",")
	s.FlagDesc = s.Comment
	s.InlineCode = r.NewStyle().
		Foreground(lipgloss.Color("#FF5F87")).
		Background(lipgloss.AdaptiveColor{Light: "#F1F1F1", Dark: "#3A3A3A"}).
		Padding(0, 1)
	s.Link = r.NewStyle().Foreground(lipgloss.Color("#00AF87")).Underline(true)
	s.Pipe = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#745CFF"})
	s.Quote = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF71D0", Dark: "#FF78D2"})
	s.ShortID = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B86EFF", Dark: "#9E86FF"})
	s.Timeago = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999", Dark: "#555"})
	s.Ok = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).Bold(true)
	s.Failed = r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	s.NodeName = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#A491FF"}).Bold(true)
	s.ToolCall = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#8A8A8A"}).Italic(true)
	s.Command = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"})
	return s
}
