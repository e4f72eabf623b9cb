package present

import (
	"os"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// ReplyWidth is the column width replies are wrapped to.
const ReplyWidth = 80

const replyTabWidth = 4

// RenderReply renders an agent reply as markdown wrapped to width columns.
// GLAMOUR_STYLE picks the style when set; otherwise it follows the stdout
// background. When rendering fails the reply is returned as plain text.
func RenderReply(reply string, width int) string {
	if strings.TrimSpace(reply) == "" {
		return ""
	}
	style := glamour.WithStandardStyle(styles.LightStyle)
	if _, ok := os.LookupEnv("GLAMOUR_STYLE"); ok {
		style = glamour.WithEnvironmentConfig()
	} else if StdoutRenderer().HasDarkBackground() {
		style = glamour.WithStandardStyle(styles.DarkStyle)
	}

	plain := strings.TrimRightFunc(reply, unicode.IsSpace) + "\n"
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return plain
	}
	out, err := r.Render(reply)
	if err != nil {
		return plain
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	return strings.ReplaceAll(out, "\t", strings.Repeat(" ", replyTabWidth)) + "\n"
}
