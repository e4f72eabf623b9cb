package cmd

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/translate"
)

var (
	errBoom = errors.New("boom")
	ansiRe  = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

func stripANSI(s string) string { return ansiRe.ReplaceAllString(s, "") }

var forecaster = blueprint.Agent{NodeBase: blueprint.NodeBase{NodeID: "a", Name: "Forecaster"}}

func token(content string) translate.Frame {
	return translate.Frame{Node: forecaster, Content: content, Type: translate.RoleAI, StreamType: translate.StreamToken}
}

func TestTermSink(t *testing.T) {
	var out, errw bytes.Buffer
	sink := newTermSink(&out, &errw, false)

	require.NoError(t, sink.WriteFrame(token("Sunny ")))
	require.NoError(t, sink.WriteFrame(translate.Frame{
		Node:       forecaster,
		Type:       translate.RoleAI,
		StreamType: translate.StreamMessage,
		ToolCalls:  []translate.ToolCall{{Name: "weather", Args: map[string]any{"city": "Oslo"}, ID: "c1"}},
	}))
	require.NoError(t, sink.WriteFrame(translate.Frame{Node: forecaster, Content: "12C\n\nclear", Type: translate.RoleTool, StreamType: translate.StreamMessage}))
	require.NoError(t, sink.WriteFrame(token("and warm")))
	require.NoError(t, sink.Close())

	require.Equal(t, "Sunny \nand warm\n", out.String())
	progress := stripANSI(errw.String())
	require.Contains(t, progress, "▸ Forecaster")
	require.Contains(t, progress, `→ weather {"city":"Oslo"}`)
	require.Contains(t, progress, "← 12C clear")
}

func TestTermSinkPretty(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "notty")
	var out, errw bytes.Buffer
	sink := newTermSink(&out, &errw, true)

	require.NoError(t, sink.WriteFrame(token("# Forecast\n\n")))
	require.NoError(t, sink.WriteFrame(token("Sunny\tand warm.")))
	require.Empty(t, out.String())

	require.NoError(t, sink.Close())
	require.Contains(t, out.String(), "Forecast")
	require.Contains(t, out.String(), "Sunny")
	require.NotContains(t, out.String(), "\t")
}

func TestTermSinkErrorFrame(t *testing.T) {
	var out, errw bytes.Buffer
	sink := newTermSink(&out, &errw, false)
	require.NoError(t, sink.WriteFrame(token("partial")))
	require.NoError(t, sink.WriteFrame(translate.NewErrorFrame(errBoom)))

	require.Equal(t, "partial\n", out.String())
	require.Contains(t, errw.String(), "boom")
}

func TestPreview(t *testing.T) {
	require.Equal(t, "a b", preview(" a\n\tb "))
	long := strings.Repeat("x", maxToolPreview+10)
	require.Equal(t, strings.Repeat("x", maxToolPreview)+"…", preview(long))
}
