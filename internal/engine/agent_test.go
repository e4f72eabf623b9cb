package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"charm.land/fantasy"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/llm"
	"github.com/dotcommander/agentgraph/internal/proto"
)

// scriptedModel streams one scripted step per call.
type scriptedModel struct {
	fantasy.LanguageModel

	mu    sync.Mutex
	steps [][]fantasy.StreamPart
	calls []fantasy.Call
}

func (m *scriptedModel) Stream(_ context.Context, call fantasy.Call) (fantasy.StreamResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if len(m.steps) == 0 {
		return nil, errors.New("no more steps")
	}
	parts := m.steps[0]
	m.steps = m.steps[1:]
	return func(yield func(fantasy.StreamPart) bool) {
		for _, p := range parts {
			if !yield(p) {
				return
			}
		}
	}, nil
}

func text(s string) fantasy.StreamPart {
	return fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: s}
}

func toolCall(id, name, input string) []fantasy.StreamPart {
	mid := len(input) / 2
	return []fantasy.StreamPart{
		{Type: fantasy.StreamPartTypeToolInputStart, ID: id, ToolCallName: name},
		{Type: fantasy.StreamPartTypeToolInputDelta, ID: id, Delta: input[:mid]},
		{Type: fantasy.StreamPartTypeToolInputDelta, ID: id, Delta: input[mid:]},
		{Type: fantasy.StreamPartTypeToolInputEnd, ID: id},
		{Type: fantasy.StreamPartTypeToolCall, ID: id, ToolCallName: name, ToolCallInput: input},
	}
}

type fakeTools struct {
	results map[string]string
	got     []string
}

func (f *fakeTools) Tools() []mcp.Tool {
	var tools []mcp.Tool
	for name := range f.results {
		tools = append(tools, mcp.Tool{Name: name})
	}
	return tools
}

func (f *fakeTools) Call(_ context.Context, name string, args []byte) (string, error) {
	f.got = append(f.got, name+" "+string(args))
	out, ok := f.results[name]
	if !ok {
		return "", errors.New("tool exploded")
	}
	return out, nil
}

func runNode(t *testing.T, node Node, input string) ([]Event, []proto.Message, error) {
	t.Helper()
	var msgs []proto.Message
	r := &Runner{Graph: &Graph{Entry: "n", Nodes: map[string]Node{"n": NodeFunc(func(ctx context.Context, task Task) ([]proto.Message, error) {
		out, err := node.Run(ctx, task)
		msgs = out
		return out, err
	})}}}
	events, err := collect(t, r, input)
	return events, msgs, err
}

func chunks(events []Event) []Chunk {
	var out []Chunk
	for _, ev := range events {
		if c, ok := ev.Payload.(Chunk); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestAgentTextOnly(t *testing.T) {
	model := &scriptedModel{steps: [][]fantasy.StreamPart{{text("Hel"), text("lo")}}}
	agent := &Agent{Model: model, Options: llm.CallOptions{SystemPrompt: "be nice"}}

	events, msgs, err := runNode(t, agent, "hi")
	require.NoError(t, err)
	require.Equal(t, []Chunk{{Content: "Hel"}, {Content: "lo"}, {FinishReason: FinishStop}}, chunks(events))
	require.Equal(t, []proto.Message{{Role: proto.RoleAssistant, Content: "Hello", Sender: "n"}}, msgs)

	require.Len(t, model.calls, 1)
	require.Equal(t, fantasy.MessageRoleSystem, model.calls[0].Prompt[0].Role)
}

func TestAgentToolLoop(t *testing.T) {
	model := &scriptedModel{steps: [][]fantasy.StreamPart{
		append([]fantasy.StreamPart{text("Checking")}, toolCall("call_1", "weather", `{"city":"Oslo"}`)...),
		{text("Sunny")},
	}}
	tools := &fakeTools{results: map[string]string{"weather": "sunny, 21C"}}
	agent := &Agent{Model: model, Tools: tools}

	events, msgs, err := runNode(t, agent, "weather in Oslo?")
	require.NoError(t, err)

	require.Equal(t, []Chunk{
		{Content: "Checking"},
		{ToolCallChunks: []ToolCallChunk{{Index: 0, ID: "call_1", Name: "weather"}}},
		{ToolCallChunks: []ToolCallChunk{{Index: 0, ID: "call_1", Args: `{"city"`}}},
		{ToolCallChunks: []ToolCallChunk{{Index: 0, ID: "call_1", Args: `:"Oslo"}`}}},
		{FinishReason: FinishToolCalls},
		{Content: "Sunny"},
		{FinishReason: FinishStop},
	}, chunks(events))

	var results []ToolResult
	for _, ev := range events {
		if r, ok := ev.Payload.(ToolResult); ok {
			results = append(results, r)
		}
	}
	require.Equal(t, []ToolResult{{CallID: "call_1", Name: "weather", Content: "sunny, 21C"}}, results)

	require.Equal(t, []string{`weather {"city":"Oslo"}`}, tools.got)
	require.Len(t, msgs, 3)
	require.Equal(t, proto.RoleTool, msgs[1].Role)
	require.Equal(t, "call_1", msgs[1].ToolCalls[0].ID)
	require.Len(t, model.calls[1].Prompt, 3)
	require.NotEmpty(t, model.calls[0].Tools)
}

func TestAgentCompleteCallWithoutDeltas(t *testing.T) {
	model := &scriptedModel{steps: [][]fantasy.StreamPart{
		{{Type: fantasy.StreamPartTypeToolCall, ID: "c1", ToolCallName: "weather", ToolCallInput: `{}`}},
		{text("done")},
	}}
	agent := &Agent{Model: model, Tools: &fakeTools{results: map[string]string{"weather": "ok"}}}

	events, _, err := runNode(t, agent, "go")
	require.NoError(t, err)
	require.Equal(t, ToolCallChunk{Index: 0, ID: "c1", Name: "weather", Args: `{}`}, chunks(events)[0].ToolCallChunks[0])
}

func TestAgentToolFailureIsFedBack(t *testing.T) {
	model := &scriptedModel{steps: [][]fantasy.StreamPart{
		toolCall("c1", "broken", `{}`),
		{text("sorry")},
	}}
	agent := &Agent{Model: model, Tools: &fakeTools{results: map[string]string{}}}

	_, msgs, err := runNode(t, agent, "go")
	require.NoError(t, err)
	require.True(t, msgs[1].ToolCalls[0].IsError)
	require.Equal(t, "tool exploded", msgs[1].Content)
}

func TestAgentStepCap(t *testing.T) {
	model := &scriptedModel{steps: [][]fantasy.StreamPart{
		toolCall("c1", "weather", `{}`),
		toolCall("c2", "weather", `{}`),
	}}
	agent := &Agent{Model: model, Tools: &fakeTools{results: map[string]string{"weather": "ok"}}, MaxSteps: 2}

	_, _, err := runNode(t, agent, "go")
	require.ErrorIs(t, err, errs.ErrRuntime)
}

func TestAgentStreamError(t *testing.T) {
	model := &scriptedModel{steps: [][]fantasy.StreamPart{
		{text("par"), {Type: fantasy.StreamPartTypeError, Error: errors.New("rate limited")}},
	}}
	_, _, err := runNode(t, &Agent{Model: model}, "go")
	require.ErrorContains(t, err, "rate limited")
}

type fakeRemote struct {
	got   a2a.Request
	reply a2a.Reply
	err   error
}

func (f *fakeRemote) Send(_ context.Context, req a2a.Request) (a2a.Reply, error) {
	f.got = req
	return f.reply, f.err
}

func TestRemote(t *testing.T) {
	remote := &fakeRemote{reply: a2a.Reply{Text: "found 3 papers", ContextID: "ctx", TaskID: "t1"}}

	events, msgs, err := runNode(t, &Remote{Agent: remote}, "find papers")
	require.NoError(t, err)
	require.Equal(t, a2a.Request{Text: "find papers"}, remote.got)
	require.Equal(t, []string{"found 3 papers"}, replies(events))
	require.Equal(t, &proto.RemoteRef{ContextID: "ctx", TaskID: "t1"}, msgs[0].Remote)
}

func TestRemoteContinuesConversation(t *testing.T) {
	remote := &fakeRemote{}
	task := Task{NodeID: "n", Messages: proto.Conversation{
		{Role: proto.RoleUser, Content: "start"},
		{Role: proto.RoleAssistant, Content: "earlier", Remote: &proto.RemoteRef{ContextID: "ctx", TaskID: "t0"}},
		{Role: proto.RoleAssistant, Content: "follow up"},
	}}

	_, err := (&Remote{Agent: remote}).Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, a2a.Request{Text: "follow up", ContextID: "ctx", ReferenceTaskIDs: []string{"t0"}}, remote.got)
}

func TestRemoteError(t *testing.T) {
	_, _, err := runNode(t, &Remote{Agent: &fakeRemote{err: errs.Runtimef("task failed")}}, "x")
	require.ErrorIs(t, err, errs.ErrRuntime)
}
