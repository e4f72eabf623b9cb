package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/proto"
)

// echoNode replies with its name and the content it saw last.
func echoNode(name string) Node {
	return NodeFunc(func(ctx context.Context, task Task) ([]proto.Message, error) {
		last, _ := task.Messages.Last()
		content := name + "<" + last.Content
		if err := task.Emit(ctx, ModeMessages, Reply{Content: content}); err != nil {
			return nil, err
		}
		return []proto.Message{{Role: proto.RoleAssistant, Content: content, Sender: task.NodeID}}, nil
	})
}

func collect(t *testing.T, r *Runner, input string) ([]Event, error) {
	t.Helper()
	var events []Event
	for ev, err := range r.Stream(context.Background(), input) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func replies(events []Event) []string {
	var out []string
	for _, ev := range events {
		if r, ok := ev.Payload.(Reply); ok {
			out = append(out, r.Content)
		}
	}
	return out
}

func TestStreamLinear(t *testing.T) {
	r := &Runner{Graph: &Graph{
		Entry: "a",
		Nodes: map[string]Node{"a": echoNode("a"), "b": echoNode("b")},
		Edges: map[string][]string{"a": {"b"}},
	}}

	events, err := collect(t, r, "hi")
	require.NoError(t, err)
	require.Equal(t, []string{"a<hi", "b<a<hi"}, replies(events))

	require.Len(t, events, 4)
	require.Equal(t, ModeUpdates, events[1].Mode)
	require.True(t, events[1].Skipped())
	require.Regexp(t, `^a:[0-9a-f-]{36}$`, events[0].Namespace[0])
	require.Equal(t, events[0].Namespace, events[1].Namespace)
	require.Regexp(t, `^b:`, events[2].Namespace[0])
}

func TestStreamFanOutDeduplicates(t *testing.T) {
	r := &Runner{Graph: &Graph{
		Entry: "a",
		Nodes: map[string]Node{"a": echoNode("a"), "b": echoNode("b"), "c": echoNode("c"), "d": echoNode("d")},
		Edges: map[string][]string{"a": {"b", "c"}, "b": {"d"}, "c": {"d"}},
	}}

	events, err := collect(t, r, "x")
	require.NoError(t, err)
	got := replies(events)
	require.Len(t, got, 4)
	require.Equal(t, "a<x", got[0])
	require.ElementsMatch(t, []string{"b<a<x", "c<a<x"}, got[1:3])
	// d runs once and sees the state after both branches were merged in order.
	require.Equal(t, "d<c<a<x", got[3])
}

func TestStreamRecursionLimit(t *testing.T) {
	r := &Runner{
		Graph: &Graph{
			Entry: "a",
			Nodes: map[string]Node{"a": echoNode("a"), "b": echoNode("b")},
			Edges: map[string][]string{"a": {"b"}, "b": {"a"}},
		},
		RecursionLimit: 3,
	}

	events, err := collect(t, r, "loop")
	require.ErrorIs(t, err, errs.ErrRuntime)
	require.ErrorContains(t, err, "recursion limit of 3")
	require.Len(t, replies(events), 3)
}

func TestStreamNodeError(t *testing.T) {
	boom := errors.New("boom")
	r := &Runner{Graph: &Graph{
		Entry: "a",
		Nodes: map[string]Node{"a": NodeFunc(func(context.Context, Task) ([]proto.Message, error) {
			return nil, boom
		})},
	}}

	_, err := collect(t, r, "x")
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "node a: boom")
}

func TestStreamRecoversPanics(t *testing.T) {
	r := &Runner{Graph: &Graph{
		Entry: "a",
		Nodes: map[string]Node{"a": NodeFunc(func(context.Context, Task) ([]proto.Message, error) {
			panic("kaboom")
		})},
	}}

	_, err := collect(t, r, "x")
	require.ErrorIs(t, err, errs.ErrRuntime)
	require.ErrorContains(t, err, "kaboom")
}

func TestStreamNoEntry(t *testing.T) {
	_, err := collect(t, &Runner{Graph: &Graph{Entry: "ghost"}}, "x")
	require.ErrorIs(t, err, errs.ErrRuntime)
}

func chatter(stopped chan<- struct{}) Node {
	return NodeFunc(func(ctx context.Context, task Task) ([]proto.Message, error) {
		defer close(stopped)
		for {
			if err := task.Emit(ctx, ModeMessages, Chunk{Content: "."}); err != nil {
				return nil, err
			}
		}
	})
}

func TestStreamBreakStopsProducers(t *testing.T) {
	stopped := make(chan struct{})
	r := &Runner{Graph: &Graph{Entry: "a", Nodes: map[string]Node{"a": chatter(stopped)}}}

	n := 0
	for _, err := range r.Stream(context.Background(), "x") {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("producer still running after the consumer stopped")
	}
}

func TestStreamCanceledYieldsNothingMore(t *testing.T) {
	stopped := make(chan struct{})
	r := &Runner{Graph: &Graph{Entry: "a", Nodes: map[string]Node{"a": chatter(stopped)}}}

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	for _, err := range r.Stream(ctx, "x") {
		require.NoError(t, err)
		n++
		if n == 2 {
			cancel()
		}
	}
	require.Equal(t, 2, n)
	<-stopped
}
