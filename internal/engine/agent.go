package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"charm.land/fantasy"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/agentgraph/internal/ctxlog"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/llm"
	"github.com/dotcommander/agentgraph/internal/proto"
)

// DefaultMaxSteps bounds the model calls of one agent execution.
const DefaultMaxSteps = 10

// ToolSet is the set of tools an agent may call.
type ToolSet interface {
	Tools() []mcp.Tool
	Call(ctx context.Context, name string, args []byte) (string, error)
}

// Agent is a model-backed node running a reason-and-act loop: it streams the
// model, executes the tool calls the model asks for and feeds the results
// back until the model answers without calling tools.
type Agent struct {
	Model    fantasy.LanguageModel
	Tools    ToolSet
	Options  llm.CallOptions
	MaxSteps int
}

// Run implements Node.
func (a *Agent) Run(ctx context.Context, task Task) ([]proto.Message, error) {
	opts := a.Options
	if a.Tools != nil {
		opts.Tools = a.Tools.Tools()
	}
	maxSteps := a.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	history := slices.Clone(task.Messages)
	var produced []proto.Message
	for range maxSteps {
		msg, err := a.step(ctx, task, llm.BuildCall(opts, history))
		if err != nil {
			return produced, err
		}
		msg.Sender = task.NodeID
		history = append(history, msg)
		produced = append(produced, msg)
		if len(msg.ToolCalls) == 0 {
			return produced, nil
		}

		for _, call := range msg.ToolCalls {
			result, err := a.invoke(ctx, task, call)
			if err != nil {
				return produced, err
			}
			history = append(history, result)
			produced = append(produced, result)
		}
	}
	return produced, errs.Runtimef("agent stopped after %d model calls without a final answer", maxSteps)
}

// invoke runs one tool call. Tool failures become error results the model
// can react to; only cancellation aborts the run.
func (a *Agent) invoke(ctx context.Context, task Task, call proto.ToolCall) (proto.Message, error) {
	var content string
	var err error
	if a.Tools == nil {
		err = fmt.Errorf("tool %q is not available", call.Function.Name)
	} else {
		content, err = a.Tools.Call(ctx, call.Function.Name, call.Function.Arguments)
	}
	if ctx.Err() != nil {
		return proto.Message{}, ctx.Err()
	}
	if err != nil {
		ctxlog.FromContext(ctx).WarnContext(ctx, "tool call failed", "tool", call.Function.Name, ctxlog.Err(err))
		content = err.Error()
	}

	msg := proto.Message{
		Role:    proto.RoleTool,
		Content: content,
		Sender:  task.NodeID,
		ToolCalls: []proto.ToolCall{{
			ID:       call.ID,
			Function: call.Function,
			IsError:  err != nil,
		}},
	}
	res := ToolResult{CallID: call.ID, Name: call.Function.Name, Content: content, IsError: err != nil}
	if err := task.Emit(ctx, ModeMessages, res); err != nil {
		return proto.Message{}, err
	}
	return msg, nil
}

// step streams one model call, emitting a chunk per text delta and tool call
// fragment, then a final chunk carrying the finish reason.
func (a *Agent) step(ctx context.Context, task Task, call fantasy.Call) (proto.Message, error) {
	seq, err := a.Model.Stream(ctx, call)
	if err != nil {
		return proto.Message{}, fmt.Errorf("fantasy stream: %w", err)
	}

	acc := newCallAccumulator()
	var text strings.Builder
	for part := range seq {
		var chunk *Chunk
		switch part.Type {
		case fantasy.StreamPartTypeTextDelta:
			if part.Delta == "" {
				continue
			}
			text.WriteString(part.Delta)
			chunk = &Chunk{Content: part.Delta}
		case fantasy.StreamPartTypeToolInputStart:
			chunk = acc.start(part.ID, part.ToolCallName)
		case fantasy.StreamPartTypeToolInputDelta:
			chunk = acc.delta(part.ID, part.Delta)
		case fantasy.StreamPartTypeToolCall:
			if part.ProviderExecuted {
				continue
			}
			chunk = acc.complete(part.ID, part.ToolCallName, part.ToolCallInput)
		case fantasy.StreamPartTypeError:
			if part.Error != nil {
				return proto.Message{}, fmt.Errorf("fantasy stream: %w", part.Error)
			}
		case fantasy.StreamPartTypeWarnings:
			for _, w := range part.Warnings {
				ctxlog.FromContext(ctx).WarnContext(ctx, "provider warning",
					"node", task.NodeID, "message", w.Message, "details", w.Details)
			}
		}
		if chunk == nil {
			continue
		}
		if err := task.Emit(ctx, ModeMessages, *chunk); err != nil {
			return proto.Message{}, err
		}
	}
	if ctx.Err() != nil {
		return proto.Message{}, ctx.Err()
	}

	calls := acc.calls()
	finish := FinishStop
	if len(calls) > 0 {
		finish = FinishToolCalls
	}
	if err := task.Emit(ctx, ModeMessages, Chunk{FinishReason: finish}); err != nil {
		return proto.Message{}, err
	}
	return proto.Message{Role: proto.RoleAssistant, Content: text.String(), ToolCalls: calls}, nil
}

// callAccumulator numbers the tool calls of one model step and tracks how
// much of each call's arguments has been streamed.
type callAccumulator struct {
	index    map[string]int
	order    []proto.ToolCall
	streamed []string
	done     []bool
}

func newCallAccumulator() *callAccumulator {
	return &callAccumulator{index: map[string]int{}}
}

func (c *callAccumulator) slot(id string) (int, bool) {
	if i, ok := c.index[id]; ok {
		return i, false
	}
	i := len(c.order)
	c.index[id] = i
	c.order = append(c.order, proto.ToolCall{ID: id})
	c.streamed = append(c.streamed, "")
	c.done = append(c.done, false)
	return i, true
}

func (c *callAccumulator) start(id, name string) *Chunk {
	i, _ := c.slot(id)
	if c.order[i].Function.Name == "" {
		c.order[i].Function.Name = name
	}
	return &Chunk{ToolCallChunks: []ToolCallChunk{{Index: i, ID: id, Name: name}}}
}

func (c *callAccumulator) delta(id, args string) *Chunk {
	if args == "" {
		return nil
	}
	i, _ := c.slot(id)
	c.streamed[i] += args
	return &Chunk{ToolCallChunks: []ToolCallChunk{{Index: i, ID: id, Args: args}}}
}

// complete records the final call and returns a fragment carrying whatever
// part of its arguments was not streamed yet.
func (c *callAccumulator) complete(id, name, input string) *Chunk {
	i, fresh := c.slot(id)
	if c.done[i] {
		return nil
	}
	c.done[i] = true
	c.order[i].Function.Name = name
	c.order[i].Function.Arguments = []byte(input)

	rest := strings.TrimPrefix(input, c.streamed[i])
	if c.streamed[i] != "" && !strings.HasPrefix(input, c.streamed[i]) {
		rest = ""
	}
	if !fresh && rest == "" {
		return nil
	}
	frag := ToolCallChunk{Index: i, Args: rest}
	if fresh {
		frag.ID = id
		frag.Name = name
	}
	return &Chunk{ToolCallChunks: []ToolCallChunk{frag}}
}

func (c *callAccumulator) calls() []proto.ToolCall {
	var out []proto.ToolCall
	for i, call := range c.order {
		if c.done[i] {
			out = append(out, call)
		}
	}
	return out
}
