// Package engine executes compiled agent graphs and yields the raw event
// stream of a run.
package engine

import "github.com/dotcommander/agentgraph/internal/proto"

// Mode classifies an event.
type Mode string

// Event modes.
const (
	// ModeMessages carries incremental model output and tool results.
	ModeMessages Mode = "messages"
	// ModeUpdates reports the messages a node added once it finishes.
	ModeUpdates Mode = "updates"
	// ModeCustom carries node-defined payloads.
	ModeCustom Mode = "custom"
)

// TagSkipStream marks events that must not reach clients.
const TagSkipStream = "skip_stream"

// Finish reasons carried by the last chunk of a model step.
const (
	FinishToolCalls = "tool_calls"
	FinishStop      = "stop"
)

// Event is one item of the run stream. Namespace holds one entry per graph
// level, each of the form "<node-id>:<task-id>".
type Event struct {
	Namespace []string
	Mode      Mode
	Payload   any
	Tags      []string
}

// Skipped reports whether the event carries TagSkipStream.
func (e Event) Skipped() bool {
	for _, tag := range e.Tags {
		if tag == TagSkipStream {
			return true
		}
	}
	return false
}

// Chunk is an incremental piece of model output.
type Chunk struct {
	Content        string
	ToolCallChunks []ToolCallChunk
	FinishReason   string
}

// ToolCallChunk is a fragment of one tool call. Fragments sharing an Index
// belong to the same call; Args fragments concatenate to the call's JSON
// arguments.
type ToolCallChunk struct {
	Index int
	ID    string
	Name  string
	Args  string
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Reply is a complete message produced without streaming, such as a remote
// agent's answer.
type Reply struct {
	Content string
}

// Update lists the messages a node contributed to the run state.
type Update struct {
	NodeID   string
	Messages []proto.Message
}
