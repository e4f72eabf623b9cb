// Package translate turns the raw engine event stream into client frames and
// writes them out.
package translate

import (
	"github.com/dotcommander/agentgraph/internal/blueprint"
)

// Frame roles.
const (
	RoleAI     = "ai"
	RoleTool   = "tool"
	RoleHuman  = "human"
	RoleCustom = "custom"
)

// Frame increment classes.
const (
	StreamToken   = "token"
	StreamMessage = "message"
)

// ToolCallType is the type of every finalized tool call.
const ToolCallType = "tool_call"

// ErrorPrefix starts the content of every error frame.
const ErrorPrefix = "An unexpected error occurred in the backend: "

// Metadata correlates the frames of one run. The worflow_id spelling is part
// of the client contract.
type Metadata struct {
	WorkflowID string `json:"worflow_id"`
	ChatID     string `json:"chat_id"`
	RunID      string `json:"run_id"`
	UserID     string `json:"user_id"`
}

// ToolCall is a finalized tool call.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
	Type string         `json:"type"`
}

// Frame is one client-facing response.
type Frame struct {
	Node       blueprint.Node `json:"node"`
	Content    string         `json:"content"`
	Type       string         `json:"type"`
	StreamType string         `json:"stream_type"`
	ToolCalls  []ToolCall     `json:"tool_calls"`
	ToolCallID *string        `json:"tool_call_id"`
	Metadata   Metadata       `json:"metadata"`
}

// ErrorFrame is the terminal frame of a failed run.
type ErrorFrame struct {
	Type          string `json:"type"`
	Content       string `json:"content"`
	FullTraceback bool   `json:"full_traceback"`
}

// NewErrorFrame describes err for the client.
func NewErrorFrame(err error) ErrorFrame {
	return ErrorFrame{Type: "error", Content: ErrorPrefix + err.Error(), FullTraceback: true}
}
