package llm

import (
	"errors"

	"charm.land/fantasy"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/proto"
)

// CallOptions are the per-agent settings of one model call.
type CallOptions struct {
	Provider     string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int64
	Tools        []mcp.Tool
	User         string
}

// BuildCall assembles a fantasy call for the conversation so far.
func BuildCall(opts CallOptions, messages []proto.Message) fantasy.Call {
	input := messages
	if opts.SystemPrompt != "" {
		input = append([]proto.Message{{Role: proto.RoleSystem, Content: opts.SystemPrompt}}, messages...)
	}

	tools := FromMCPTools(opts.Tools)
	call := fantasy.Call{
		Prompt:          ToPrompt(input),
		MaxOutputTokens: opts.MaxTokens,
		Temperature:     opts.Temperature,
		Tools:           tools,
		ToolChoice:      toolChoice(tools),
		ProviderOptions: fantasy.ProviderOptions{},
	}

	if opts.User != "" {
		user := opts.User
		switch opts.Provider {
		case blueprint.ProviderOpenAI:
			call.ProviderOptions[fopenai.Name] = &fopenai.ProviderOptions{User: &user}
		case blueprint.ProviderSelfHosted:
			call.ProviderOptions[fopenaicompat.Name] = &fopenaicompat.ProviderOptions{User: &user}
		}
	}

	return call
}

// ToPrompt converts run state into a fantasy prompt. Tool messages answer the
// call recorded in their first ToolCall entry.
func ToPrompt(input []proto.Message) fantasy.Prompt {
	messages := make([]fantasy.Message, 0, len(input))

	for _, msg := range input {
		switch msg.Role {
		case proto.RoleSystem:
			messages = append(messages, fantasy.Message{
				Role:    fantasy.MessageRoleSystem,
				Content: []fantasy.MessagePart{fantasy.TextPart{Text: msg.Content}},
			})
		case proto.RoleUser:
			messages = append(messages, fantasy.Message{
				Role:    fantasy.MessageRoleUser,
				Content: []fantasy.MessagePart{fantasy.TextPart{Text: msg.Content}},
			})
		case proto.RoleAssistant:
			parts := make([]fantasy.MessagePart, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, fantasy.TextPart{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, fantasy.ToolCallPart{
					ToolCallID: call.ID,
					ToolName:   call.Function.Name,
					Input:      string(call.Function.Arguments),
				})
			}
			if len(parts) > 0 {
				messages = append(messages, fantasy.Message{
					Role:    fantasy.MessageRoleAssistant,
					Content: parts,
				})
			}
		case proto.RoleTool:
			parts := make([]fantasy.MessagePart, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				var output fantasy.ToolResultOutputContent
				if call.IsError {
					output = fantasy.ToolResultOutputContentError{Error: errors.New(msg.Content)}
				} else {
					output = fantasy.ToolResultOutputContentText{Text: msg.Content}
				}
				parts = append(parts, fantasy.ToolResultPart{
					ToolCallID: call.ID,
					Output:     output,
				})
			}
			if len(parts) > 0 {
				messages = append(messages, fantasy.Message{
					Role:    fantasy.MessageRoleTool,
					Content: parts,
				})
			}
		}
	}

	return messages
}

// FromMCPTools exposes MCP tools to the model under their own names.
func FromMCPTools(tools []mcp.Tool) []fantasy.Tool {
	out := make([]fantasy.Tool, 0, len(tools))
	for _, tool := range tools {
		inputSchema := map[string]any{
			"type":       "object",
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema["required"] = tool.InputSchema.Required
		}
		out = append(out, fantasy.FunctionTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchema,
		})
	}
	return out
}

func toolChoice(tools []fantasy.Tool) *fantasy.ToolChoice {
	if len(tools) == 0 {
		return nil
	}
	choice := fantasy.ToolChoiceAuto
	return &choice
}
