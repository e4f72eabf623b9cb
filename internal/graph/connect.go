package graph

import (
	"context"
	"io"
	"time"

	"charm.land/fantasy"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/engine"
	"github.com/dotcommander/agentgraph/internal/mcp"
)

// ModelFactory builds the language model behind an agent.
type ModelFactory interface {
	LanguageModel(ctx context.Context, p blueprint.Provider) (fantasy.LanguageModel, error)
}

// ToolSet is an open, releasable set of tools.
type ToolSet interface {
	engine.ToolSet
	io.Closer
}

// ToolConnector opens the tool servers of one agent.
type ToolConnector interface {
	Open(ctx context.Context, endpoints []string) (ToolSet, error)
}

// RemoteAgent is an open, releasable remote agent client.
type RemoteAgent interface {
	engine.RemoteAgent
	io.Closer
}

// RemoteConnector resolves remote agents.
type RemoteConnector interface {
	Connect(ctx context.Context, baseURL string) (RemoteAgent, error)
}

// MCPConnector opens tool servers over MCP.
type MCPConnector struct {
	Timeout time.Duration
}

// Open implements ToolConnector.
func (c MCPConnector) Open(ctx context.Context, endpoints []string) (ToolSet, error) {
	set, err := mcp.Open(ctx, endpoints, c.Timeout)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// A2AConnector resolves remote agents over A2A.
type A2AConnector struct {
	Options a2a.Options
}

// Connect implements RemoteConnector.
func (c A2AConnector) Connect(ctx context.Context, baseURL string) (RemoteAgent, error) {
	cli, err := a2a.Resolve(ctx, baseURL, c.Options)
	if err != nil {
		return nil, err
	}
	return cli, nil
}
