package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/agentgraph/internal/errs"
)

// ToolSet is the union of the tools served by a group of MCP servers. It
// owns one live client per server until Close.
type ToolSet struct {
	clients []*client.Client
	tools   []mcp.Tool
	owner   map[string]*client.Client
}

// Open connects to every endpoint concurrently and lists their tools. Tools
// keep the order of endpoints. Two servers exposing the same tool name is a
// configuration error. On failure every client opened so far is closed.
func Open(ctx context.Context, endpoints []string, timeout time.Duration) (*ToolSet, error) {
	clients := make([]*client.Client, len(endpoints))
	lists := make([][]mcp.Tool, len(endpoints))

	var wg errgroup.Group
	for i, endpoint := range endpoints {
		wg.Go(func() error {
			cli, err := dial(ctx, endpoint, timeout)
			if err != nil {
				return fmt.Errorf("could not setup %s: %w", endpoint, err)
			}
			clients[i] = cli

			tools, err := listTools(ctx, cli, endpoint, timeout)
			if err != nil {
				return err
			}
			lists[i] = tools
			return nil
		})
	}

	set := &ToolSet{owner: map[string]*client.Client{}}
	if err := wg.Wait(); err != nil {
		set.clients = compact(clients)
		return nil, errors.Join(fmt.Errorf("mcp tools: %w", err), set.Close())
	}
	set.clients = clients

	for i, tools := range lists {
		for _, tool := range tools {
			if _, dup := set.owner[tool.Name]; dup {
				err := errs.Configurationf("tool %q is served by more than one tool node (again by %s)", tool.Name, endpoints[i])
				return nil, errors.Join(err, set.Close())
			}
			set.owner[tool.Name] = clients[i]
			set.tools = append(set.tools, tool)
		}
	}
	return set, nil
}

// Tools returns every tool of the set.
func (s *ToolSet) Tools() []mcp.Tool {
	if s == nil {
		return nil
	}
	return s.tools
}

// Call invokes the named tool with JSON object arguments and returns the
// concatenated text content. An empty argument buffer means no arguments. A
// result flagged as an error is returned as an error carrying its text.
func (s *ToolSet) Call(ctx context.Context, name string, args []byte) (string, error) {
	cli, ok := s.owner[name]
	if !ok {
		return "", fmt.Errorf("mcp: unknown tool: %q", name)
	}

	arguments := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", fmt.Errorf("mcp: %w: %s", err, string(args))
		}
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = arguments
	result, err := cli.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}

	if result.IsError {
		return "", errors.New(sb.String())
	}
	return sb.String(), nil
}

// Close disconnects every server. It is safe to call more than once.
func (s *ToolSet) Close() error {
	if s == nil {
		return nil
	}
	var err error
	for _, cli := range s.clients {
		err = errors.Join(err, cli.Close())
	}
	s.clients = nil
	return err
}

func compact(clients []*client.Client) []*client.Client {
	out := clients[:0:0]
	for _, cli := range clients {
		if cli != nil {
			out = append(out, cli)
		}
	}
	return out
}
