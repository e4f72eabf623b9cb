// Package mcp connects agents to tool servers over the Model Context
// Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/errs"
)

// Transports selected by the endpoint suffix.
const (
	TransportStreamableHTTP = "http"
	TransportSSE            = "sse"
)

// ClientName is reported to tool servers during initialization.
const ClientName = "agentgraph"

// ErrNoTools is returned by Probe for a server that lists no tools.
var ErrNoTools = errors.New("server is reachable, but no tools were found")

// TransportFor picks the MCP transport for a tool endpoint.
func TransportFor(endpoint string) (string, error) {
	switch {
	case strings.HasSuffix(endpoint, blueprint.SuffixStreamableHTTP):
		return TransportStreamableHTTP, nil
	case strings.HasSuffix(endpoint, blueprint.SuffixSSE):
		return TransportSSE, nil
	default:
		return "", errs.Configurationf("tool endpoint %q must end with %s or %s",
			endpoint, blueprint.SuffixStreamableHTTP, blueprint.SuffixSSE)
	}
}

// dial creates, starts and initializes a client for endpoint. The client's
// session outlives ctx; ctx only bounds the handshake.
func dial(ctx context.Context, endpoint string, timeout time.Duration) (*client.Client, error) {
	kind, err := TransportFor(endpoint)
	if err != nil {
		return nil, err
	}

	var cli *client.Client
	switch kind {
	case TransportSSE:
		cli, err = client.NewSSEMCPClient(endpoint)
	default:
		cli, err = client.NewStreamableHttpClient(endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cli.Start(context.WithoutCancel(ctx)); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: ClientName}
	if _, err := cli.Initialize(initCtx, req); err != nil {
		cli.Close() //nolint:errcheck,gosec
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout while initializing %s", endpoint)
		}
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	return cli, nil
}

func listTools(ctx context.Context, cli *client.Client, endpoint string, timeout time.Duration) ([]mcp.Tool, error) {
	listCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	res, err := cli.ListTools(listCtx, mcp.ListToolsRequest{})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("timeout while listing tools for %s", endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("could not list tools for %s: %w", endpoint, err)
	}
	return res.Tools, nil
}

// Probe connects to endpoint, lists its tools and disconnects. A server with
// no tools fails with ErrNoTools.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) ([]mcp.Tool, error) {
	cli, err := dial(ctx, endpoint, timeout)
	if err != nil {
		return nil, err
	}
	defer cli.Close() //nolint:errcheck

	tools, err := listTools(ctx, cli, endpoint, timeout)
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, ErrNoTools
	}
	return tools, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
