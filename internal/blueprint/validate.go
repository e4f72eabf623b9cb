package blueprint

import (
	"strings"

	"github.com/dotcommander/agentgraph/internal/errs"
)

// Tool endpoint suffixes selecting the MCP transport.
const (
	SuffixStreamableHTTP = "/mcp"
	SuffixSSE            = "/sse"
)

// Validate checks the structural invariants of bp and returns it unchanged.
// Checks run in a fixed order so the first violation reported is stable:
// identifier uniqueness, connection endpoints, start rules, tool links and
// tool endpoint suffixes. It performs no I/O.
func Validate(bp *Blueprint) (*Blueprint, error) {
	nodes := make(map[string]Node, len(bp.Nodes))
	for _, n := range bp.Nodes {
		if _, dup := nodes[n.ID()]; dup {
			return nil, errs.Structuralf("duplicate node id %q", n.ID())
		}
		nodes[n.ID()] = n
	}

	conns := make(map[string]struct{}, len(bp.Connections))
	for _, c := range bp.Connections {
		if _, dup := conns[c.ID()]; dup {
			return nil, errs.Structuralf("duplicate connection id %q", c.ID())
		}
		conns[c.ID()] = struct{}{}
		if _, ok := nodes[c.Source()]; !ok {
			return nil, errs.Structuralf("connection %q references unknown source node %q", c.ID(), c.Source())
		}
		if _, ok := nodes[c.Destination()]; !ok {
			return nil, errs.Structuralf("connection %q references unknown destination node %q", c.ID(), c.Destination())
		}
	}

	if err := validateStart(bp, nodes); err != nil {
		return nil, err
	}

	for _, link := range ConnectionsOf[ToolLink](bp) {
		if _, ok := nodes[link.Source()].(Tool); !ok {
			return nil, errs.Structuralf("tool connection %q must start at a %s node, got %s",
				link.ID(), TypeTool, nodes[link.Source()].Type())
		}
		if _, ok := nodes[link.Destination()].(Agent); !ok {
			return nil, errs.Structuralf("tool connection %q must end at an %s node, got %s",
				link.ID(), TypeAgent, nodes[link.Destination()].Type())
		}
	}

	for _, tool := range NodesOf[Tool](bp) {
		if !strings.HasSuffix(tool.Endpoint, SuffixStreamableHTTP) && !strings.HasSuffix(tool.Endpoint, SuffixSSE) {
			return nil, errs.Configurationf("tool node %q: endpoint %q must end with %s or %s",
				tool.Name, tool.Endpoint, SuffixStreamableHTTP, SuffixSSE)
		}
	}

	return bp, nil
}

func validateStart(bp *Blueprint, nodes map[string]Node) error {
	starts := NodesOf[Start](bp)
	switch len(starts) {
	case 0:
		return errs.Structuralf("blueprint has no %s node", TypeStart)
	case 1:
	default:
		return errs.Structuralf("blueprint has %d %s nodes, want exactly one", len(starts), TypeStart)
	}

	var outgoing []Direct
	for _, c := range ConnectionsOf[Direct](bp) {
		if c.Source() == starts[0].ID() {
			outgoing = append(outgoing, c)
		}
	}
	if len(outgoing) != 1 {
		return errs.Structuralf("%s node %q has %d outgoing direct connections, want exactly one",
			TypeStart, starts[0].Name, len(outgoing))
	}

	switch entry := nodes[outgoing[0].Destination()].(type) {
	case Agent, RemoteAgent:
		return nil
	default:
		return errs.Structuralf("entry node %q is a %s node; the %s node must lead to an %s or %s node",
			entry.DisplayName(), entry.Type(), TypeStart, TypeAgent, TypeRemoteAgent)
	}
}
