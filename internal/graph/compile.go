// Package graph compiles validated blueprints into executable graphs.
package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"charm.land/fantasy"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/ctxlog"
	"github.com/dotcommander/agentgraph/internal/engine"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/llm"
)

// Compiler turns blueprints into executable graphs. Its connectors are the
// only way it reaches models, tool servers and remote agents.
type Compiler struct {
	Models   ModelFactory
	Tools    ToolConnector
	Remotes  RemoteConnector
	MaxSteps int
}

// Option customizes one compilation.
type Option func(*options)

type options struct {
	user string
}

// WithUser attributes model calls to the given user.
func WithUser(id string) Option {
	return func(o *options) { o.user = id }
}

// Compiled is an executable graph together with the clients it holds. Close
// releases them.
type Compiled struct {
	Graph     *engine.Graph
	NodesByID map[string]blueprint.Node

	closers []io.Closer
}

// Close releases every client held by the graph.
func (c *Compiled) Close() error {
	var err error
	for _, cl := range c.closers {
		err = errors.Join(err, cl.Close())
	}
	c.closers = nil
	return err
}

// Compile builds the executable graph of a validated blueprint. Models are
// resolved first, then the graph is wired, and only then are tool servers
// and remote agents connected. Any failure releases every client opened so
// far.
func (c *Compiler) Compile(ctx context.Context, bp *blueprint.Blueprint, opts ...Option) (*Compiled, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	models := map[string]fantasy.LanguageModel{}
	for _, agent := range blueprint.NodesOf[blueprint.Agent](bp) {
		model, err := c.Models.LanguageModel(ctx, agent.Model)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", agent.Name, err)
		}
		models[agent.ID()] = model
	}

	g, err := plan(bp)
	if err != nil {
		return nil, err
	}

	out := &Compiled{Graph: g, NodesByID: bp.NodesByID()}
	if err := c.bind(ctx, bp, out, models, o); err != nil {
		if cerr := out.Close(); cerr != nil {
			ctxlog.FromContext(ctx).WarnContext(ctx, "release clients after failed compile", ctxlog.Err(cerr))
		}
		return nil, err
	}
	return out, nil
}

func (c *Compiler) bind(ctx context.Context, bp *blueprint.Blueprint, out *Compiled, models map[string]fantasy.LanguageModel, o options) error {
	tools := GroupTools(bp)
	for _, n := range bp.Nodes {
		switch n := n.(type) {
		case blueprint.Agent:
			node := &engine.Agent{
				Model:    models[n.ID()],
				Options:  callOptions(n, o.user),
				MaxSteps: c.MaxSteps,
			}
			if endpoints := tools[n.ID()]; len(endpoints) > 0 {
				set, err := c.Tools.Open(ctx, endpoints)
				if err != nil {
					return fmt.Errorf("agent %q: %w", n.Name, err)
				}
				out.closers = append(out.closers, set)
				node.Tools = set
			}
			out.Graph.Nodes[n.ID()] = node
		case blueprint.RemoteAgent:
			remote, err := c.Remotes.Connect(ctx, n.BaseURL)
			if err != nil {
				return fmt.Errorf("remote agent %q: %w", n.Name, err)
			}
			out.closers = append(out.closers, remote)
			out.Graph.Nodes[n.ID()] = &engine.Remote{Agent: remote}
		}
	}
	return nil
}

// plan wires the control flow of bp without touching the network. Nodes are
// bound later.
func plan(bp *blueprint.Blueprint) (*engine.Graph, error) {
	g := &engine.Graph{
		Nodes: map[string]engine.Node{},
		Edges: map[string][]string{},
	}
	nodes := bp.NodesByID()
	executable := func(id string) bool {
		switch nodes[id].(type) {
		case blueprint.Agent, blueprint.RemoteAgent:
			return true
		}
		return false
	}

	entry, ok := bp.EntryConnection()
	if !ok || !executable(entry.Destination()) {
		return nil, errs.Topologyf("entry point %q is not an executable node", entry.Destination())
	}
	g.Entry = entry.Destination()

	for _, conn := range bp.Connections {
		if !executable(conn.Source()) {
			continue
		}
		switch conn := conn.(type) {
		case blueprint.Direct:
			// Edges into End or Tool nodes carry no successor.
			if executable(conn.Destination()) && !slices.Contains(g.Edges[conn.Source()], conn.Destination()) {
				g.Edges[conn.Source()] = append(g.Edges[conn.Source()], conn.Destination())
			}
		case blueprint.Conditional:
			return nil, errs.NotImplementedf("conditional connection %q from %q", conn.ID(), nodes[conn.Source()].DisplayName())
		}
	}
	return g, nil
}

// GroupTools maps each agent id to the distinct endpoints of the tools
// linked to it, sorted.
func GroupTools(bp *blueprint.Blueprint) map[string][]string {
	nodes := bp.NodesByID()
	out := map[string][]string{}
	for _, link := range blueprint.ConnectionsOf[blueprint.ToolLink](bp) {
		tool, ok := nodes[link.Source()].(blueprint.Tool)
		if !ok {
			continue
		}
		agent := link.Destination()
		if !slices.Contains(out[agent], tool.Endpoint) {
			out[agent] = append(out[agent], tool.Endpoint)
		}
	}
	for _, endpoints := range out {
		slices.Sort(endpoints)
	}
	return out
}

func callOptions(a blueprint.Agent, user string) llm.CallOptions {
	temp := a.Parameters.Temperature
	opts := llm.CallOptions{
		Provider:    a.Model.ProviderName(),
		Temperature: &temp,
		MaxTokens:   a.Parameters.MaxTokens,
		User:        user,
	}
	if a.Parameters.SystemPrompt != nil {
		opts.SystemPrompt = *a.Parameters.SystemPrompt
	}
	return opts
}
