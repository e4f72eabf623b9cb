package engine

import (
	"context"
	"fmt"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/proto"
)

// RemoteAgent sends one turn to an agent hosted elsewhere.
type RemoteAgent interface {
	Send(ctx context.Context, req a2a.Request) (a2a.Reply, error)
}

// Remote is a pass-through node forwarding the latest message to a remote
// agent. The remote conversation continues when the message before the
// latest one came from a remote agent.
type Remote struct {
	Agent RemoteAgent
}

// Run implements Node.
func (r *Remote) Run(ctx context.Context, task Task) ([]proto.Message, error) {
	last, ok := task.Messages.Last()
	if !ok {
		return nil, fmt.Errorf("remote agent: no message to send")
	}
	req := a2a.Request{Text: last.Content}
	if prev := task.Messages.PreviousRemote(); prev != nil {
		req.ContextID = prev.ContextID
		if prev.TaskID != "" {
			req.ReferenceTaskIDs = []string{prev.TaskID}
		}
	}

	reply, err := r.Agent.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("remote agent: %w", err)
	}

	if err := task.Emit(ctx, ModeMessages, Reply{Content: reply.Text}); err != nil {
		return nil, err
	}
	return []proto.Message{{
		Role:    proto.RoleAssistant,
		Content: reply.Text,
		Sender:  task.NodeID,
		Remote:  &proto.RemoteRef{ContextID: reply.ContextID, TaskID: reply.TaskID},
	}}, nil
}
