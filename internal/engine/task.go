package engine

import (
	"context"
	"slices"

	"github.com/dotcommander/agentgraph/internal/proto"
)

// Node is one executable vertex of a graph.
type Node interface {
	// Run executes the node against the run state and returns the messages
	// it adds to it.
	Run(ctx context.Context, task Task) ([]proto.Message, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, task Task) ([]proto.Message, error)

// Run implements Node.
func (f NodeFunc) Run(ctx context.Context, task Task) ([]proto.Message, error) {
	return f(ctx, task)
}

// Task is one execution of a node within a superstep.
type Task struct {
	NodeID   string
	ID       string
	Messages proto.Conversation

	out chan<- Event
}

// Namespace returns the namespace of events emitted by the task.
func (t Task) Namespace() []string {
	return []string{t.NodeID + ":" + t.ID}
}

// Emit publishes an event from the task. It blocks until the consumer takes
// the event or ctx is done.
func (t Task) Emit(ctx context.Context, mode Mode, payload any, tags ...string) error {
	if t.out == nil {
		return nil
	}
	ev := Event{Namespace: t.Namespace(), Mode: mode, Payload: payload, Tags: slices.Clone(tags)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.out <- ev:
		return nil
	}
}
