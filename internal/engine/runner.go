package engine

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/agentgraph/internal/ctxlog"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/proto"
)

// DefaultRecursionLimit bounds the supersteps of a run.
const DefaultRecursionLimit = 25

// Graph is an executable graph. Edges holds the successors of each node; a
// node without successors ends its branch.
type Graph struct {
	Entry string
	Nodes map[string]Node
	Edges map[string][]string
}

// Runner executes a Graph.
type Runner struct {
	Graph          *Graph
	RecursionLimit int
}

// Stream runs the graph on input and yields its events in order. A failed
// run yields one final error. Nothing is yielded once ctx is done, and
// breaking out of the loop stops the run.
func (r *Runner) Stream(ctx context.Context, input string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		events := make(chan Event)
		errc := make(chan error, 1)
		go func() {
			defer close(events)
			errc <- r.run(ctx, input, events)
		}()
		defer func() {
			cancel()
			for range events { //nolint:revive
			}
		}()

		for ev := range events {
			if ctx.Err() != nil {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := <-errc; err != nil && ctx.Err() == nil {
			yield(Event{}, err)
		}
	}
}

func (r *Runner) run(ctx context.Context, input string, out chan<- Event) error {
	if r.Graph == nil || r.Graph.Nodes[r.Graph.Entry] == nil {
		return errs.Runtimef("graph has no executable entry")
	}
	limit := r.RecursionLimit
	if limit <= 0 {
		limit = DefaultRecursionLimit
	}

	log := ctxlog.FromContext(ctx)
	state := proto.Conversation{{Role: proto.RoleUser, Content: input}}
	frontier := []string{r.Graph.Entry}

	for step := 0; len(frontier) > 0; step++ {
		if step >= limit {
			return errs.Runtimef("recursion limit of %d reached without hitting a stop condition", limit)
		}
		log.DebugContext(ctx, "superstep", "step", step, "nodes", frontier)

		results := make([][]proto.Message, len(frontier))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range frontier {
			task := Task{
				NodeID:   id,
				ID:       uuid.NewString(),
				Messages: slices.Clone(state),
				out:      out,
			}
			node := r.Graph.Nodes[id]
			g.Go(func() (err error) {
				defer func() {
					if p := recover(); p != nil {
						err = errs.Runtimef("node %s panicked: %v", id, p)
					}
				}()
				msgs, err := node.Run(gctx, task)
				if err != nil {
					return fmt.Errorf("node %s: %w", id, err)
				}
				results[i] = msgs
				return task.Emit(gctx, ModeUpdates, Update{NodeID: id, Messages: msgs}, TagSkipStream)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, msgs := range results {
			state = append(state, msgs...)
		}
		frontier = r.next(frontier)
	}
	return nil
}

// next returns the deduplicated successors of the nodes that just ran.
func (r *Runner) next(ran []string) []string {
	var frontier []string
	for _, id := range ran {
		for _, succ := range r.Graph.Edges[id] {
			if _, ok := r.Graph.Nodes[succ]; ok && !slices.Contains(frontier, succ) {
				frontier = append(frontier, succ)
			}
		}
	}
	return frontier
}
