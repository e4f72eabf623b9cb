// Package session runs one blueprint request end to end: it prepares the
// graph before any output is written, then streams frames to a sink.
package session

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/ctxlog"
	"github.com/dotcommander/agentgraph/internal/engine"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/graph"
	"github.com/dotcommander/agentgraph/internal/transcript"
	"github.com/dotcommander/agentgraph/internal/translate"
)

// DefaultUser identifies requests that name no user.
const DefaultUser = "default_user"

// Request is one run request.
type Request struct {
	Blueprint *blueprint.Blueprint
	Query     string
	UserID    string
}

// DecodeRequest decodes a {"workflow": <blueprint>, "query": <text>} body.
func DecodeRequest(data []byte) (Request, error) {
	if !gjson.ValidBytes(data) {
		return Request{}, errs.Schemaf("request body is not valid JSON")
	}
	workflow := gjson.GetBytes(data, "workflow")
	if !workflow.IsObject() {
		return Request{}, errs.Schemaf("workflow: required object")
	}
	query := gjson.GetBytes(data, "query")
	if query.Type != gjson.String {
		return Request{}, errs.Schemaf("query: required string")
	}
	bp, err := blueprint.Parse([]byte(workflow.Raw))
	if err != nil {
		return Request{}, err
	}
	return Request{Blueprint: bp, Query: query.String()}, nil
}

// Checker verifies a blueprint's dependencies.
type Checker interface {
	Check(ctx context.Context, bp *blueprint.Blueprint) error
}

// Compiler builds executable graphs.
type Compiler interface {
	Compile(ctx context.Context, bp *blueprint.Blueprint, opts ...graph.Option) (*graph.Compiled, error)
}

// Recorder stores the frames of finished runs.
type Recorder interface {
	Save(rec transcript.Record, frames [][]byte) error
}

// Service prepares and runs blueprint requests.
type Service struct {
	Checker        Checker
	Compiler       Compiler
	Transcripts    Recorder
	RecursionLimit int
	DefaultUser    string
}

// Prepare validates, checks and compiles the request's blueprint. Every
// failure is returned here, before the run writes anything.
func (s *Service) Prepare(ctx context.Context, req Request) (*Run, error) {
	bp, err := blueprint.Validate(req.Blueprint)
	if err != nil {
		return nil, err
	}
	if err := s.Checker.Check(ctx, bp); err != nil {
		return nil, err
	}

	user := req.UserID
	if user == "" {
		user = s.DefaultUser
	}
	if user == "" {
		user = DefaultUser
	}

	compiled, err := s.Compiler.Compile(ctx, bp, graph.WithUser(user))
	if err != nil {
		return nil, err
	}

	runID, err := uuid.NewV7()
	if err != nil {
		_ = compiled.Close()
		return nil, fmt.Errorf("run id: %w", err)
	}
	return &Run{
		svc:      s,
		compiled: compiled,
		query:    req.Query,
		workflow: bp.Name,
		meta: translate.Metadata{
			WorkflowID: bp.WorkflowID,
			ChatID:     uuid.NewString(),
			RunID:      runID.String(),
			UserID:     user,
		},
	}, nil
}

// Run is a prepared request. It must be streamed or closed.
type Run struct {
	svc      *Service
	compiled *graph.Compiled
	query    string
	workflow string
	meta     translate.Metadata
	closed   bool
}

// Metadata returns the identifiers stamped on every frame of the run.
func (r *Run) Metadata() translate.Metadata { return r.meta }

// Summary describes a finished stream.
type Summary struct {
	Frames int
	// Failure is the error reported in the terminal error frame, if any.
	Failure error
}

// Stream executes the run and writes its frames to sink. A failure during
// execution is written as exactly one terminal error frame and reported in
// the Summary. The returned error is only set when the sink fails or ctx is
// done; nothing is written after ctx is done. Clients are released before
// Stream returns.
func (r *Run) Stream(ctx context.Context, sink translate.Sink) (sum Summary, err error) {
	log := ctxlog.FromContext(ctx).With("run_id", r.meta.RunID, "workflow_id", r.meta.WorkflowID)
	started := time.Now()
	defer r.Close(ctx)

	var recorded [][]byte
	write := func(v any) error {
		if r.svc.Transcripts != nil {
			if data, err := json.Marshal(v); err == nil {
				recorded = append(recorded, data)
			}
		}
		if err := sink.WriteFrame(v); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		sum.Frames++
		return nil
	}

	failure, err := r.pump(ctx, write)
	if err != nil {
		return sum, err
	}
	if ctx.Err() != nil {
		return sum, ctx.Err()
	}
	if failure != nil {
		log.ErrorContext(ctx, "run failed", ctxlog.Err(failure))
		sum.Failure = failure
		if err := write(translate.NewErrorFrame(failure)); err != nil {
			return sum, err
		}
	}

	log.InfoContext(ctx, "run finished", "frames", sum.Frames, "duration", time.Since(started))
	r.record(ctx, recorded, started, failure != nil)
	return sum, nil
}

// pump moves engine events through the translator. It returns the run's
// failure, or an error when the sink rejects a frame.
func (r *Run) pump(ctx context.Context, write func(any) error) (failure, err error) {
	defer func() {
		if p := recover(); p != nil {
			failure = errs.Runtimef("panic while streaming: %v", p)
		}
	}()

	tr := translate.New(r.compiled.NodesByID, r.meta)
	runner := &engine.Runner{Graph: r.compiled.Graph, RecursionLimit: r.svc.RecursionLimit}
	for ev, runErr := range runner.Stream(ctx, r.query) {
		if runErr != nil {
			return runErr, nil
		}
		frames, terr := tr.Translate(ev)
		for _, f := range frames {
			if err := write(f); err != nil {
				return nil, err
			}
		}
		if terr != nil {
			return terr, nil
		}
	}
	return nil, nil
}

func (r *Run) record(ctx context.Context, frames [][]byte, started time.Time, failed bool) {
	if r.svc.Transcripts == nil {
		return
	}
	rec := transcript.Record{
		RunID:      r.meta.RunID,
		WorkflowID: r.meta.WorkflowID,
		Workflow:   r.workflow,
		ChatID:     r.meta.ChatID,
		UserID:     r.meta.UserID,
		Query:      r.query,
		StartedAt:  started.UTC(),
		Failed:     failed,
	}
	if err := r.svc.Transcripts.Save(rec, frames); err != nil {
		ctxlog.FromContext(ctx).WarnContext(ctx, "could not record transcript", "run_id", r.meta.RunID, ctxlog.Err(err))
	}
}

// Close releases the run's clients without streaming. It is safe to call
// more than once.
func (r *Run) Close(ctx context.Context) {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.compiled.Close(); err != nil {
		ctxlog.FromContext(ctx).WarnContext(ctx, "release clients", "run_id", r.meta.RunID, ctxlog.Err(err))
	}
}
