// Package readiness verifies that every external dependency of a blueprint
// answers before any client is kept open for a run.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/fantasy"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/blueprint"
	"github.com/dotcommander/agentgraph/internal/errs"
	"github.com/dotcommander/agentgraph/internal/llm"
	"github.com/dotcommander/agentgraph/internal/mcp"
)

// Defaults for a Checker.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultConcurrency = 8
)

// Kind names the class of a probe target.
type Kind string

// Target kinds.
const (
	KindModel  Kind = "model"
	KindTool   Kind = "tool"
	KindRemote Kind = "remote agent"
)

// Target is one dependency to probe.
type Target struct {
	Kind    Kind
	Name    string
	Address string

	provider blueprint.Provider
}

// Outcome is the result of probing one Target. Err is nil on success.
type Outcome struct {
	Target
	Err error
}

// ReadinessError lists every failed probe in blueprint declaration order.
type ReadinessError struct {
	Failures []Outcome
}

func (e *ReadinessError) Error() string {
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, fmt.Sprintf("%s %q (%s): %v", f.Kind, f.Name, f.Address, f.Err))
	}
	return fmt.Sprintf("%s: %d of the workflow's dependencies failed: %s",
		errs.ErrReadiness, len(e.Failures), strings.Join(lines, "; "))
}

// Is makes errors.Is(err, errs.ErrReadiness) hold.
func (e *ReadinessError) Is(target error) bool {
	return target == errs.ErrReadiness
}

// Unwrap exposes the probe failures, so a failure caused by the blueprint's
// own configuration still matches errs.ErrConfiguration.
func (e *ReadinessError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// Prober performs the individual probes.
type Prober interface {
	ProbeModel(ctx context.Context, p blueprint.Provider) error
	ProbeTools(ctx context.Context, endpoint string) error
	ProbeRemote(ctx context.Context, baseURL string) error
}

// ModelFactory builds language models to ping.
type ModelFactory interface {
	LanguageModel(ctx context.Context, p blueprint.Provider) (fantasy.LanguageModel, error)
}

// NetworkProber probes real models, tool servers and remote agents.
type NetworkProber struct {
	Models ModelFactory
	A2A    a2a.Options
}

// ProbeModel resolves the model and performs one small generation.
func (n NetworkProber) ProbeModel(ctx context.Context, p blueprint.Provider) error {
	model, err := n.Models.LanguageModel(ctx, p)
	if err != nil {
		return err
	}
	return llm.Ping(ctx, model)
}

// ProbeTools connects to the tool server and requires at least one tool.
func (n NetworkProber) ProbeTools(ctx context.Context, endpoint string) error {
	_, err := mcp.Probe(ctx, endpoint, 0)
	return err
}

// ProbeRemote resolves the remote agent's card.
func (n NetworkProber) ProbeRemote(ctx context.Context, baseURL string) error {
	cli, err := a2a.Resolve(ctx, baseURL, n.A2A)
	if err != nil {
		return err
	}
	return cli.Close()
}

// Checker runs all probes of a blueprint concurrently.
type Checker struct {
	prober      Prober
	timeout     time.Duration
	concurrency int
}

// NewChecker returns a Checker bounding each probe by timeout and running at
// most concurrency probes at once. Non-positive values select the defaults.
func NewChecker(p Prober, timeout time.Duration, concurrency int) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Checker{prober: p, timeout: timeout, concurrency: concurrency}
}

// Targets lists the probes of bp in declaration order: one per agent, one
// per distinct tool endpoint and one per distinct remote agent address.
func Targets(bp *blueprint.Blueprint) []Target {
	var out []Target
	seen := map[string]bool{}
	for _, n := range bp.Nodes {
		switch n := n.(type) {
		case blueprint.Agent:
			addr := n.Model.ProviderName() + "/" + n.Model.ModelName()
			if sh, ok := n.Model.(blueprint.SelfHosted); ok {
				addr = sh.BaseURL + " " + sh.Model
			}
			out = append(out, Target{Kind: KindModel, Name: n.Name, Address: addr, provider: n.Model})
		case blueprint.Tool:
			if key := "tool " + n.Endpoint; !seen[key] {
				seen[key] = true
				out = append(out, Target{Kind: KindTool, Name: n.Name, Address: n.Endpoint})
			}
		case blueprint.RemoteAgent:
			if key := "remote " + n.BaseURL; !seen[key] {
				seen[key] = true
				out = append(out, Target{Kind: KindRemote, Name: n.Name, Address: n.BaseURL})
			}
		}
	}
	return out
}

// Run probes every target of bp and returns all outcomes in target order. A
// failing probe never cancels its siblings.
func (c *Checker) Run(ctx context.Context, bp *blueprint.Blueprint) []Outcome {
	targets := Targets(bp)
	outcomes := make([]Outcome, len(targets))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			outcomes[i] = Outcome{Target: target, Err: c.probe(ctx, target)}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Check returns nil when every probe of bp succeeds and a *ReadinessError
// otherwise.
func (c *Checker) Check(ctx context.Context, bp *blueprint.Blueprint) error {
	var failures []Outcome
	for _, o := range c.Run(ctx, bp) {
		if o.Err != nil {
			failures = append(failures, o)
		}
	}
	if len(failures) > 0 {
		return &ReadinessError{Failures: failures}
	}
	return nil
}

func (c *Checker) probe(ctx context.Context, t Target) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("probe panicked: %v", p)
		}
	}()

	switch t.Kind {
	case KindModel:
		err = c.prober.ProbeModel(ctx, t.provider)
	case KindTool:
		err = c.prober.ProbeTools(ctx, t.Address)
	case KindRemote:
		err = c.prober.ProbeRemote(ctx, t.Address)
	default:
		err = fmt.Errorf("unknown target kind %q", t.Kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s", c.timeout)
	}
	return err
}
