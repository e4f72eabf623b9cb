package session

import (
	"path/filepath"

	"github.com/dotcommander/agentgraph/internal/a2a"
	"github.com/dotcommander/agentgraph/internal/config"
	"github.com/dotcommander/agentgraph/internal/graph"
	"github.com/dotcommander/agentgraph/internal/llm"
	"github.com/dotcommander/agentgraph/internal/readiness"
	"github.com/dotcommander/agentgraph/internal/transcript"
)

// New wires a Service against real providers, tool servers and remote
// agents as configured by cfg.
func New(cfg config.Config, creds config.Credentials) (*Service, error) {
	models, err := llm.NewFactory(creds, cfg.HTTPProxy)
	if err != nil {
		return nil, err
	}
	remote := a2a.Options{PollInterval: cfg.A2APollInterval, Timeout: cfg.A2ATimeout}

	svc := &Service{
		Checker: readiness.NewChecker(
			readiness.NetworkProber{Models: models, A2A: remote},
			cfg.ProbeTimeout,
			cfg.ProbeConcurrency,
		),
		Compiler: &graph.Compiler{
			Models:   models,
			Tools:    graph.MCPConnector{Timeout: cfg.MCPTimeout},
			Remotes:  graph.A2AConnector{Options: remote},
			MaxSteps: cfg.MaxAgentSteps,
		},
		RecursionLimit: cfg.RecursionLimit,
		DefaultUser:    cfg.DefaultUser,
	}
	if cfg.RecordTranscripts {
		store, err := transcript.Open(filepath.Clean(cfg.DataDir))
		if err != nil {
			return nil, err
		}
		svc.Transcripts = store
	}
	return svc, nil
}
