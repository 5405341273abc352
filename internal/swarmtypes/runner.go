package swarmtypes

import "context"

// RunnerConfig describes a single subagent invocation.
type RunnerConfig struct {
	Task      string
	Tools     []string
	MaxTurns  int
	Cwd       string
	SessionID string
	Depth     int
	OnChunk   func(text string)
}

// Runner executes one subagent task to completion. Stop is idempotent and
// non-blocking; it signals cancellation but does not wait for Run to return.
type Runner interface {
	Run(ctx context.Context) (SubResult, error)
	Stop()
}

// RunnerFactory constructs a Runner for a given config. This is the external
// collaborator boundary: the prompt/tool-call loop itself lives behind this
// interface and is never specified here.
type RunnerFactory interface {
	Create(ctx context.Context, cfg RunnerConfig) (Runner, error)
}
