package llmrunner

import (
	"context"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// ScriptFunc produces a canned SubResult for a task's prompt text, without
// calling out to any real provider. Used in tests and for demoing a swarm
// run offline.
type ScriptFunc func(task string) swarmtypes.SubResult

// ScriptedFactory is an in-memory swarmtypes.RunnerFactory driven entirely
// by a ScriptFunc — no network calls, no API key.
type ScriptedFactory struct {
	Script ScriptFunc
}

// NewScriptedFactory constructs a ScriptedFactory from fn.
func NewScriptedFactory(fn ScriptFunc) *ScriptedFactory {
	return &ScriptedFactory{Script: fn}
}

// Create implements swarmtypes.RunnerFactory.
func (f *ScriptedFactory) Create(ctx context.Context, cfg swarmtypes.RunnerConfig) (swarmtypes.Runner, error) {
	return &scriptedRunner{script: f.Script, cfg: cfg}, nil
}

type scriptedRunner struct {
	script  ScriptFunc
	cfg     swarmtypes.RunnerConfig
	stopped bool
}

func (r *scriptedRunner) Stop() { r.stopped = true }

func (r *scriptedRunner) Run(ctx context.Context) (swarmtypes.SubResult, error) {
	if r.stopped {
		return swarmtypes.SubResult{Success: false, Error: "cancelled", SubID: r.cfg.SessionID}, nil
	}
	result := r.script(r.cfg.Task)
	if result.SubID == "" {
		result.SubID = r.cfg.SessionID
	}
	return result, nil
}
