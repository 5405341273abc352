package swarmcoord

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swarmcore/swarmcore/internal/aggregator"
	"github.com/swarmcore/swarmcore/internal/critic"
	"github.com/swarmcore/swarmcore/internal/graphbuilder"
	"github.com/swarmcore/swarmcore/internal/postback"
	"github.com/swarmcore/swarmcore/internal/subagentmgr"
	"github.com/swarmcore/swarmcore/internal/swarmstatus"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

type scriptedRunner struct {
	result swarmtypes.SubResult
}

func (r *scriptedRunner) Run(ctx context.Context) (swarmtypes.SubResult, error) {
	return r.result, nil
}
func (r *scriptedRunner) Stop() {}

type scriptedFactory struct {
	script func(task string) swarmtypes.SubResult
}

func (f *scriptedFactory) Create(ctx context.Context, cfg swarmtypes.RunnerConfig) (swarmtypes.Runner, error) {
	return &scriptedRunner{result: f.script(cfg.Task)}, nil
}

func newTestCoordinator(script func(task string) swarmtypes.SubResult, approval ApprovalCallback) *Coordinator {
	return newTestCoordinatorWithEvents(script, approval, nil, false)
}

func newTestCoordinatorWithEvents(script func(task string) swarmtypes.SubResult, approval ApprovalCallback, events EventSink, sharedMemory bool) *Coordinator {
	factory := &scriptedFactory{script: script}
	spawner := subagentmgr.New(subagentmgr.Config{MaxDepth: 5, MaxConcurrent: 5}, factory, nil, nil, nil)
	builder := graphbuilder.NewBuilder(graphbuilder.Config{MaxTasks: 20})
	status := swarmstatus.New(swarmstatus.Config{})
	aggr := aggregator.New()
	crit := critic.New(critic.Config{}, nil)
	pb := postback.New(postback.Config{})
	cfg := Config{Enabled: true, AutoApprove: true, MaxConcurrent: 3, SwarmTimeout: 5 * time.Second, EnableSharedMemory: sharedMemory}
	return New(cfg, spawner, builder, status, aggr, crit, pb, approval, events, nil)
}

func TestExecuteWithCallerSuppliedTasksCompletes(t *testing.T) {
	c := newTestCoordinator(func(task string) swarmtypes.SubResult {
		return swarmtypes.SubResult{Success: true, Result: "## Result\n\nwork done for " + task}
	}, nil)

	result, err := c.Execute(context.Background(), ExecuteInput{
		Goal: "do the thing",
		Tasks: []*swarmtypes.Task{
			{ID: "a", Description: "a"},
			{ID: "b", Description: "b"},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State.Status != swarmtypes.SwarmCompleted {
		t.Fatalf("Status=%v, want completed (errors=%v)", result.State.Status, result.State.Errors)
	}
	if result.State.Metrics.Completed != 2 {
		t.Fatalf("Completed=%d, want 2", result.State.Metrics.Completed)
	}
	if !strings.Contains(result.FinalResult, "work done") {
		t.Fatalf("FinalResult missing content: %q", result.FinalResult)
	}
}

func TestExecuteFoldsFailedTaskIntoMetrics(t *testing.T) {
	c := newTestCoordinator(func(task string) swarmtypes.SubResult {
		if task == "a" {
			return swarmtypes.SubResult{Success: false, Error: "boom"}
		}
		return swarmtypes.SubResult{Success: true, Result: "## Result\n\ndone"}
	}, nil)

	result, err := c.Execute(context.Background(), ExecuteInput{
		Goal: "x",
		Tasks: []*swarmtypes.Task{
			{ID: "a", Description: "a"},
			{ID: "b", Description: "b"},
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State.Metrics.Completed != 1 {
		t.Fatalf("Completed=%d, want 1", result.State.Metrics.Completed)
	}
	if result.State.Metrics.Failed != 1 {
		t.Fatalf("Failed=%d, want 1 (the non-success task must still be folded in)", result.State.Metrics.Failed)
	}
	if result.State.TaskResults["a"] == nil || result.State.TaskResults["a"].Success {
		t.Fatalf("TaskResults[a]=%v, want a recorded failed SubResult", result.State.TaskResults["a"])
	}
}

func TestExecuteDisabledReturnsError(t *testing.T) {
	c := newTestCoordinator(func(string) swarmtypes.SubResult { return swarmtypes.SubResult{Success: true} }, nil)
	c.cfg.Enabled = false
	if _, err := c.Execute(context.Background(), ExecuteInput{Goal: "x"}); err != ErrDisabled {
		t.Fatalf("err=%v, want ErrDisabled", err)
	}
}

func TestExecuteFromPlannerOutput(t *testing.T) {
	c := newTestCoordinator(func(task string) swarmtypes.SubResult {
		if strings.HasPrefix(task, "Plan:") {
			return swarmtypes.SubResult{Success: true, Result: `[{"description":"gather"},{"description":"report","dependsOn":[0]}]`}
		}
		return swarmtypes.SubResult{Success: true, Result: "## Result\n\ndone"}
	}, nil)

	result, err := c.Execute(context.Background(), ExecuteInput{Goal: "research something"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State.Metrics.TotalTasks != 2 {
		t.Fatalf("TotalTasks=%d, want 2", result.State.Metrics.TotalTasks)
	}
}

func TestExecuteApprovalAbortCancels(t *testing.T) {
	c := newTestCoordinator(func(string) swarmtypes.SubResult {
		return swarmtypes.SubResult{Success: true, Result: "done"}
	}, func(ctx context.Context, plan *swarmtypes.Plan) ApprovalResult {
		return ApprovalResult{Decision: ApprovalAbort}
	})
	c.cfg.AutoApprove = false

	result, err := c.Execute(context.Background(), ExecuteInput{
		Goal:  "x",
		Tasks: []*swarmtypes.Task{{ID: "a", Description: "a"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State.Status != swarmtypes.SwarmCancelled {
		t.Fatalf("Status=%v, want cancelled", result.State.Status)
	}
}

func TestExecuteRejectsConcurrentRuns(t *testing.T) {
	c := newTestCoordinator(func(string) swarmtypes.SubResult {
		time.Sleep(50 * time.Millisecond)
		return swarmtypes.SubResult{Success: true, Result: "done"}
	}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), ExecuteInput{Goal: "x", Tasks: []*swarmtypes.Task{{ID: "a", Description: "a"}}})
		errCh <- err
	}()
	time.Sleep(5 * time.Millisecond)
	_, err := c.Execute(context.Background(), ExecuteInput{Goal: "y", Tasks: []*swarmtypes.Task{{ID: "b", Description: "b"}}})
	if err != ErrAlreadyRunning {
		t.Fatalf("err=%v, want ErrAlreadyRunning", err)
	}
	<-errCh
}

func TestExecuteEmitsPhaseEvents(t *testing.T) {
	var mu sync.Mutex
	var phases []CoordinatorPhase
	events := func(ev CoordinatorEvent) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, ev.Phase)
	}
	c := newTestCoordinatorWithEvents(func(task string) swarmtypes.SubResult {
		return swarmtypes.SubResult{Success: true, Result: "done"}
	}, nil, events, false)

	_, err := c.Execute(context.Background(), ExecuteInput{
		Goal:  "x",
		Tasks: []*swarmtypes.Task{{ID: "a", Description: "a"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(phases) == 0 {
		t.Fatalf("expected at least one emitted event")
	}
	if phases[0] != PhaseInit {
		t.Fatalf("phases[0]=%v, want init", phases[0])
	}
	if phases[len(phases)-1] != PhaseTerminated {
		t.Fatalf("last phase=%v, want terminated", phases[len(phases)-1])
	}
}

func TestExecuteWithSharedMemoryPublishesTaskResults(t *testing.T) {
	c := newTestCoordinatorWithEvents(func(task string) swarmtypes.SubResult {
		return swarmtypes.SubResult{Success: true, Result: "result for " + task}
	}, nil, nil, true)

	result, err := c.Execute(context.Background(), ExecuteInput{
		Goal:  "x",
		Tasks: []*swarmtypes.Task{{ID: "a", Description: "a"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.State.Shared == nil {
		t.Fatalf("expected Shared to be set when EnableSharedMemory is true")
	}
	v, ok := result.State.Shared.GetFromTask("a")
	if !ok {
		t.Fatalf("expected task a's result to have been published")
	}
	if v != "result for a" {
		t.Fatalf("published value=%v, want %q", v, "result for a")
	}
}
