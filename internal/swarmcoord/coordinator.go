// Package swarmcoord owns the top-level swarm run: sequencing planning,
// approval, dispatch, critic review, and aggregation into a single
// SwarmResult, while enforcing the swarm-wide deadline and cancellation
// flag documented for the run as a whole.
package swarmcoord

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/swarmcore/swarmcore/internal/aggregator"
	"github.com/swarmcore/swarmcore/internal/critic"
	"github.com/swarmcore/swarmcore/internal/dispatcher"
	"github.com/swarmcore/swarmcore/internal/graphbuilder"
	"github.com/swarmcore/swarmcore/internal/postback"
	"github.com/swarmcore/swarmcore/internal/subagentmgr"
	"github.com/swarmcore/swarmcore/internal/swarmstatus"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// ErrAlreadyRunning is returned by Execute when another swarm is already in
// flight on the same Coordinator.
var ErrAlreadyRunning = errors.New("swarmcoord: a swarm is already running")

// ErrDisabled is returned by Execute when Config.Enabled is false.
var ErrDisabled = errors.New("swarmcoord: swarm execution is disabled")

// ApprovalDecision is the caller's verdict on a proposed plan.
type ApprovalDecision string

const (
	ApprovalApprove ApprovalDecision = "approve"
	ApprovalEdit    ApprovalDecision = "edit"
	ApprovalAbort   ApprovalDecision = "abort"
)

// ApprovalResult is returned by an ApprovalCallback.
type ApprovalResult struct {
	Decision  ApprovalDecision
	EditedPlan []*swarmtypes.Task // only consulted when Decision == ApprovalEdit
}

// ApprovalCallback is invoked once per plan unless Config.AutoApprove is
// set. An ApprovalEdit result is accepted as returned; the callback is not
// called again for the edited plan.
type ApprovalCallback func(ctx context.Context, plan *swarmtypes.Plan) ApprovalResult

// Config tunes one Coordinator's swarm runs. Overrides supplied on
// ExecuteInput are applied on top of this base config per run.
type Config struct {
	Enabled             bool
	MaxConcurrent       int
	MaxTasks            int
	AutoApprove         bool
	EnableCritic        bool
	MaxCriticIterations int
	TokenBudget         int
	SwarmTimeout        time.Duration
	DispatcherConfig    dispatcher.Config
	CriticConfig        critic.Config
	PostbackConfig      postback.Config

	// EnableSharedMemory, when true, gives the run an InMemorySharedContext
	// so tasks can publish intermediate findings for later tasks to read.
	EnableSharedMemory bool
	SharedMemoryBuffer int
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = 50
	}
	if c.MaxCriticIterations <= 0 {
		c.MaxCriticIterations = 2
	}
	if c.SwarmTimeout <= 0 {
		c.SwarmTimeout = 10 * time.Minute
	}
	return c
}

// ExecuteInput is one swarm run request.
type ExecuteInput struct {
	Goal      string
	Tasks     []*swarmtypes.Task // caller-supplied plan; if nil, a planner runner is spawned
	SessionID string
	Overrides *Config
}

// SwarmResult is the outcome of Execute.
type SwarmResult struct {
	State       *swarmtypes.SwarmState
	FinalResult string
	Verdict     *critic.Verdict
	Postback    *postback.PostbackMessage
}

// Coordinator sequences one swarm run at a time over its collaborators.
type Coordinator struct {
	cfg      Config
	spawner  *subagentmgr.Manager
	builder  *graphbuilder.Builder
	status   *swarmstatus.Provider
	aggr     *aggregator.Aggregator
	crit     *critic.Critic
	pb       *postback.Builder
	approval ApprovalCallback
	events   EventSink
	logger   *slog.Logger

	running  atomic.Bool
	mu       sync.Mutex
	stopFlag atomic.Bool
}

// New constructs a Coordinator. approval may be nil, in which case every plan
// is approved as if AutoApprove were set. events may be nil,
// in which case the run narrates to nobody.
func New(cfg Config, spawner *subagentmgr.Manager, builder *graphbuilder.Builder, status *swarmstatus.Provider, aggr *aggregator.Aggregator, crit *critic.Critic, pb *postback.Builder, approval ApprovalCallback, events EventSink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg: cfg.withDefaults(), spawner: spawner, builder: builder, status: status,
		aggr: aggr, crit: crit, pb: pb, approval: approval, events: events, logger: logger,
	}
}

// Stop requests cancellation of the in-flight run, if any. Idempotent and
// non-blocking.
func (c *Coordinator) Stop() {
	c.stopFlag.Store(true)
	if c.spawner != nil {
		c.spawner.StopAll()
	}
}

// Execute runs one swarm to completion, following the Init/Planning/
// Approval/Execution/Critic/Aggregation/Terminate phase sequence.
func (c *Coordinator) Execute(ctx context.Context, in ExecuteInput) (*SwarmResult, error) {
	cfg := c.cfg
	if in.Overrides != nil {
		cfg = mergeOverrides(cfg, *in.Overrides)
	}
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer c.running.Store(false)
	c.stopFlag.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, cfg.SwarmTimeout)
	defer cancel()

	state := swarmtypes.NewSwarmState(uuid.New().String(), time.Now())
	c.logger.Info("swarm run started", "swarmId", state.ID, "goal", in.Goal)
	c.emit(state, PhaseInit, "swarm run started: "+in.Goal)

	if cfg.EnableSharedMemory {
		state.Shared = swarmtypes.NewInMemorySharedContext(cfg.SharedMemoryBuffer)
		defer state.Shared.Close()
	}

	c.emit(state, PhasePlanning, "planning")
	plan, err := c.plan(runCtx, cfg, in, state)
	if err != nil {
		return c.terminate(state, err.Error(), false), nil
	}
	if c.stopFlag.Load() {
		return c.terminate(state, "", true), nil
	}

	c.emit(state, PhaseApproval, "awaiting approval")
	approved, aborted := c.approve(runCtx, cfg, plan, state)
	if aborted {
		return c.terminate(state, "", true), nil
	}
	state.Plan = approved

	c.emit(state, PhaseExecution, "dispatching tasks")
	budgetExceeded := c.dispatch(runCtx, cfg, approved, state)
	if c.stopFlag.Load() {
		return c.terminate(state, "", true), nil
	}
	if budgetExceeded {
		c.emit(state, PhaseExecution, "token budget exceeded, stopping early")
	}

	var verdict *critic.Verdict
	if cfg.EnableCritic && c.crit != nil && !budgetExceeded {
		c.emit(state, PhaseCritic, "running critic review")
		verdict = c.runCritic(runCtx, cfg, approved, state)
	}

	var aggregated aggregator.AggregatedResult
	var pbMsg *postback.PostbackMessage
	if !budgetExceeded {
		c.emit(state, PhaseAggregation, "aggregating results")
		aggregated = c.aggregate(approved, state)
		state.FinalResult = aggregated.Text
		if c.pb != nil {
			msg := c.pb.Build(postback.FormatMarkdown, postback.BuildInput{
				Tasks: approved.Tasks, Aggregated: aggregated, Metrics: state.Metrics, Verdict: verdict,
			})
			pbMsg = &msg
		}
	}

	result := c.terminate(state, "", false)
	c.emit(result, PhaseTerminated, "swarm run "+string(result.Status))
	return &SwarmResult{State: result, FinalResult: state.FinalResult, Verdict: verdict, Postback: pbMsg}, nil
}

func mergeOverrides(base, over Config) Config {
	if over.Enabled {
		base.Enabled = true
	}
	if over.MaxConcurrent > 0 {
		base.MaxConcurrent = over.MaxConcurrent
	}
	if over.MaxTasks > 0 {
		base.MaxTasks = over.MaxTasks
	}
	if over.AutoApprove {
		base.AutoApprove = true
	}
	if over.EnableCritic {
		base.EnableCritic = true
	}
	if over.TokenBudget > 0 {
		base.TokenBudget = over.TokenBudget
	}
	if over.SwarmTimeout > 0 {
		base.SwarmTimeout = over.SwarmTimeout
	}
	if over.EnableSharedMemory {
		base.EnableSharedMemory = true
	}
	if over.SharedMemoryBuffer > 0 {
		base.SharedMemoryBuffer = over.SharedMemoryBuffer
	}
	return base.withDefaults()
}

// plan builds a Plan either from caller-supplied tasks or by spawning a
// planner runner and parsing its output through graphbuilder.
func (c *Coordinator) plan(ctx context.Context, cfg Config, in ExecuteInput, state *swarmtypes.SwarmState) (*swarmtypes.Plan, error) {
	if len(in.Tasks) > 0 {
		tasks := in.Tasks
		if len(tasks) > cfg.MaxTasks {
			tasks = tasks[:cfg.MaxTasks]
		}
		return &swarmtypes.Plan{ID: uuid.New().String(), Goal: in.Goal, Tasks: tasks}, nil
	}

	state.Status = swarmtypes.SwarmPlanning
	result := c.spawner.Spawn(ctx, subagentmgr.SpawnConfig{
		Task:      "Plan: " + in.Goal,
		SessionID: in.SessionID,
	})
	if result == nil || !result.Success {
		return nil, errors.New("swarmcoord: planner subagent failed")
	}

	output, err := graphbuilder.ParsePlannerOutput(result.Result)
	if err != nil {
		return nil, err
	}
	tasks, err := c.builder.BuildFromPlannerOutput(output)
	if err != nil {
		return nil, err
	}
	return &swarmtypes.Plan{ID: uuid.New().String(), Goal: in.Goal, Tasks: tasks}, nil
}

// approve stamps the plan approved, or runs the injected callback. An abort
// sets state.Status to cancelled and returns aborted=true; an edit replaces
// the plan and bumps Version and the Replans metric.
func (c *Coordinator) approve(ctx context.Context, cfg Config, plan *swarmtypes.Plan, state *swarmtypes.SwarmState) (*swarmtypes.Plan, bool) {
	if cfg.AutoApprove || c.approval == nil {
		now := time.Now()
		plan.Approved = true
		plan.ApprovedAt = &now
		return plan, false
	}

	result := c.approval(ctx, plan)
	switch result.Decision {
	case ApprovalAbort:
		state.Status = swarmtypes.SwarmCancelled
		return plan, true
	case ApprovalEdit:
		plan.Tasks = result.EditedPlan
		plan.Version++
		state.Metrics.Replans++
		now := time.Now()
		plan.Approved = true
		plan.ApprovedAt = &now
		return plan, false
	default:
		now := time.Now()
		plan.Approved = true
		plan.ApprovedAt = &now
		return plan, false
	}
}

// dispatch runs the plan's tasks to completion via the dispatcher, folding
// token/tool-call metrics into state after each settle and stopping early
// if TokenBudget is exceeded. Returns whether the budget was exceeded.
func (c *Coordinator) dispatch(ctx context.Context, cfg Config, plan *swarmtypes.Plan, state *swarmtypes.SwarmState) bool {
	state.Status = swarmtypes.SwarmExecuting
	state.Metrics.TotalTasks = len(plan.Tasks)

	dcfg := cfg.DispatcherConfig
	dcfg.MaxConcurrent = cfg.MaxConcurrent

	var budgetExceeded atomic.Bool
	d := dispatcher.New(dcfg, c.spawner, func(ev dispatcher.Event) {
		switch ev.Type {
		case "task:completed", "task:failed", "task:timeout":
		default:
			// task:started, task:retry: not a terminal settle, nothing to fold.
			return
		}

		c.mu.Lock()
		if ev.Result != nil {
			state.Metrics.TokensUsed += ev.Result.TokensUsed
			state.Metrics.ToolCalls += ev.Result.ToolCalls
			state.Metrics.LLMCalls++
		}
		if ev.Type == "task:completed" {
			state.Metrics.Completed++
		} else {
			state.Metrics.Failed++
		}
		if state.Shared != nil && ev.Result != nil {
			state.Shared.Publish(ev.TaskID, ev.Result.Result)
		}
		if c.status != nil {
			for _, t := range plan.Tasks {
				if t.ID == ev.TaskID {
					c.status.UpdateTask(t)
				}
			}
		}
		exceeded := cfg.TokenBudget > 0 && state.Metrics.TokensUsed >= cfg.TokenBudget
		c.mu.Unlock()
		if exceeded {
			budgetExceeded.Store(true)
		}
	})

	if err := d.Dispatch(plan.Tasks); err != nil {
		state.Errors = append(state.Errors, err.Error())
		return false
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(25 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if c.stopFlag.Load() || budgetExceeded.Load() {
					d.Stop()
					return
				}
			}
		}
	}()
	_ = d.Run(runCtx)
	cancelRun()

	for _, dt := range d.Snapshot() {
		state.TaskResults[dt.Task.ID] = dt.Result
	}

	if budgetExceeded.Load() {
		state.BudgetExceeded = true
		state.Errors = append(state.Errors, "token budget exceeded, swarm stopped early")
	}
	return budgetExceeded.Load()
}

// runCritic spawns up to MaxCriticIterations critic reviews, feeding each
// iteration's unresolved issues into the next, and records the final
// unresolved issue set on state.
func (c *Coordinator) runCritic(ctx context.Context, cfg Config, plan *swarmtypes.Plan, state *swarmtypes.SwarmState) *critic.Verdict {
	agg := c.aggregate(plan, state)
	var prior []critic.Issue
	var verdict critic.Verdict

	for i := 0; i < cfg.MaxCriticIterations; i++ {
		if c.stopFlag.Load() {
			break
		}
		taskIDs := make([]string, len(plan.Tasks))
		for j, t := range plan.Tasks {
			taskIDs[j] = t.ID
		}
		verdict = c.crit.Review(ctx, critic.ReviewInput{
			Goal:        plan.Goal,
			TaskIDs:     taskIDs,
			FailedCount: state.Metrics.Failed,
			Aggregated:  agg,
			PriorIssues: prior,
		})
		if verdict.Approved || len(verdict.Issues) == 0 {
			break
		}
		prior = verdict.Issues
	}

	if len(verdict.Issues) > 0 {
		for _, is := range verdict.Issues {
			state.Errors = append(state.Errors, is.Description)
		}
	}
	return &verdict
}

// aggregate runs the aggregator over completed+failed+blocked tasks.
func (c *Coordinator) aggregate(plan *swarmtypes.Plan, state *swarmtypes.SwarmState) aggregator.AggregatedResult {
	state.Status = swarmtypes.SwarmAggregating
	contribs := make([]aggregator.Contribution, 0, len(plan.Tasks))
	for i, t := range plan.Tasks {
		result := state.TaskResults[t.ID]
		if result == nil {
			continue
		}
		contribs = append(contribs, aggregator.Contribution{Task: t, Result: result, Order: i})
	}
	return c.aggr.Aggregate(aggregator.StrategyMerge, contribs, len(plan.Tasks))
}

// terminate clears the deadline (via the caller's defer cancel()), stamps
// EndedAt, and sets the final status per the documented precedence:
// cancelled > failed > completed.
func (c *Coordinator) terminate(state *swarmtypes.SwarmState, errMsg string, cancelled bool) *swarmtypes.SwarmState {
	now := time.Now()
	state.EndedAt = &now
	if errMsg != "" {
		state.Errors = append(state.Errors, errMsg)
	}

	switch {
	case cancelled || c.stopFlag.Load():
		state.Status = swarmtypes.SwarmCancelled
	case state.Metrics.Failed > 0 || len(state.Errors) > 0 || state.BudgetExceeded:
		state.Status = swarmtypes.SwarmFailed
	default:
		state.Status = swarmtypes.SwarmCompleted
	}
	c.logger.Info("swarm run finished", "swarmId", state.ID, "status", state.Status, "completed", state.Metrics.Completed, "failed", state.Metrics.Failed)
	return state
}
