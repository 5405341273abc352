// Package dispatcher drives a set of tasks to terminal state concurrently:
// it tracks per-task dispatch status independently of the task graph's own
// coarser status, retries failed attempts with backoff, propagates
// dependency failures, and detects dependency deadlocks.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/swarmcore/swarmcore/internal/backoff"
	"github.com/swarmcore/swarmcore/internal/subagentmgr"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// ErrQueueFull is returned by Dispatch when the batch would exceed MaxQueueSize.
var ErrQueueFull = errors.New("dispatcher: queue size exceeded")

// Status is the dispatcher's fine-grained lifecycle state for one task, a
// finer partition than swarmtypes.TaskStatus: it distinguishes a task still
// waiting on deps from one sitting in queue, and a retry-in-progress
// attempt from its first run.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusWaitingDeps Status = "waiting_deps"
	StatusDispatching Status = "dispatching"
	StatusRunning     Status = "running"
	StatusRetrying    Status = "retrying"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusTimeout     Status = "timeout"
	StatusCancelled   Status = "cancelled"
)

func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) terminalNonCompleted() bool {
	return s.terminal() && s != StatusCompleted
}

// RetryAttempt records one failed attempt of a DispatchTask that was followed
// by a retry. The final attempt, whether it succeeds or fails, is not
// recorded here; its outcome is in Status, LastError and Result.
type RetryAttempt struct {
	Attempt   int
	Err       string
	SettledAt time.Time
}

// DispatchTask is one task under dispatcher management.
type DispatchTask struct {
	Task         *swarmtypes.Task
	Status       Status
	Attempts     int
	QueuedAt     time.Time
	StartedAt    time.Time
	LastError    string
	Result       *swarmtypes.SubResult
	RetryHistory []RetryAttempt
}

// Event is emitted at the lifecycle points named in SPEC_FULL.md §4.3:
// task:started, task:retry, task:timeout, task:failed, task:completed.
type Event struct {
	Type    string
	TaskID  string
	Attempt int
	Err     string
	Result  *swarmtypes.SubResult
}

// Config tunes dispatcher concurrency, retry, and deadlock-detection behavior.
type Config struct {
	MaxConcurrent        int
	MaxRetries           int
	RetryDelayMs         int64
	BackoffMultiplier    float64
	MaxBackoffMs         int64
	MaxQueueSize         int
	DepTimeoutMs         int64
	DefaultTaskTimeoutMs int64
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.RetryDelayMs <= 0 {
		c.RetryDelayMs = 500
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2
	}
	if c.MaxBackoffMs <= 0 {
		c.MaxBackoffMs = 30000
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
	if c.DepTimeoutMs <= 0 {
		c.DepTimeoutMs = 5 * 60 * 1000
	}
	if c.DefaultTaskTimeoutMs <= 0 {
		c.DefaultTaskTimeoutMs = 10 * 60 * 1000
	}
	return c
}

// Spawner is the subset of subagentmgr.Manager the dispatcher depends on.
type Spawner interface {
	Spawn(ctx context.Context, cfg subagentmgr.SpawnConfig) *swarmtypes.SubResult
}

// Dispatcher drives a fixed task set to completion. One Dispatcher is used
// per swarm run; it is not reusable across runs.
type Dispatcher struct {
	cfg     Config
	spawner Spawner
	onEvent func(Event)

	mu      sync.Mutex
	tasks   map[string]*DispatchTask
	order   []string
	running map[string]struct{}
	paused  bool
	stopped bool
}

// New constructs a Dispatcher. onEvent may be nil.
func New(cfg Config, spawner Spawner, onEvent func(Event)) *Dispatcher {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Dispatcher{
		cfg:     cfg.withDefaults(),
		spawner: spawner,
		onEvent: onEvent,
		tasks:   make(map[string]*DispatchTask),
		running: make(map[string]struct{}),
	}
}

// Dispatch enqueues a batch of tasks. Rejects the whole batch with
// ErrQueueFull if it would push the dispatcher over MaxQueueSize.
func (d *Dispatcher) Dispatch(tasks []*swarmtypes.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.tasks)+len(tasks) > d.cfg.MaxQueueSize {
		return ErrQueueFull
	}

	now := time.Now()
	for _, t := range tasks {
		status := StatusQueued
		if len(t.DependsOn) > 0 {
			status = StatusWaitingDeps
		}
		d.tasks[t.ID] = &DispatchTask{Task: t, Status: status, QueuedAt: now}
		d.order = append(d.order, t.ID)
	}
	return nil
}

// Pause prevents new dispatches; already-running tasks complete normally.
func (d *Dispatcher) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

// Resume un-pauses the dispatcher.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
}

// Stop transitions every queued/waiting task to cancelled. Running futures
// are left to complete on their own; Run will exit once they settle.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, dt := range d.tasks {
		if dt.Status == StatusQueued || dt.Status == StatusWaitingDeps {
			dt.Status = StatusCancelled
		}
	}
}

// Snapshot returns a copy of every DispatchTask's current status, for the
// Status Provider to read without racing the dispatcher's own mutations.
func (d *Dispatcher) Snapshot() []DispatchTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DispatchTask, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.tasks[id])
	}
	return out
}

// Run drives every dispatched task to a terminal state and returns once the
// queue is empty (nothing pending, nothing running) or the context is
// cancelled. It implements the main loop from SPEC_FULL.md §4.3. When nothing
// is running or ready and no waiting task has passed its dependency timeout,
// it returns a deadlock error instead.
func (d *Dispatcher) Run(ctx context.Context) error {
	settled := make(chan string, d.cfg.MaxConcurrent*2)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		d.mu.Lock()
		if d.paused {
			d.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}

		d.propagateDepFailuresLocked()

		ready := d.readyLocked()
		pending := d.pendingCountLocked()
		runningCount := len(d.running)

		if pending == 0 && runningCount == 0 {
			d.mu.Unlock()
			return nil
		}

		available := d.cfg.MaxConcurrent - runningCount
		started := 0
		for i := 0; i < len(ready) && started < available; i++ {
			dt := ready[i]
			dt.Status = StatusDispatching
			d.running[dt.Task.ID] = struct{}{}
			started++
			go d.executeTask(ctx, dt, settled)
		}
		runningCount = len(d.running)
		d.mu.Unlock()

		if runningCount > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-settled:
			}
			continue
		}

		if len(ready) == 0 && pending > 0 {
			changed := d.markDependencyTimeoutsLocked()
			if !changed {
				return fmt.Errorf("dispatcher: deadlock, %d pending tasks with no ready successors", pending)
			}
		}
	}
}

// readyLocked returns dispatch-ready tasks sorted by ascending priority.
// Caller must hold d.mu.
func (d *Dispatcher) readyLocked() []*DispatchTask {
	var ready []*DispatchTask
	for _, id := range d.order {
		dt := d.tasks[id]
		if dt.Status != StatusQueued && dt.Status != StatusWaitingDeps {
			continue
		}
		if d.depsSatisfiedLocked(dt.Task) {
			ready = append(ready, dt)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Task.Priority < ready[j].Task.Priority
	})
	return ready
}

func (d *Dispatcher) depsSatisfiedLocked(t *swarmtypes.Task) bool {
	for _, dep := range t.DependsOn {
		depTask, ok := d.tasks[dep]
		if !ok || depTask.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func (d *Dispatcher) pendingCountLocked() int {
	n := 0
	for _, dt := range d.tasks {
		if !dt.Status.terminal() {
			n++
		}
	}
	return n
}

// propagateDepFailuresLocked fails any non-terminal task whose any dep
// landed in a terminal-non-completed state. Such failures are never retried.
// It repeats until nothing changes, so one call reaches every transitive
// dependent.
func (d *Dispatcher) propagateDepFailuresLocked() {
	changed := false
	for _, dt := range d.tasks {
		if dt.Status.terminal() {
			continue
		}
		for _, dep := range dt.Task.DependsOn {
			depTask, ok := d.tasks[dep]
			if ok && depTask.Status.terminalNonCompleted() {
				dt.Status = StatusFailed
				dt.LastError = "dependency failed"
				d.onEvent(Event{Type: "task:failed", TaskID: dt.Task.ID, Err: dt.LastError})
				changed = true
				break
			}
		}
	}
	if changed {
		d.propagateDepFailuresLocked()
	}
}

// markDependencyTimeoutsLocked marks any waiting_deps task queued longer
// than DepTimeoutMs as timed out. Returns whether anything changed.
func (d *Dispatcher) markDependencyTimeoutsLocked() bool {
	changed := false
	cutoff := time.Now().Add(-time.Duration(d.cfg.DepTimeoutMs) * time.Millisecond)
	for _, dt := range d.tasks {
		if dt.Status == StatusWaitingDeps && dt.QueuedAt.Before(cutoff) {
			dt.Status = StatusTimeout
			dt.LastError = "dependency timeout"
			d.onEvent(Event{Type: "task:timeout", TaskID: dt.Task.ID, Err: dt.LastError})
			changed = true
		}
	}
	return changed
}

// executeTask runs up to MaxRetries+1 attempts of one task, signaling on
// settled when it reaches a terminal state.
func (d *Dispatcher) executeTask(ctx context.Context, dt *DispatchTask, settled chan<- string) {
	defer func() {
		d.mu.Lock()
		delete(d.running, dt.Task.ID)
		d.mu.Unlock()
		select {
		case settled <- dt.Task.ID:
		default:
		}
	}()

	policy := backoff.BackoffPolicy{
		InitialMs: float64(d.cfg.RetryDelayMs),
		MaxMs:     float64(d.cfg.MaxBackoffMs),
		Factor:    d.cfg.BackoffMultiplier,
		Jitter:    0.1,
	}

	maxAttempts := d.cfg.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		d.mu.Lock()
		dt.Status = StatusRunning
		dt.Attempts = attempt
		if dt.StartedAt.IsZero() {
			dt.StartedAt = time.Now()
		}
		d.mu.Unlock()
		d.onEvent(Event{Type: "task:started", TaskID: dt.Task.ID, Attempt: attempt})

		result := d.spawner.Spawn(ctx, subagentmgr.SpawnConfig{
			Task:      dt.Task.Description,
			Tools:     dt.Task.RequiredTools,
			Depth:     0,
			TimeoutMs: d.cfg.DefaultTaskTimeoutMs,
		})

		if result.Success {
			d.mu.Lock()
			dt.Status = StatusCompleted
			dt.Result = result
			d.mu.Unlock()
			d.onEvent(Event{Type: "task:completed", TaskID: dt.Task.ID, Result: result})
			return
		}

		if strings.HasPrefix(result.Error, "timed out") {
			d.mu.Lock()
			dt.Status = StatusTimeout
			dt.LastError = result.Error
			d.mu.Unlock()
			d.onEvent(Event{Type: "task:timeout", TaskID: dt.Task.ID, Err: result.Error, Result: result})
			return
		}

		dt.LastError = result.Error
		if attempt < maxAttempts {
			d.mu.Lock()
			dt.Status = StatusRetrying
			dt.RetryHistory = append(dt.RetryHistory, RetryAttempt{Attempt: attempt, Err: result.Error, SettledAt: time.Now()})
			d.mu.Unlock()
			d.onEvent(Event{Type: "task:retry", TaskID: dt.Task.ID, Attempt: attempt, Err: result.Error})
			if err := backoff.SleepWithContext(ctx, backoff.ComputeBackoff(policy, attempt)); err != nil {
				d.mu.Lock()
				dt.Status = StatusCancelled
				d.mu.Unlock()
				return
			}
			continue
		}

		d.mu.Lock()
		dt.Status = StatusFailed
		d.mu.Unlock()
		d.onEvent(Event{Type: "task:failed", TaskID: dt.Task.ID, Err: result.Error, Result: result})
		return
	}
}
