package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/swarmcore/swarmcore/internal/subagentmgr"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

type scriptedSpawner struct {
	mu       sync.Mutex
	attempts map[string]int
	script   func(task string, attempt int) *swarmtypes.SubResult
}

func (s *scriptedSpawner) Spawn(ctx context.Context, cfg subagentmgr.SpawnConfig) *swarmtypes.SubResult {
	s.mu.Lock()
	s.attempts[cfg.Task]++
	attempt := s.attempts[cfg.Task]
	s.mu.Unlock()
	return s.script(cfg.Task, attempt)
}

func task(id string, deps ...string) *swarmtypes.Task {
	return &swarmtypes.Task{ID: id, Description: id, DependsOn: deps, Priority: 3, Status: swarmtypes.StatusPending, CreatedAt: time.Now()}
}

func TestDispatcherHappyPathIndependentTasks(t *testing.T) {
	spawner := &scriptedSpawner{attempts: map[string]int{}, script: func(task string, attempt int) *swarmtypes.SubResult {
		return &swarmtypes.SubResult{Success: true, Result: task + "-ok"}
	}}
	d := New(Config{MaxConcurrent: 3}, spawner, nil)
	if err := d.Dispatch([]*swarmtypes.Task{task("a"), task("b"), task("c")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, dt := range d.Snapshot() {
		if dt.Status != StatusCompleted {
			t.Fatalf("task %s status=%v, want completed", dt.Task.ID, dt.Status)
		}
	}
}

func TestDispatcherDepChainFailurePropagates(t *testing.T) {
	spawner := &scriptedSpawner{attempts: map[string]int{}, script: func(task string, attempt int) *swarmtypes.SubResult {
		if task == "a" {
			return &swarmtypes.SubResult{Success: false, Error: "boom"}
		}
		return &swarmtypes.SubResult{Success: true, Result: "ok"}
	}}
	d := New(Config{MaxConcurrent: 2, MaxRetries: 0}, spawner, nil)
	if err := d.Dispatch([]*swarmtypes.Task{task("a"), task("b", "a"), task("c", "b")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := make(map[string]Status)
	for _, dt := range d.Snapshot() {
		snap[dt.Task.ID] = dt.Status
	}
	if snap["a"] != StatusFailed {
		t.Fatalf("a status=%v, want failed", snap["a"])
	}
	if snap["b"] != StatusFailed || snap["c"] != StatusFailed {
		t.Fatalf("b=%v c=%v, want both failed (dependency failed, never retried)", snap["b"], snap["c"])
	}
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	var calls int64
	spawner := &scriptedSpawner{attempts: map[string]int{}, script: func(task string, attempt int) *swarmtypes.SubResult {
		n := atomic.AddInt64(&calls, 1)
		if n < 3 {
			return &swarmtypes.SubResult{Success: false, Error: "transient"}
		}
		return &swarmtypes.SubResult{Success: true, Result: "ok"}
	}}
	d := New(Config{MaxConcurrent: 1, MaxRetries: 3, RetryDelayMs: 1, MaxBackoffMs: 5}, spawner, nil)
	if err := d.Dispatch([]*swarmtypes.Task{task("a")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := d.Snapshot()
	if snap[0].Status != StatusCompleted {
		t.Fatalf("status=%v, want completed after retries", snap[0].Status)
	}
	if snap[0].Attempts != 3 {
		t.Fatalf("Attempts=%d, want 3", snap[0].Attempts)
	}
	if len(snap[0].RetryHistory) != 2 {
		t.Fatalf("RetryHistory length=%d, want 2 (two failed attempts before the third succeeded)", len(snap[0].RetryHistory))
	}
}

func TestDispatcherTimeoutNotRetried(t *testing.T) {
	spawner := &scriptedSpawner{attempts: map[string]int{}, script: func(task string, attempt int) *swarmtypes.SubResult {
		return &swarmtypes.SubResult{Success: false, Error: "timed out after 1s"}
	}}
	d := New(Config{MaxConcurrent: 1, MaxRetries: 5}, spawner, nil)
	if err := d.Dispatch([]*swarmtypes.Task{task("a")}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := d.Snapshot()
	if snap[0].Status != StatusTimeout {
		t.Fatalf("status=%v, want timeout", snap[0].Status)
	}
	if snap[0].Attempts != 1 {
		t.Fatalf("Attempts=%d, want 1 (timeout is never retried)", snap[0].Attempts)
	}
}

func TestDispatchRejectsOversizedBatch(t *testing.T) {
	spawner := &scriptedSpawner{attempts: map[string]int{}, script: func(task string, attempt int) *swarmtypes.SubResult {
		return &swarmtypes.SubResult{Success: true}
	}}
	d := New(Config{MaxQueueSize: 2}, spawner, nil)
	if err := d.Dispatch([]*swarmtypes.Task{task("a"), task("b"), task("c")}); err != ErrQueueFull {
		t.Fatalf("err=%v, want ErrQueueFull", err)
	}
}
