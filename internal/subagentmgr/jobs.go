package subagentmgr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// JobStatus is the lifecycle state of an async spawn.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type jobRecord struct {
	mu        sync.RWMutex
	id        string
	status    JobStatus
	result    *swarmtypes.SubResult
	createdAt time.Time
}

func (j *jobRecord) snapshot() (JobStatus, *swarmtypes.SubResult) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status, j.result
}

func (j *jobRecord) finish(result *swarmtypes.SubResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = result
	if result.Success {
		j.status = JobCompleted
	} else {
		j.status = JobFailed
	}
}

// ErrAdmissionRefused names a depth or concurrency admission refusal.
// SpawnAsync does not return it; it reports a refusal through its
// *swarmtypes.SubResult return value, before any job record is created.
var ErrAdmissionRefused = fmt.Errorf("subagentmgr: admission refused")

// SpawnAsync checks depth and concurrency admission synchronously, then runs
// Spawn in the background and returns a job id immediately. The
// SubagentStart hook fires inside that background Spawn, not before
// SpawnAsync returns, so a hook veto shows up as the job's failed result. If
// admission fails, it returns the refusal result directly with no job created.
func (m *Manager) SpawnAsync(ctx context.Context, cfg SpawnConfig) (string, *swarmtypes.SubResult) {
	if cfg.Depth >= m.cfg.MaxDepth {
		return "", &swarmtypes.SubResult{Success: false, Error: "max depth"}
	}
	if atomic.LoadInt64(&m.activeCount) >= int64(m.cfg.MaxConcurrent) {
		return "", &swarmtypes.SubResult{Success: false, Error: fmt.Sprintf("max active sub-agents reached (%d)", m.cfg.MaxConcurrent)}
	}

	jobID := uuid.New().String()
	job := &jobRecord{id: jobID, status: JobRunning, createdAt: time.Now()}
	m.mu.Lock()
	m.jobs[jobID] = job
	m.mu.Unlock()

	go func() {
		result := m.Spawn(context.Background(), cfg)
		job.finish(result)
	}()

	return jobID, nil
}

// GetJobStatus returns the current status and, once terminal, the result
// for a job id previously returned by SpawnAsync.
func (m *Manager) GetJobStatus(jobID string) (JobStatus, *swarmtypes.SubResult, bool) {
	m.mu.RLock()
	job, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return "", nil, false
	}
	status, result := job.snapshot()
	return status, result, true
}

// WaitForJob polls GetJobStatus at a fixed interval until the job reaches a
// terminal status or timeout elapses. Returns (result, true) if terminal,
// (nil, false) on timeout or unknown job id.
func (m *Manager) WaitForJob(ctx context.Context, jobID string, timeout time.Duration) (*swarmtypes.SubResult, bool) {
	const pollInterval = 50 * time.Millisecond
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, result, ok := m.GetJobStatus(jobID)
		if !ok {
			return nil, false
		}
		if status != JobRunning {
			return result, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
	}
}
