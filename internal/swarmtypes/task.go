// Package swarmtypes holds the data model shared across every swarm
// orchestration component: tasks, plans, results, and swarm-wide state.
package swarmtypes

import "time"

// TaskRole is the behavioral profile of a subagent assigned to a task.
type TaskRole string

const (
	RolePlanner    TaskRole = "planner"
	RoleWorker     TaskRole = "worker"
	RoleCritic     TaskRole = "critic"
	RoleAggregator TaskRole = "aggregator"
)

// TaskStatus is the lifecycle state of a Task within its graph.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusAssigned  TaskStatus = "assigned"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusBlocked   TaskStatus = "blocked"
	StatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether a task in this status will never transition again
// within the swarm run.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBlocked, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is the atomic unit of work in a swarm's dependency graph.
type Task struct {
	ID              string         `json:"id"`
	Description     string         `json:"description"`
	Role            TaskRole       `json:"role"`
	Priority        int            `json:"priority"` // 1 = highest, 5 = lowest
	DependsOn       []string       `json:"dependsOn,omitempty"`
	RequiredTools   []string       `json:"requiredTools,omitempty"`
	Status          TaskStatus     `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	Result          *SubResult     `json:"result,omitempty"`
	AssignedAgentID string         `json:"assignedAgentId,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy of t: slices and the metadata map are
// copied so a caller mutating the clone never mutates the graph's copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	if t.DependsOn != nil {
		clone.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.RequiredTools != nil {
		clone.RequiredTools = append([]string(nil), t.RequiredTools...)
	}
	if t.Metadata != nil {
		clone.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	if t.Result != nil {
		r := *t.Result
		clone.Result = &r
	}
	return &clone
}

// MarkStarted stamps StartedAt and sets status to running, if not already set.
func (t *Task) MarkStarted(at time.Time) {
	if t.StartedAt == nil {
		ts := at
		t.StartedAt = &ts
	}
	t.Status = StatusRunning
}

// MarkTerminal stamps CompletedAt (for completed/failed only, per the
// documented invariant that CompletedAt is set iff status is completed or
// failed — blocked and cancelled never set it) and sets the final status.
func (t *Task) MarkTerminal(status TaskStatus, at time.Time, result *SubResult) {
	t.Status = status
	t.Result = result
	if status == StatusCompleted || status == StatusFailed {
		ts := at
		t.CompletedAt = &ts
	}
}

// SubResult is the outcome of running a single agent against one task.
type SubResult struct {
	Success    bool   `json:"success"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	Turns      int    `json:"turns,omitempty"`
	ToolCalls  int    `json:"toolCalls,omitempty"`
	TokensUsed int    `json:"tokensUsed,omitempty"`
	SubID      string `json:"subId"`
}
