package swarmtypes

import "time"

// Plan is a goal decomposed into an ordered task list. A Plan is immutable
// after approval except that Coordinator bumps Version on replanning.
type Plan struct {
	ID          string     `json:"id"`
	Goal        string     `json:"goal"`
	Tasks       []*Task    `json:"tasks"`
	Approved    bool       `json:"approved"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	Version     int        `json:"version"`
}

// SwarmStatus is the lifecycle state of a SwarmState.
type SwarmStatus string

const (
	SwarmIdle        SwarmStatus = "idle"
	SwarmPlanning    SwarmStatus = "planning"
	SwarmExecuting   SwarmStatus = "executing"
	SwarmReviewing   SwarmStatus = "reviewing"
	SwarmAggregating SwarmStatus = "aggregating"
	SwarmCompleted   SwarmStatus = "completed"
	SwarmFailed      SwarmStatus = "failed"
	SwarmCancelled   SwarmStatus = "cancelled"
)

// SwarmMetrics accumulates swarm-wide counters, updated only by the
// Coordinator at documented points (see SPEC_FULL.md §5).
type SwarmMetrics struct {
	TotalTasks int `json:"totalTasks"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Running    int `json:"running"`
	TokensUsed int `json:"tokensUsed"`
	LLMCalls   int `json:"llmCalls"`
	ToolCalls  int `json:"toolCalls"`
	Replans    int `json:"replans"`
}

// SwarmState is the single mutable record a Coordinator owns for one swarm
// run. Only the Coordinator mutates it directly; other components receive
// read-only snapshots (see SwarmState.Snapshot).
type SwarmState struct {
	ID            string                `json:"id"`
	Status        SwarmStatus           `json:"status"`
	Plan          *Plan                 `json:"plan,omitempty"`
	TaskResults   map[string]*SubResult `json:"taskResults"`
	ActiveAgents  map[string]struct{}   `json:"-"`
	Errors        []string              `json:"errors,omitempty"`
	StartedAt     time.Time             `json:"startedAt"`
	EndedAt       *time.Time            `json:"endedAt,omitempty"`
	FinalResult   string                `json:"finalResult,omitempty"`
	Metrics       SwarmMetrics          `json:"metrics"`
	BudgetExceeded bool                 `json:"budgetExceeded,omitempty"`

	// Shared is the pub/sub channel tasks use to publish intermediate
	// findings for later tasks in the same run, set only when the run's
	// Config.EnableSharedMemory is true. Never serialized.
	Shared SharedContext `json:"-"`
}

// NewSwarmState creates an idle SwarmState ready for planning.
func NewSwarmState(id string, startedAt time.Time) *SwarmState {
	return &SwarmState{
		ID:           id,
		Status:       SwarmIdle,
		TaskResults:  make(map[string]*SubResult),
		ActiveAgents: make(map[string]struct{}),
		StartedAt:    startedAt,
	}
}

// Snapshot returns a shallow copy safe for a reader to hold without racing
// continued mutation of the live state (maps/slices are copied one level
// deep, matching the read-only contract documented for the Status Provider).
func (s *SwarmState) Snapshot() *SwarmState {
	clone := *s
	clone.TaskResults = make(map[string]*SubResult, len(s.TaskResults))
	for k, v := range s.TaskResults {
		r := *v
		clone.TaskResults[k] = &r
	}
	clone.ActiveAgents = make(map[string]struct{}, len(s.ActiveAgents))
	for k := range s.ActiveAgents {
		clone.ActiveAgents[k] = struct{}{}
	}
	clone.Errors = append([]string(nil), s.Errors...)
	return &clone
}
