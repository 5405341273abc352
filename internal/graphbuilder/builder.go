// Package graphbuilder turns raw planner output (or hand-authored task
// lists) into a []*swarmtypes.Task ready for taskgraph.Graph.AddTask,
// resolving dependsOn references the way the dispatcher's dependency
// propagation expects: every surviving reference must name a task id that
// actually exists in the built batch.
package graphbuilder

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// ErrTooManyTasks is returned when planner output exceeds Config.MaxTasks.
var ErrTooManyTasks = errors.New("graphbuilder: task count exceeds maxTasks")

// PlannerTask is the untrusted shape of one task as emitted by a planner
// runner (or authored by a caller) before ids/dependsOn are resolved.
type PlannerTask struct {
	ID            string   `json:"id,omitempty"`
	Description   string   `json:"description"`
	Role          string   `json:"role,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	DependsOn     []any    `json:"dependsOn,omitempty"` // int index or string id, per planner freeform output
	RequiredTools []string `json:"requiredTools,omitempty"`
	Checkpoint    bool     `json:"checkpoint,omitempty"`
}

// PlannerOutput is the top-level shape parsed from planner runner text.
type PlannerOutput struct {
	Tasks []PlannerTask `json:"tasks"`
}

// Config tunes graph construction.
type Config struct {
	MaxTasks        int
	InsertCritics   bool // insert a critic task after every checkpoint task
	InsertAggregate bool // insert one aggregation task depending on every leaf
}

func (c Config) withDefaults() Config {
	if c.MaxTasks <= 0 {
		c.MaxTasks = 50
	}
	return c
}

// Builder constructs task batches from planner output or templates.
type Builder struct {
	cfg Config
}

// NewBuilder constructs a Builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg.withDefaults()}
}

// BuildFromPlannerOutput validates, ids, resolves deps, and optionally
// augments output with critic/aggregation tasks, per SPEC_FULL.md §4.5.
func (b *Builder) BuildFromPlannerOutput(output PlannerOutput) ([]*swarmtypes.Task, error) {
	if len(output.Tasks) > b.cfg.MaxTasks {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyTasks, len(output.Tasks), b.cfg.MaxTasks)
	}

	now := time.Now()
	ids := make([]string, len(output.Tasks))
	for i, pt := range output.Tasks {
		if pt.ID != "" {
			ids[i] = pt.ID
		} else {
			ids[i] = uuid.New().String()
		}
	}
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	tasks := make([]*swarmtypes.Task, len(output.Tasks))
	for i, pt := range output.Tasks {
		deps := make([]string, 0, len(pt.DependsOn))
		for _, raw := range pt.DependsOn {
			if resolved, ok := resolveDependency(raw, ids, idSet); ok {
				deps = append(deps, resolved)
			}
		}
		role := swarmtypes.TaskRole(pt.Role)
		if role == "" {
			role = swarmtypes.RoleWorker
		}
		priority := pt.Priority
		if priority == 0 {
			priority = 3
		}
		tasks[i] = &swarmtypes.Task{
			ID:            ids[i],
			Description:   pt.Description,
			Role:          role,
			Priority:      priority,
			DependsOn:     deps,
			RequiredTools: pt.RequiredTools,
			Status:        swarmtypes.StatusPending,
			CreatedAt:     now,
		}
	}

	if b.cfg.InsertCritics {
		for i, pt := range output.Tasks {
			if !pt.Checkpoint {
				continue
			}
			critic := &swarmtypes.Task{
				ID:          uuid.New().String(),
				Description: "Review checkpoint: " + tasks[i].Description,
				Role:        swarmtypes.RoleCritic,
				Priority:    tasks[i].Priority,
				DependsOn:   []string{tasks[i].ID},
				Status:      swarmtypes.StatusPending,
				CreatedAt:   now,
			}
			tasks = append(tasks, critic)
		}
	}

	if b.cfg.InsertAggregate {
		tasks = append(tasks, b.aggregationTask(tasks, now))
	}

	return tasks, nil
}

// resolveDependency resolves one dependsOn entry: an integer (float64 from
// decoded JSON, or a numeric string) names a position in ids; otherwise the
// raw value must equal a generated id verbatim. Anything else is dropped.
func resolveDependency(raw any, ids []string, idSet map[string]bool) (string, bool) {
	switch v := raw.(type) {
	case float64:
		i := int(v)
		if i >= 0 && i < len(ids) {
			return ids[i], true
		}
		return "", false
	case int:
		if v >= 0 && v < len(ids) {
			return ids[v], true
		}
		return "", false
	case string:
		if idSet[v] {
			return v, true
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(ids) {
			return ids[n], true
		}
		return "", false
	default:
		return "", false
	}
}

// leaves returns the ids of tasks nothing else in the batch depends on.
func leaves(tasks []*swarmtypes.Task) []string {
	hasDependent := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			hasDependent[dep] = true
		}
	}
	var out []string
	for _, t := range tasks {
		if !hasDependent[t.ID] {
			out = append(out, t.ID)
		}
	}
	return out
}

func (b *Builder) aggregationTask(tasks []*swarmtypes.Task, now time.Time) *swarmtypes.Task {
	return &swarmtypes.Task{
		ID:          uuid.New().String(),
		Description: "Aggregate results",
		Role:        swarmtypes.RoleAggregator,
		Priority:    5,
		DependsOn:   leaves(tasks),
		Status:      swarmtypes.StatusPending,
		CreatedAt:   now,
	}
}

// BuildFromTaskList builds one worker task per description, each with a
// generated id, priority 3 and pending status. The tasks have no
// dependencies.
func (b *Builder) BuildFromTaskList(descriptions []string) []*swarmtypes.Task {
	now := time.Now()
	tasks := make([]*swarmtypes.Task, len(descriptions))
	for i, d := range descriptions {
		tasks[i] = &swarmtypes.Task{
			ID:          uuid.New().String(),
			Description: d,
			Role:        swarmtypes.RoleWorker,
			Priority:    3,
			Status:      swarmtypes.StatusPending,
			CreatedAt:   now,
		}
	}
	return tasks
}
