package graphbuilder

import (
	"time"

	"github.com/google/uuid"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

func newTask(description string, deps []string, now time.Time) *swarmtypes.Task {
	return &swarmtypes.Task{
		ID:          uuid.New().String(),
		Description: description,
		Role:        swarmtypes.RoleWorker,
		Priority:    3,
		DependsOn:   deps,
		Status:      swarmtypes.StatusPending,
		CreatedAt:   now,
	}
}

// BuildPipeline chains descriptions into a strict sequence: each task
// depends on exactly the one before it.
func BuildPipeline(descriptions []string) []*swarmtypes.Task {
	now := time.Now()
	tasks := make([]*swarmtypes.Task, len(descriptions))
	var prev string
	for i, d := range descriptions {
		var deps []string
		if prev != "" {
			deps = []string{prev}
		}
		t := newTask(d, deps, now)
		tasks[i] = t
		prev = t.ID
	}
	return tasks
}

// BuildFanOut runs root, then fans into parallel branches all depending on
// root, then optionally a merge task depending on every branch.
func BuildFanOut(root string, parallel []string, merge string) []*swarmtypes.Task {
	now := time.Now()
	rootTask := newTask(root, nil, now)
	tasks := []*swarmtypes.Task{rootTask}

	branchIDs := make([]string, 0, len(parallel))
	for _, d := range parallel {
		t := newTask(d, []string{rootTask.ID}, now)
		tasks = append(tasks, t)
		branchIDs = append(branchIDs, t.ID)
	}

	if merge != "" {
		tasks = append(tasks, newTask(merge, branchIDs, now))
	}
	return tasks
}

// BuildFanIn runs parallel branches independently, then a merge task
// depending on all of them.
func BuildFanIn(parallel []string, merge string) []*swarmtypes.Task {
	now := time.Now()
	tasks := make([]*swarmtypes.Task, 0, len(parallel)+1)
	branchIDs := make([]string, 0, len(parallel))
	for _, d := range parallel {
		t := newTask(d, nil, now)
		tasks = append(tasks, t)
		branchIDs = append(branchIDs, t.ID)
	}
	tasks = append(tasks, newTask(merge, branchIDs, now))
	return tasks
}
