// Package taskgraph maintains the in-memory dependency DAG a swarm executes:
// task storage, ready-set computation, blocked-task propagation, cycle
// detection, and topological/level ordering.
package taskgraph

import (
	"errors"
	"sort"
	"sync"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// ErrDuplicateTask is returned by AddTask when the id is already present.
var ErrDuplicateTask = errors.New("taskgraph: duplicate task id")

// Graph holds a task map plus forward (dependents) and reverse (deps)
// adjacency. It is safe for concurrent use; the dispatcher is the expected
// single external mutator of task status, but reads may come from the
// status provider concurrently.
type Graph struct {
	mu         sync.RWMutex
	tasks      map[string]*swarmtypes.Task
	order      []string            // insertion order, for deterministic tie-breaks
	dependents map[string][]string // id -> ids that depend on it
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		tasks:      make(map[string]*swarmtypes.Task),
		dependents: make(map[string][]string),
	}
}

// AddTask inserts def into the graph. Unset Role defaults to worker and
// unset Priority defaults to 3, per the documented defaults. Dep ids that
// are not (yet) present in the graph are recorded as-is; callers building a
// graph from untrusted input should pre-filter with graphbuilder, which
// silently drops unknown references before they ever reach AddTask.
func (g *Graph) AddTask(def *swarmtypes.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tasks[def.ID]; exists {
		return ErrDuplicateTask
	}
	if def.Role == "" {
		def.Role = swarmtypes.RoleWorker
	}
	if def.Priority == 0 {
		def.Priority = 3
	}
	if def.Status == "" {
		def.Status = swarmtypes.StatusPending
	}

	g.tasks[def.ID] = def
	g.order = append(g.order, def.ID)
	for _, dep := range def.DependsOn {
		g.dependents[dep] = append(g.dependents[dep], def.ID)
	}
	return nil
}

// Get returns a clone of the task with the given id, or nil if absent.
func (g *Graph) Get(id string) *swarmtypes.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tasks[id]
	if !ok {
		return nil
	}
	return t.Clone()
}

// Update replaces the stored task's mutable fields with t's. The caller must
// have obtained t via Get (or otherwise hold a valid id); Update is a no-op
// if the id is unknown.
func (g *Graph) Update(t *swarmtypes.Task) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tasks[t.ID]; !ok {
		return
	}
	g.tasks[t.ID] = t
}

// All returns clones of every task in insertion order.
func (g *Graph) All() []*swarmtypes.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*swarmtypes.Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id].Clone())
	}
	return out
}

// depsCompleted reports whether every dep of id is status=completed.
// Caller must hold g.mu (read or write).
func (g *Graph) depsCompleted(t *swarmtypes.Task) bool {
	for _, dep := range t.DependsOn {
		d, ok := g.tasks[dep]
		if !ok || d.Status != swarmtypes.StatusCompleted {
			return false
		}
	}
	return true
}

// depsTerminalNonCompleted reports whether any dep of t is in a terminal
// state other than completed (failed/blocked/cancelled).
func (g *Graph) depsTerminalNonCompleted(t *swarmtypes.Task) bool {
	for _, dep := range t.DependsOn {
		d, ok := g.tasks[dep]
		if !ok {
			continue
		}
		if d.Status.Terminal() && d.Status != swarmtypes.StatusCompleted {
			return true
		}
	}
	return false
}

// GetReadyTasks returns pending tasks whose every dep is completed, sorted
// by ascending priority then insertion order.
func (g *Graph) GetReadyTasks() []*swarmtypes.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := make([]*swarmtypes.Task, 0)
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != swarmtypes.StatusPending {
			continue
		}
		if g.depsCompleted(t) {
			ready = append(ready, t.Clone())
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].Priority < ready[j].Priority
	})
	return ready
}

// MarkBlockedTasks transitions any pending task whose any dep is
// failed/blocked/cancelled into blocked, and returns the newly-blocked ids.
func (g *Graph) MarkBlockedTasks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var blocked []string
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != swarmtypes.StatusPending {
			continue
		}
		if g.depsTerminalNonCompleted(t) {
			t.Status = swarmtypes.StatusBlocked
			blocked = append(blocked, id)
		}
	}
	return blocked
}

// HasCycles reports true iff the dependency graph contains a cycle,
// detected via DFS with an explicit recursion stack.
func (g *Graph) HasCycles() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		t := g.tasks[id]
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				continue
			}
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// GetTopologicalOrder returns task ids in dependency order via Kahn's
// algorithm over the reverse adjacency (each task's DependsOn). If the graph
// has cycles, the returned slice is only a prefix — callers must check
// HasCycles first.
func (g *Graph) GetTopologicalOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		t := g.tasks[id]
		n := 0
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; ok {
				n++
			}
		}
		indegree[id] = n
	}

	queue := make([]string, 0)
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var out []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		for _, dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	return out
}

// GetExecutionLevels iteratively strips zero-indegree tasks; each stripped
// set is one level, and tasks within a level may run concurrently. The
// result is deterministic given insertion order.
func (g *Graph) GetExecutionLevels() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		t := g.tasks[id]
		n := 0
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; ok {
				n++
			}
		}
		indegree[id] = n
	}

	remaining := make(map[string]bool, len(g.order))
	for _, id := range g.order {
		remaining[id] = true
	}

	var levels [][]string
	for len(remaining) > 0 {
		level := make([]string, 0)
		for _, id := range g.order {
			if remaining[id] && indegree[id] == 0 {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			// Remaining tasks form a cycle; stop rather than loop forever.
			break
		}
		for _, id := range level {
			delete(remaining, id)
			for _, dep := range g.dependents[id] {
				indegree[dep]--
			}
		}
		levels = append(levels, level)
	}
	return levels
}
