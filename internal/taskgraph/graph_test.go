package taskgraph

import (
	"testing"
	"time"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

func newTask(id string, deps ...string) *swarmtypes.Task {
	return &swarmtypes.Task{
		ID:          id,
		Description: id,
		DependsOn:   deps,
		CreatedAt:   time.Now(),
	}
}

func TestAddTaskDefaults(t *testing.T) {
	g := New()
	if err := g.AddTask(newTask("a")); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	got := g.Get("a")
	if got.Role != swarmtypes.RoleWorker {
		t.Fatalf("Role=%v, want worker", got.Role)
	}
	if got.Priority != 3 {
		t.Fatalf("Priority=%d, want 3", got.Priority)
	}
	if got.Status != swarmtypes.StatusPending {
		t.Fatalf("Status=%v, want pending", got.Status)
	}
}

func TestAddTaskDuplicate(t *testing.T) {
	g := New()
	if err := g.AddTask(newTask("a")); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := g.AddTask(newTask("a")); err != ErrDuplicateTask {
		t.Fatalf("err=%v, want ErrDuplicateTask", err)
	}
}

func TestGetReadyTasksOrdersByPriority(t *testing.T) {
	g := New()
	low := newTask("low")
	low.Priority = 5
	high := newTask("high")
	high.Priority = 1
	g.AddTask(low)
	g.AddTask(high)

	ready := g.GetReadyTasks()
	if len(ready) != 2 || ready[0].ID != "high" || ready[1].ID != "low" {
		t.Fatalf("ready=%v, want [high low]", ready)
	}
}

func TestGetReadyTasksRespectsDeps(t *testing.T) {
	g := New()
	g.AddTask(newTask("a"))
	g.AddTask(newTask("b", "a"))

	ready := g.GetReadyTasks()
	if len(ready) != 1 || ready[0].ID != "a" {
		t.Fatalf("ready=%v, want [a]", ready)
	}

	a := g.Get("a")
	a.Status = swarmtypes.StatusCompleted
	g.Update(a)

	ready = g.GetReadyTasks()
	if len(ready) != 1 || ready[0].ID != "b" {
		t.Fatalf("ready=%v, want [b]", ready)
	}
}

func TestMarkBlockedTasks(t *testing.T) {
	g := New()
	g.AddTask(newTask("a"))
	g.AddTask(newTask("b", "a"))

	a := g.Get("a")
	a.Status = swarmtypes.StatusFailed
	g.Update(a)

	blocked := g.MarkBlockedTasks()
	if len(blocked) != 1 || blocked[0] != "b" {
		t.Fatalf("blocked=%v, want [b]", blocked)
	}
	if g.Get("b").Status != swarmtypes.StatusBlocked {
		t.Fatalf("b.Status=%v, want blocked", g.Get("b").Status)
	}
}

func TestHasCycles(t *testing.T) {
	g := New()
	g.AddTask(newTask("a", "b"))
	g.AddTask(newTask("b", "a"))
	if !g.HasCycles() {
		t.Fatalf("expected cycle to be detected")
	}

	g2 := New()
	g2.AddTask(newTask("a"))
	g2.AddTask(newTask("b", "a"))
	if g2.HasCycles() {
		t.Fatalf("did not expect a cycle")
	}
}

func TestGetTopologicalOrderRespectsEdges(t *testing.T) {
	g := New()
	g.AddTask(newTask("c", "a", "b"))
	g.AddTask(newTask("a"))
	g.AddTask(newTask("b"))

	order := g.GetTopologicalOrder()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] >= pos["c"] || pos["b"] >= pos["c"] {
		t.Fatalf("order=%v, a and b must precede c", order)
	}
}

func TestGetExecutionLevels(t *testing.T) {
	g := New()
	g.AddTask(newTask("a"))
	g.AddTask(newTask("b"))
	g.AddTask(newTask("c", "a", "b"))

	levels := g.GetExecutionLevels()
	if len(levels) != 2 {
		t.Fatalf("levels=%v, want 2 levels", levels)
	}
	if len(levels[0]) != 2 {
		t.Fatalf("level0=%v, want 2 tasks", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0] != "c" {
		t.Fatalf("level1=%v, want [c]", levels[1])
	}
}
