package aggregator

import (
	"strings"
	"testing"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

func contrib(id string, order int, ok bool, result string) Contribution {
	return Contribution{
		Task:   &swarmtypes.Task{ID: id, Description: id},
		Result: &swarmtypes.SubResult{Success: ok, Result: result},
		Order:  order,
	}
}

func TestAggregateConcatenatePreservesOrder(t *testing.T) {
	a := New()
	out := a.Aggregate(StrategyConcatenate, []Contribution{
		contrib("b", 1, true, "second"),
		contrib("a", 0, true, "first"),
	}, 2)
	firstIdx := strings.Index(out.Text, "first")
	secondIdx := strings.Index(out.Text, "second")
	if firstIdx < 0 || secondIdx < 0 || firstIdx > secondIdx {
		t.Fatalf("expected 'first' before 'second' in %q", out.Text)
	}
	if out.ContributingTasks != 2 || out.Coverage != 1 {
		t.Fatalf("ContributingTasks=%d Coverage=%v, want 2/1.0", out.ContributingTasks, out.Coverage)
	}
}

func TestAggregateEmptyFailedInputs(t *testing.T) {
	a := New()
	out := a.Aggregate(StrategyConcatenate, []Contribution{
		contrib("a", 0, false, ""),
	}, 1)
	if out.Confidence != 0 {
		t.Fatalf("Confidence=%v, want 0", out.Confidence)
	}
	if len(out.Warnings) == 0 {
		t.Fatalf("expected a warning for all-failed input")
	}
}

func TestAggregateMergeDedupesIdenticalSections(t *testing.T) {
	a := New()
	out := a.Aggregate(StrategyMerge, []Contribution{
		contrib("a", 0, true, "## Summary\n\nSame content here."),
		contrib("b", 1, true, "## Summary\n\nSame   content   here."),
	}, 2)
	if out.DedupCount != 1 {
		t.Fatalf("DedupCount=%d, want 1", out.DedupCount)
	}
	if out.ConflictCount != 0 {
		t.Fatalf("ConflictCount=%d, want 0", out.ConflictCount)
	}
}

func TestAggregateMergeResolvesConflictByConfidence(t *testing.T) {
	a := New()
	long := strings.Repeat("x", 250)
	out := a.Aggregate(StrategyMerge, []Contribution{
		contrib("a", 0, true, "## Findings\n\nshort"),
		contrib("b", 1, true, "## Findings\n\n"+long),
	}, 2)
	if out.ConflictCount != 1 {
		t.Fatalf("ConflictCount=%d, want 1", out.ConflictCount)
	}
	if len(out.Sections) != 1 || !strings.Contains(out.Sections[0].Content, long) {
		t.Fatalf("expected the higher-confidence (longer) content to win")
	}
}

func TestAggregateStructuredStrategy(t *testing.T) {
	a := New()
	out := a.Aggregate(StrategyStructured, []Contribution{
		contrib("task-1", 0, true, "done"),
	}, 1)
	if !strings.Contains(out.Text, "task-1") {
		t.Fatalf("structured output should key by task id: %q", out.Text)
	}
}
