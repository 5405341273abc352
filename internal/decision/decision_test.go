package decision

import "testing"

func TestAnalyzeTaskParallelism(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	an := a.AnalyzeTask("Update 5 files across the backend api and the frontend react components")
	if an.EstimatedSubtasks < 5 {
		t.Fatalf("EstimatedSubtasks=%d, want >= 5", an.EstimatedSubtasks)
	}
	if !an.Parallelizable {
		t.Fatalf("expected Parallelizable=true")
	}
	if len(an.RequiredDomains) < 2 {
		t.Fatalf("RequiredDomains=%v, want >= 2 domains", an.RequiredDomains)
	}
}

func TestDecideNoSignalsIsSingleAgent(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	v := a.Decide(Analysis{})
	if v.Decision != DecisionSingleAgent {
		t.Fatalf("Decision=%v, want single_agent", v.Decision)
	}
}

func TestDecideHighRiskAsksUser(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{AskForHighRisk: true})
	v := a.Decide(Analysis{RiskScore: 0.9})
	if v.Decision != DecisionAskUser {
		t.Fatalf("Decision=%v, want ask_user", v.Decision)
	}
}

func TestDecideComplexParallelMultiDomainIsSwarm(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	v := a.Decide(Analysis{ComplexityScore: 0.8, Parallelizable: true, RequiredDomains: []string{"backend", "frontend"}})
	if v.Decision != DecisionSwarm {
		t.Fatalf("Decision=%v reasons=%v, want swarm", v.Decision, v.Reasons)
	}
}

type alwaysExceeded struct{}

func (alwaysExceeded) OverallExceeded() bool { return true }

func TestEnforcerBudgetGateForcesSingleAgent(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	e := NewEnforcer(a, EnforcerConfig{MaxSwarmDepth: 3}, alwaysExceeded{}, nil, nil, nil, nil)
	result := e.Evaluate("refactor and migrate the architecture across multiple services in parallel", 0, "sess-1")
	if result.Decision != DecisionSingleAgent {
		t.Fatalf("Decision=%v, want single_agent once budget gate fires", result.Decision)
	}
	if len(result.BlockedReasons) == 0 {
		t.Fatalf("expected a blocked reason")
	}
}

func TestEnforcerDepthGate(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	e := NewEnforcer(a, EnforcerConfig{MaxSwarmDepth: 1}, nil, nil, nil, nil, nil)
	result := e.Evaluate("refactor and migrate the architecture across multiple services in parallel", 1, "sess-1")
	if result.Decision != DecisionSingleAgent {
		t.Fatalf("Decision=%v, want single_agent at max depth", result.Decision)
	}
}

func TestEnforcerSuggestsConfigOnSwarm(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	e := NewEnforcer(a, EnforcerConfig{MaxSwarmDepth: 3}, nil, nil, nil, nil, nil)
	result := e.Evaluate("refactor and migrate the architecture across multiple backend api and frontend react services in parallel", 0, "sess-1")
	if result.Decision != DecisionSwarm {
		t.Fatalf("Decision=%v, want swarm", result.Decision)
	}
	if result.SuggestedConfig == nil {
		t.Fatalf("expected a SuggestedConfig for a swarm verdict")
	}
}

func TestEnforcerSuggestsHealthiestWorkerProfile(t *testing.T) {
	a := NewAnalyzer(DefaultLexicon(), Config{})
	health := NewProfileHealth()
	health.RecordOutcome("coding", false)
	health.RecordOutcome("coding", false)
	health.RecordOutcome("research", true)

	profiles := []ToolProfile{
		{Name: "coding", Tools: []string{"fs_read", "fs_write"}},
		{Name: "research", Tools: []string{"web_search"}},
	}
	e := NewEnforcer(a, EnforcerConfig{MaxSwarmDepth: 3, WorkerProfiles: profiles}, nil, nil, nil, nil, health)
	result := e.Evaluate("refactor and migrate the architecture across multiple backend api and frontend react services in parallel", 0, "sess-1")
	if result.SuggestedConfig == nil {
		t.Fatalf("expected a SuggestedConfig for a swarm verdict")
	}
	if len(result.SuggestedConfig.WorkerTools) != 1 || result.SuggestedConfig.WorkerTools[0] != "web_search" {
		t.Fatalf("WorkerTools=%v, want the healthier research profile", result.SuggestedConfig.WorkerTools)
	}
}

func TestSuggestWorkerToolsNilHealthPicksFirst(t *testing.T) {
	profiles := []ToolProfile{
		{Name: "coding", Tools: []string{"fs_read"}},
		{Name: "research", Tools: []string{"web_search"}},
	}
	tools := SuggestWorkerTools(profiles, nil)
	if len(tools) != 1 || tools[0] != "fs_read" {
		t.Fatalf("tools=%v, want first candidate", tools)
	}
}

func TestProfileHealthFailureRate(t *testing.T) {
	h := NewProfileHealth()
	if rate := h.FailureRate("unknown"); rate != 0 {
		t.Fatalf("FailureRate(unknown)=%v, want 0", rate)
	}
	h.RecordOutcome("p", true)
	h.RecordOutcome("p", false)
	h.RecordOutcome("p", false)
	h.RecordOutcome("p", false)
	if rate := h.FailureRate("p"); rate != 0.75 {
		t.Fatalf("FailureRate(p)=%v, want 0.75", rate)
	}
}
