package decision

// SwarmConfig is the suggested configuration for a swarm run approved by the Enforcer.
type SwarmConfig struct {
	MaxConcurrent int
	EnableCritic  bool
	AutoApprove   bool
	WorkerTools   []string // nil unless candidate tool profiles were configured on the Enforcer
}

// SuggestSwarmConfig derives a SwarmConfig from an Analysis, following the
// teacher capability router's weighted-scoring idiom (start from a baseline,
// boost or gate on thresholds) adapted to swarm sizing instead of agent
// selection.
func SuggestSwarmConfig(an Analysis) SwarmConfig {
	maxConcurrent := an.EstimatedSubtasks
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxConcurrent > 10 {
		maxConcurrent = 10
	}
	return SwarmConfig{
		MaxConcurrent: maxConcurrent,
		EnableCritic:  an.RiskScore > 0.5 || an.ComplexityScore > 0.7,
		AutoApprove:   an.RiskScore <= 0.3 && an.ComplexityScore <= 0.3,
	}
}

// BudgetTracker reports whether a swarm run's resource budget is exhausted.
type BudgetTracker interface {
	OverallExceeded() bool
}

// CapabilityEnforcer reports whether a session is permitted to spawn subagents at all.
type CapabilityEnforcer interface {
	AllowSpawn(sessionID string) bool
}

// GuardrailChecker reports whether policy explicitly denies a tool.
type GuardrailChecker interface {
	DeniesTool(tool string) bool
}

// ToolRegistry reports whether the runtime exposes a set of tools.
type ToolRegistry interface {
	HasTools(tools []string) bool
}

// EnforcerConfig configures the Enforcer's gates.
type EnforcerConfig struct {
	MaxSwarmDepth int
	SpawnTools    []string // tools required to run a swarm (e.g. "spawn_subagent")

	// WorkerProfiles, when non-empty, lets a suggested SwarmConfig pick the
	// healthiest candidate worker tool profile instead of leaving
	// WorkerTools unset.
	WorkerProfiles []ToolProfile
}

// EnforcedVerdict is a Verdict after gating, with the reasons any gate fired
// and the suggested swarm configuration when the verdict survives gating.
type EnforcedVerdict struct {
	Verdict
	BlockedReasons  []string
	SuggestedConfig *SwarmConfig
}

// Enforcer wraps Analyzer.Decide with depth, budget, capability, guardrail,
// and tool-availability gates. Any collaborator left nil is treated as
// permissive (the gate never fires).
type Enforcer struct {
	analyzer   *Analyzer
	cfg        EnforcerConfig
	budget     BudgetTracker
	capability CapabilityEnforcer
	guardrail  GuardrailChecker
	tools      ToolRegistry
	health     *ProfileHealth
}

// NewEnforcer constructs an Enforcer. Any collaborator may be nil; a nil
// health tracker leaves every configured WorkerProfile equally healthy.
func NewEnforcer(analyzer *Analyzer, cfg EnforcerConfig, budget BudgetTracker, capability CapabilityEnforcer, guardrail GuardrailChecker, tools ToolRegistry, health *ProfileHealth) *Enforcer {
	return &Enforcer{analyzer: analyzer, cfg: cfg, budget: budget, capability: capability, guardrail: guardrail, tools: tools, health: health}
}

// Evaluate analyzes goal, decides, then gates the decision. Any gate failure
// forces the decision to single_agent and records why; otherwise a swarm
// verdict is paired with a SuggestedConfig.
func (e *Enforcer) Evaluate(goal string, depth int, sessionID string) EnforcedVerdict {
	analysis := e.analyzer.AnalyzeTask(goal)
	verdict := e.analyzer.Decide(analysis)

	var blocked []string
	if depth >= e.cfg.MaxSwarmDepth {
		blocked = append(blocked, "max swarm depth reached")
	}
	if e.budget != nil && e.budget.OverallExceeded() {
		blocked = append(blocked, "budget exceeded")
	}
	if e.capability != nil && !e.capability.AllowSpawn(sessionID) {
		blocked = append(blocked, "capability enforcer denies spawn for this session")
	}
	if e.guardrail != nil {
		for _, tool := range e.cfg.SpawnTools {
			if e.guardrail.DeniesTool(tool) {
				blocked = append(blocked, "guardrail denies tool: "+tool)
			}
		}
	}
	if e.tools != nil && !e.tools.HasTools(e.cfg.SpawnTools) {
		blocked = append(blocked, "spawn tools unavailable in runtime registry")
	}

	if len(blocked) > 0 {
		verdict.Decision = DecisionSingleAgent
		return EnforcedVerdict{Verdict: verdict, BlockedReasons: blocked}
	}

	var suggested *SwarmConfig
	if verdict.Decision == DecisionSwarm {
		cfg := SuggestSwarmConfig(analysis)
		if len(e.cfg.WorkerProfiles) > 0 {
			cfg.WorkerTools = SuggestWorkerTools(e.cfg.WorkerProfiles, e.health)
		}
		suggested = &cfg
	}
	return EnforcedVerdict{Verdict: verdict, SuggestedConfig: suggested}
}
