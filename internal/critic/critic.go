// Package critic reviews an aggregated swarm result two ways: cheap static
// checks that need no external model, and an optional LLM review spawned as
// a critic-role subagent. A review is blocked whenever either path raises a
// severity/category that crosses the configured threshold; the critic's own
// self-reported JSON verdict is never trusted alone.
package critic

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/swarmcore/swarmcore/internal/aggregator"
	"github.com/swarmcore/swarmcore/internal/subagentmgr"
)

// Severity orders issue severity for threshold comparisons.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo: 0, SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3, SeverityCritical: 4,
}

// atLeast reports whether s is at or above threshold.
func (s Severity) atLeast(threshold Severity) bool {
	return severityRank[s] >= severityRank[threshold]
}

// Category classifies an issue for blockingCategories matching.
type Category string

const (
	CategoryUnsafeAction Category = "unsafe_action"
	CategorySecurity     Category = "security"
	CategoryCorrectness  Category = "correctness"
	CategoryMissingStep  Category = "missing_step"
	CategoryStyle        Category = "style"
	CategoryOther        Category = "other"
)

// Issue is one finding from either check path.
type Issue struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	TaskID      string   `json:"taskId,omitempty"`
	AutoFixable bool     `json:"autoFixable,omitempty"`
}

// FollowUp is generated for every non-info issue.
type FollowUp struct {
	Type        string `json:"type"` // "task" or "manual"
	Description string `json:"description"`
	Required    bool   `json:"required"`
	SourceIssue Issue  `json:"sourceIssue"`
}

// Verdict is the outcome of a Review.
type Verdict struct {
	Approved     bool       `json:"approved"`
	QualityScore float64    `json:"qualityScore"`
	Issues       []Issue    `json:"issues"`
	Summary      string     `json:"summary"`
	Feedback     string     `json:"feedback"`
	FollowUps    []FollowUp `json:"followUps,omitempty"`
	Blocked      bool       `json:"blocked"`
}

// Config tunes blocking thresholds.
type Config struct {
	BlockingSeverity   Severity
	BlockingCategories []Category
	EnableLLMReview    bool
}

func (c Config) withDefaults() Config {
	if c.BlockingSeverity == "" {
		c.BlockingSeverity = SeverityHigh
	}
	if c.BlockingCategories == nil {
		c.BlockingCategories = []Category{CategoryUnsafeAction, CategorySecurity, CategoryCorrectness}
	}
	return c
}

func (c Config) blocksOnCategory(cat Category) bool {
	for _, bc := range c.BlockingCategories {
		if bc == cat {
			return true
		}
	}
	return false
}

var credentialRE = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"]?[A-Za-z0-9/+=_-]{8,}`)
var unsafeOpRE = regexp.MustCompile(`(?i)\b(rm -rf|drop table|force[- ]push|--no-verify)\b`)

// Critic runs static and LLM review paths over an aggregated result.
type Critic struct {
	cfg     Config
	spawner *subagentmgr.Manager
}

// New constructs a Critic. spawner may be nil, in which case Review runs the
// static path only (EnableLLMReview is ignored).
func New(cfg Config, spawner *subagentmgr.Manager) *Critic {
	return &Critic{cfg: cfg.withDefaults(), spawner: spawner}
}

// ReviewInput bundles what a critic needs to see.
type ReviewInput struct {
	Goal        string
	TaskIDs     []string
	FailedCount int
	Aggregated  aggregator.AggregatedResult
	PriorIssues []Issue
	SessionID   string
	Depth       int
}

// Review runs the static checks and, if enabled and a spawner is available,
// an LLM review, then ANDs both verdicts: either path alone can block.
func (c *Critic) Review(ctx context.Context, in ReviewInput) Verdict {
	static := c.staticChecks(in)

	if !c.cfg.EnableLLMReview || c.spawner == nil {
		static.Blocked = c.isBlocked(static.Issues)
		static.Approved = static.Approved && !static.Blocked
		static.FollowUps = followUpsFor(static.Issues)
		return static
	}

	llm := c.llmReview(ctx, in)
	merged := Verdict{
		Approved:     static.Approved && llm.Approved,
		QualityScore: (static.QualityScore + llm.QualityScore) / 2,
		Issues:       append(append([]Issue{}, static.Issues...), llm.Issues...),
		Summary:      llm.Summary,
		Feedback:     llm.Feedback,
	}
	merged.Blocked = c.isBlocked(merged.Issues)
	merged.Approved = merged.Approved && !merged.Blocked
	merged.FollowUps = followUpsFor(merged.Issues)
	return merged
}

func (c *Critic) isBlocked(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity.atLeast(c.cfg.BlockingSeverity) || c.cfg.blocksOnCategory(is.Category) {
			return true
		}
	}
	return false
}

func followUpsFor(issues []Issue) []FollowUp {
	var out []FollowUp
	for _, is := range issues {
		if is.Severity == SeverityInfo {
			continue
		}
		ftype := "manual"
		if is.AutoFixable || is.Category == CategoryMissingStep {
			ftype = "task"
		}
		out = append(out, FollowUp{
			Type:        ftype,
			Description: is.Description,
			Required:    is.Severity.atLeast(SeverityHigh),
			SourceIssue: is,
		})
	}
	return out
}

// staticChecks implements the no-model checks: low confidence, high failure
// rate, conflicts, thin content, credential/unsafe-op patterns, and a
// coverage gap (a task id missing from every section's source list).
func (c *Critic) staticChecks(in ReviewInput) Verdict {
	var issues []Issue
	agg := in.Aggregated

	if agg.Confidence < 0.5 {
		issues = append(issues, Issue{Category: CategoryCorrectness, Severity: SeverityMedium, Description: "aggregated result confidence below 0.5"})
	}
	if len(in.TaskIDs) > 0 && float64(in.FailedCount)/float64(len(in.TaskIDs)) > 0.3 {
		issues = append(issues, Issue{Category: CategoryCorrectness, Severity: SeverityHigh, Description: "more than 30% of tasks failed"})
	}
	if agg.ConflictCount > 0 {
		issues = append(issues, Issue{Category: CategoryCorrectness, Severity: SeverityLow, Description: "unresolved content conflicts across contributing tasks"})
	}
	if len(strings.TrimSpace(agg.Text)) < 50 {
		issues = append(issues, Issue{Category: CategoryMissingStep, Severity: SeverityMedium, Description: "aggregated content is empty or very short"})
	}
	if credentialRE.MatchString(agg.Text) {
		issues = append(issues, Issue{Category: CategorySecurity, Severity: SeverityCritical, Description: "possible credential or secret present in output"})
	}
	if unsafeOpRE.MatchString(agg.Text) {
		issues = append(issues, Issue{Category: CategoryUnsafeAction, Severity: SeverityHigh, Description: "output references a destructive or unsafe operation"})
	}

	if len(agg.Sections) > 0 && len(in.TaskIDs) > 0 {
		covered := make(map[string]bool)
		for _, sec := range agg.Sections {
			for _, id := range sec.Sources {
				covered[id] = true
			}
		}
		for _, id := range in.TaskIDs {
			if !covered[id] {
				issues = append(issues, Issue{Category: CategoryMissingStep, Severity: SeverityLow, Description: "task has no contributing section in the aggregated output", TaskID: id})
			}
		}
	}

	score := 1.0
	for _, is := range issues {
		score -= 0.1 * float64(severityRank[is.Severity]+1)
	}
	if score < 0 {
		score = 0
	}

	return Verdict{
		Approved:     len(issues) == 0,
		QualityScore: score,
		Issues:       issues,
		Summary:      "static review complete",
	}
}

// llmReview spawns a critic-role subagent with the review context and parses
// its JSON verdict; on parse failure it falls back to a text heuristic.
func (c *Critic) llmReview(ctx context.Context, in ReviewInput) Verdict {
	prompt := buildCriticPrompt(in)
	result := c.spawner.Spawn(ctx, subagentmgr.SpawnConfig{
		Task:      prompt,
		SessionID: in.SessionID,
		Depth:     in.Depth,
	})
	if result == nil || !result.Success {
		return Verdict{Approved: false, Summary: "critic subagent failed to run"}
	}
	return parseCriticOutput(result.Result)
}

func buildCriticPrompt(in ReviewInput) string {
	var b strings.Builder
	b.WriteString("Goal: " + in.Goal + "\n\n")
	b.WriteString("Aggregated output:\n" + in.Aggregated.Text + "\n\n")
	if len(in.PriorIssues) > 0 {
		b.WriteString("Unresolved issues from the previous review pass:\n")
		for _, is := range in.PriorIssues {
			b.WriteString("- [" + string(is.Severity) + "] " + is.Description + "\n")
		}
	}
	b.WriteString("\nRespond with a JSON object: approved, qualityScore, issues[], summary, feedback.")
	return b.String()
}

// verdictSchemaJSON validates the shape of a critic runner's self-reported
// JSON verdict before it is trusted into a Verdict; it only checks the
// shape, not the severity/category gating Review itself applies afterward.
const verdictSchemaJSON = `{
  "type": "object",
  "properties": {
    "approved": {"type": "boolean"},
    "qualityScore": {"type": "number"},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "category": {"type": "string"},
          "severity": {"type": "string"},
          "description": {"type": "string"},
          "taskId": {"type": "string"},
          "autoFixable": {"type": "boolean"}
        },
        "required": ["category", "severity", "description"]
      }
    },
    "summary": {"type": "string"},
    "feedback": {"type": "string"}
  },
  "required": ["approved", "summary"]
}`

var verdictSchema = mustCompileSchema(verdictSchemaJSON)

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("critic-verdict.json", strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	s, err := c.Compile("critic-verdict.json")
	if err != nil {
		panic(err)
	}
	return s
}

// parseCriticOutput parses and schema-validates a critic runner's JSON
// verdict; on either a decode error or a schema violation it falls back to
// a crude text heuristic rather than blocking by default, since an
// untrusted critic shouldn't be able to force a block just by malforming
// its own output.
func parseCriticOutput(text string) Verdict {
	raw := extractJSONObject(text)

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err == nil {
		if err := verdictSchema.Validate(generic); err == nil {
			var v Verdict
			if err := json.Unmarshal([]byte(raw), &v); err == nil {
				return v
			}
		}
	}

	lower := strings.ToLower(text)
	approved := strings.Contains(lower, "approved") && !strings.Contains(lower, "not approved")
	return Verdict{Approved: approved, Summary: "parsed via text heuristic (invalid critic JSON)"}
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "{}"
	}
	return text[start : end+1]
}
