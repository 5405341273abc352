// Package decision implements the swarm-vs-single-agent decision: lexicon-
// driven complexity/risk scoring, a weighted swarm/ask-user verdict, and an
// Enforcer that wraps the verdict with depth/budget/capability/guardrail/
// tool-availability gates before it can take effect.
package decision

import (
	"regexp"
	"strconv"
	"strings"
)

// Decision is the outcome of evaluating a goal.
type Decision string

const (
	DecisionSingleAgent Decision = "single_agent"
	DecisionSwarm       Decision = "swarm"
	DecisionAskUser     Decision = "ask_user"
)

// Analysis is the scored profile of a goal.
type Analysis struct {
	ComplexityScore   float64
	RiskScore         float64
	EstimatedSubtasks int
	RequiredDomains   []string
	Parallelizable    bool
}

// Verdict is the decision plus its justification.
type Verdict struct {
	Decision   Decision
	Reasons    []string
	Confidence float64
}

// Lexicon holds the keyword sets the analyzer scores against.
type Lexicon struct {
	Complexity         []string
	Risk               []string
	Domains            map[string][]string // domain tag -> keywords
	TriggerDomainPairs [][2]string
}

// DefaultLexicon returns a reasonable starting keyword set.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Complexity: []string{"refactor", "migrate", "architecture", "integrate", "redesign", "across", "entire", "multiple"},
		Risk:       []string{"delete", "drop", "production", "credentials", "secret", "force", "irreversible", "overwrite"},
		Domains: map[string][]string{
			"backend":  {"api", "server", "database", "endpoint"},
			"frontend": {"ui", "component", "react", "css", "page"},
			"infra":    {"deploy", "kubernetes", "terraform", "pipeline", "ci"},
			"data":     {"schema", "migration", "etl", "dataset"},
		},
		TriggerDomainPairs: [][2]string{{"backend", "frontend"}, {"infra", "backend"}},
	}
}

// Config tunes the analyzer and decision thresholds.
type Config struct {
	MinSubtasksForParallel int
	ComplexityThreshold    float64
	SwarmScoreThreshold    float64
	AutoSwarm              bool
	AskForHighRisk         bool
}

func (c Config) withDefaults() Config {
	if c.MinSubtasksForParallel <= 0 {
		c.MinSubtasksForParallel = 3
	}
	if c.ComplexityThreshold <= 0 {
		c.ComplexityThreshold = 0.5
	}
	if c.SwarmScoreThreshold <= 0 {
		c.SwarmScoreThreshold = 0.4
	}
	return c
}

var (
	bulletRE       = regexp.MustCompile(`(?m)^\s*[-*\d]+[.)]?\s+\S`)
	integerRE      = regexp.MustCompile(`\b(\d+)\s+(files|components|services|modules|tasks|steps|endpoints)\b`)
	parallelWordRE = regexp.MustCompile(`(?i)\b(parallel|simultaneously|concurrently|at the same time)\b`)
	andRE          = regexp.MustCompile(`(?i)\band\b`)
)

// Analyzer scores goals against a Lexicon and Config.
type Analyzer struct {
	lexicon Lexicon
	cfg     Config
}

// NewAnalyzer constructs an Analyzer. A zero Lexicon falls back to DefaultLexicon.
func NewAnalyzer(lexicon Lexicon, cfg Config) *Analyzer {
	if lexicon.Domains == nil {
		lexicon = DefaultLexicon()
	}
	return &Analyzer{lexicon: lexicon, cfg: cfg.withDefaults()}
}

func keywordDensity(text string, keywords []string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if len(keywords) == 0 {
		return 0
	}
	return float64(hits) / float64(len(keywords))
}

// AnalyzeTask scores a goal's complexity, risk, parallelism, and domains.
func (a *Analyzer) AnalyzeTask(goal string) Analysis {
	complexity := keywordDensity(goal, a.lexicon.Complexity)
	if complexity > 1 {
		complexity = 1
	}
	risk := keywordDensity(goal, a.lexicon.Risk)
	if risk > 1 {
		risk = 1
	}

	estimated := 0
	if m := parallelWordRE.FindAllString(goal, -1); len(m) > estimated {
		estimated = len(m)
	}
	if matches := integerRE.FindAllStringSubmatch(goal, -1); len(matches) > 0 {
		largest := 0
		for _, m := range matches {
			if n, err := strconv.Atoi(m[1]); err == nil && n > largest {
				largest = n
			}
		}
		if largest > estimated {
			estimated = largest
		}
	}
	if bullets := bulletRE.FindAllString(goal, -1); len(bullets) > estimated {
		estimated = len(bullets)
	}
	if ands := andRE.FindAllString(goal, -1); len(ands)+1 > estimated {
		estimated = len(ands) + 1
	}
	if estimated > 20 {
		estimated = 20
	}

	var domains []string
	lower := strings.ToLower(goal)
	for domain, keywords := range a.lexicon.Domains {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				domains = append(domains, domain)
				break
			}
		}
	}

	return Analysis{
		ComplexityScore:   complexity,
		RiskScore:         risk,
		EstimatedSubtasks: estimated,
		RequiredDomains:   domains,
		Parallelizable:    estimated >= a.cfg.MinSubtasksForParallel,
	}
}

func domainsContainTriggerPair(domains []string, pairs [][2]string) bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[d] = true
	}
	for _, pair := range pairs {
		if set[pair[0]] && set[pair[1]] {
			return true
		}
	}
	return false
}

// Decide scores an Analysis into a Verdict per SPEC_FULL.md §4.4's weighted
// swarmScore/askScore accumulation.
func (a *Analyzer) Decide(an Analysis) Verdict {
	var reasons []string
	var swarmScore, askScore float64

	if an.ComplexityScore >= a.cfg.ComplexityThreshold {
		swarmScore += 0.3
		reasons = append(reasons, "complexity above threshold")
	}
	if an.Parallelizable {
		swarmScore += 0.25
		reasons = append(reasons, "task is parallelizable")
	}
	if len(an.RequiredDomains) >= 2 {
		swarmScore += 0.25
		reasons = append(reasons, "spans multiple domains")
	}
	if domainsContainTriggerPair(an.RequiredDomains, a.lexicon.TriggerDomainPairs) {
		swarmScore += 0.1
		reasons = append(reasons, "domain pair is a configured swarm trigger")
	}
	highRisk := an.RiskScore >= 0.5
	if highRisk && !a.cfg.AskForHighRisk {
		swarmScore += 0.2
		reasons = append(reasons, "high risk, configured to proceed under swarm")
	}
	if highRisk && a.cfg.AskForHighRisk {
		askScore += 0.4
		reasons = append(reasons, "high risk, configured to ask the user")
	}

	confidence := swarmScore
	if askScore > confidence {
		confidence = askScore
	}
	if confidence > 1 {
		confidence = 1
	}

	switch {
	case len(reasons) == 0:
		return Verdict{Decision: DecisionSingleAgent, Confidence: 1}
	case askScore > swarmScore && !a.cfg.AutoSwarm:
		return Verdict{Decision: DecisionAskUser, Reasons: reasons, Confidence: confidence}
	case swarmScore >= a.cfg.SwarmScoreThreshold && (a.cfg.AutoSwarm || swarmScore > askScore):
		return Verdict{Decision: DecisionSwarm, Reasons: reasons, Confidence: confidence}
	default:
		return Verdict{Decision: DecisionAskUser, Reasons: reasons, Confidence: confidence}
	}
}
