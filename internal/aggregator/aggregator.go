// Package aggregator combines per-task subagent results into a single
// AggregatedResult, following the outbound envelope's flatten-if-simple
// shaping idiom generalized from delivery payloads to swarm task results.
package aggregator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// Strategy selects how contributing results are combined.
type Strategy string

const (
	StrategyConcatenate Strategy = "concatenate"
	StrategyMerge       Strategy = "merge"
	StrategyJSON        Strategy = "json"
	StrategyStructured  Strategy = "structured"
)

// Contribution is one task's result plus its position in the plan.
type Contribution struct {
	Task   *swarmtypes.Task
	Result *swarmtypes.SubResult
	Order  int
}

// Section is a named block of content gathered while merging, tracking
// which task ids contributed to it for coverage/conflict bookkeeping.
type Section struct {
	Heading  string
	Content  string
	Sources  []string
	Conflict bool
}

// AggregatedResult is the outcome of combining a set of Contributions.
type AggregatedResult struct {
	Text              string
	Sections          []Section
	Confidence        float64
	Coverage          float64
	ContributingTasks int
	FailedTasks       int
	ConflictCount     int
	DedupCount        int
	Warnings          []string
}

var headingRE = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

// Aggregator combines Contributions per Strategy.
type Aggregator struct{}

// New constructs an Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Aggregate combines contributions (one per task) into an AggregatedResult.
// totalTasks is the denominator for Coverage (it may exceed len(contribs)
// when some tasks never produced a Contribution at all, e.g. cancelled).
func (a *Aggregator) Aggregate(strategy Strategy, contribs []Contribution, totalTasks int) AggregatedResult {
	successful := make([]Contribution, 0, len(contribs))
	failed := 0
	for _, c := range contribs {
		if c.Result == nil || !c.Result.Success || strings.TrimSpace(c.Result.Result) == "" {
			failed++
			continue
		}
		successful = append(successful, c)
	}

	if len(successful) == 0 {
		return AggregatedResult{
			Confidence:  0,
			Coverage:    0,
			FailedTasks: failed,
			Warnings:    []string{fmt.Sprintf("no successful contributions out of %d tasks (%d failed)", totalTasks, failed)},
		}
	}

	sort.Slice(successful, func(i, j int) bool { return successful[i].Order < successful[j].Order })

	var out AggregatedResult
	switch strategy {
	case StrategyMerge:
		out = a.mergeSections(successful)
	case StrategyJSON, StrategyStructured:
		out = a.structured(successful)
	default:
		out = a.concatenate(successful)
	}

	out.ContributingTasks = len(successful)
	out.FailedTasks = failed
	if totalTasks > 0 {
		out.Coverage = float64(len(successful)) / float64(totalTasks)
	}
	out.Confidence = weightedConfidence(successful) * (float64(len(successful)) / float64(len(successful)+failed))
	return out
}

func (a *Aggregator) concatenate(contribs []Contribution) AggregatedResult {
	blocks := make([]string, 0, len(contribs))
	for _, c := range contribs {
		label := c.Task.ID
		if c.Task.Description != "" {
			label = c.Task.Description
		}
		blocks = append(blocks, fmt.Sprintf("## %s\n\n%s", label, strings.TrimSpace(c.Result.Result)))
	}
	return AggregatedResult{Text: strings.Join(blocks, "\n\n---\n\n")}
}

func (a *Aggregator) structured(contribs []Contribution) AggregatedResult {
	var b strings.Builder
	for i, c := range contribs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", c.Task.ID, strings.TrimSpace(c.Result.Result))
	}
	return AggregatedResult{Text: b.String()}
}

func (a *Aggregator) mergeSections(contribs []Contribution) AggregatedResult {
	type group struct {
		heading string
		bySource map[string]string // normalized content -> task id (first writer)
		sources  []string
	}
	groups := make(map[string]*group)
	var order []string
	dedup := 0

	for _, c := range contribs {
		for _, sec := range splitSections(c.Result.Result) {
			key := strings.ToLower(strings.TrimSpace(sec.heading))
			g, ok := groups[key]
			if !ok {
				g = &group{heading: sec.heading, bySource: map[string]string{}}
				groups[key] = g
				order = append(order, key)
			}
			norm := normalizeWhitespace(sec.content)
			if _, dup := g.bySource[norm]; dup {
				dedup++
				continue
			}
			g.bySource[norm] = c.Task.ID
			g.sources = append(g.sources, c.Task.ID)
		}
	}

	var sections []Section
	conflicts := 0
	for _, key := range order {
		g := groups[key]
		conflict := len(g.bySource) > 1
		if conflict {
			conflicts++
		}
		content := resolveConflict(g.bySource, contribs)
		sections = append(sections, Section{Heading: g.heading, Content: content, Sources: g.sources, Conflict: conflict})
	}

	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", s.Heading, s.Content)
	}

	return AggregatedResult{Text: b.String(), Sections: sections, ConflictCount: conflicts, DedupCount: dedup}
}

type rawSection struct {
	heading string
	content string
}

// splitSections breaks text into heading-delimited sections using markdown
// heading discipline; text with no headings becomes a single "Result" section.
func splitSections(text string) []rawSection {
	locs := headingRE.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []rawSection{{heading: "Result", content: strings.TrimSpace(text)}}
	}
	var out []rawSection
	for i, loc := range locs {
		heading := text[loc[2]:loc[3]]
		contentStart := loc[1]
		contentEnd := len(text)
		if i+1 < len(locs) {
			contentEnd = locs[i+1][0]
		}
		out = append(out, rawSection{heading: strings.TrimSpace(heading), content: strings.TrimSpace(text[contentStart:contentEnd])})
	}
	return out
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveConflict picks the content from the task with the highest
// calculateResultConfidence when more than one distinct content exists for a
// heading group; otherwise returns the sole content.
func resolveConflict(bySource map[string]string, contribs []Contribution) string {
	byTask := make(map[string]*swarmtypes.SubResult, len(contribs))
	for _, c := range contribs {
		byTask[c.Task.ID] = c.Result
	}
	var best string
	var bestConf float64 = -1
	for content, taskID := range bySource {
		conf := calculateResultConfidence(byTask[taskID])
		if conf > bestConf {
			bestConf = conf
			best = content
		}
	}
	return best
}

// calculateResultConfidence scores a single SubResult: successful, non-trivial
// results with no tool-call churn score highest.
func calculateResultConfidence(r *swarmtypes.SubResult) float64 {
	if r == nil || !r.Success {
		return 0
	}
	score := 0.6
	if len(strings.TrimSpace(r.Result)) > 200 {
		score += 0.2
	}
	if r.ToolCalls > 0 {
		score += 0.1
	}
	if r.Turns <= 3 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

func weightedConfidence(contribs []Contribution) float64 {
	if len(contribs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range contribs {
		sum += calculateResultConfidence(c.Result)
	}
	return sum / float64(len(contribs))
}
