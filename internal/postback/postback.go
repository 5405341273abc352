// Package postback converts a completed swarm run into a PostbackMessage
// suitable for hand-off to an external inbox subsystem, generalizing the
// outbound envelope's payload/meta/delivery wrapping from chat delivery
// payloads to swarm result reporting.
package postback

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/swarmcore/swarmcore/internal/aggregator"
	"github.com/swarmcore/swarmcore/internal/critic"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// Format selects how a PostbackMessage's content is rendered.
type Format string

const (
	FormatMarkdown   Format = "markdown"
	FormatJSON       Format = "json"
	FormatPlain      Format = "plain"
	FormatStructured Format = "structured"
)

// Artifact is a code block, file path, or URL scraped from task output.
type Artifact struct {
	Type    string `json:"type"` // "code", "file", "url"
	Content string `json:"content"`
	Lang    string `json:"lang,omitempty"`
}

// TaskOutcome is a per-task summary line in the postback payload.
type TaskOutcome struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Payload is the structured body of a PostbackMessage.
type Payload struct {
	Summary   string                  `json:"summary"`
	Metrics   swarmtypes.SwarmMetrics `json:"metrics"`
	Outcomes  []TaskOutcome           `json:"outcomes"`
	Issues    []critic.Issue          `json:"issues,omitempty"`
	FollowUps []critic.FollowUp       `json:"followUps,omitempty"`
	Artifacts []Artifact              `json:"artifacts,omitempty"`
}

// PostbackMessage is the final hand-off envelope.
type PostbackMessage struct {
	Format  Format  `json:"format"`
	Content string  `json:"content"`
	Payload Payload `json:"payload"`
}

// InboxMessage wraps a PostbackMessage for a downstream inbox consumer.
type InboxMessage struct {
	Kind    string          `json:"kind"` // "swarm_result"
	Message PostbackMessage `json:"message"`
}

// Config tunes truncation limits.
type Config struct {
	MaxContentLength int
	TruncationLength int // per-artifact cap
}

func (c Config) withDefaults() Config {
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 8000
	}
	if c.TruncationLength <= 0 {
		c.TruncationLength = 2000
	}
	return c
}

var (
	codeBlockRE = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")
	urlRE       = regexp.MustCompile(`https?://[^\s)]+`)
	filePathRE  = regexp.MustCompile(`\b(?:[A-Za-z0-9_.\-]+/)+[A-Za-z0-9_.\-]+\.[A-Za-z0-9]{1,8}\b`)
)

// Builder builds PostbackMessages from a completed swarm's results.
type Builder struct {
	cfg Config
}

// New constructs a Builder.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg.withDefaults()}
}

// BuildInput bundles what a postback needs from a finished swarm run.
type BuildInput struct {
	Tasks      []*swarmtypes.Task
	Aggregated aggregator.AggregatedResult
	Metrics    swarmtypes.SwarmMetrics
	Verdict    *critic.Verdict
}

// Build renders in as a PostbackMessage in the given format.
func (b *Builder) Build(format Format, in BuildInput) PostbackMessage {
	outcomes := make([]TaskOutcome, 0, len(in.Tasks))
	for _, t := range in.Tasks {
		oc := TaskOutcome{TaskID: t.ID, Status: string(t.Status)}
		if t.Result != nil {
			oc.Error = t.Result.Error
		}
		outcomes = append(outcomes, oc)
	}

	payload := Payload{
		Summary:  summarize(in),
		Metrics:  in.Metrics,
		Outcomes: outcomes,
	}
	if in.Verdict != nil {
		payload.Issues = in.Verdict.Issues
		payload.FollowUps = in.Verdict.FollowUps
	}
	payload.Artifacts = b.extractArtifacts(in.Aggregated.Text)

	content := b.renderContent(format, in, payload)
	if len(content) > b.cfg.MaxContentLength {
		content = content[:b.cfg.MaxContentLength] + "\n...[truncated]"
	}

	return PostbackMessage{Format: format, Content: content, Payload: payload}
}

func summarize(in BuildInput) string {
	completed, failed := 0, 0
	for _, t := range in.Tasks {
		switch t.Status {
		case swarmtypes.StatusCompleted:
			completed++
		case swarmtypes.StatusFailed, swarmtypes.StatusBlocked, swarmtypes.StatusCancelled:
			failed++
		}
	}
	return fmt.Sprintf("Swarm finished: %d/%d tasks completed, %d failed.", completed, len(in.Tasks), failed)
}

func (b *Builder) renderContent(format Format, in BuildInput, payload Payload) string {
	switch format {
	case FormatJSON, FormatStructured:
		data, _ := json.MarshalIndent(payload, "", "  ")
		return string(data)
	case FormatPlain:
		return payload.Summary + "\n\n" + stripMarkdown(in.Aggregated.Text)
	default: // FormatMarkdown
		return "# Swarm Result\n\n" + payload.Summary + "\n\n" + in.Aggregated.Text
	}
}

func stripMarkdown(s string) string {
	s = codeBlockRE.ReplaceAllString(s, "$2")
	return strings.ReplaceAll(strings.ReplaceAll(s, "#", ""), "**", "")
}

func (b *Builder) extractArtifacts(text string) []Artifact {
	var artifacts []Artifact
	for _, m := range codeBlockRE.FindAllStringSubmatch(text, -1) {
		artifacts = append(artifacts, Artifact{Type: "code", Lang: m[1], Content: truncate(m[2], b.cfg.TruncationLength)})
	}
	for _, u := range urlRE.FindAllString(text, -1) {
		artifacts = append(artifacts, Artifact{Type: "url", Content: truncate(u, b.cfg.TruncationLength)})
	}
	for _, p := range filePathRE.FindAllString(text, -1) {
		artifacts = append(artifacts, Artifact{Type: "file", Content: truncate(p, b.cfg.TruncationLength)})
	}
	return artifacts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}

// CreateInboxMessage wraps msg with a typed envelope for hand-off to an
// external inbox subsystem.
func CreateInboxMessage(msg PostbackMessage) InboxMessage {
	return InboxMessage{Kind: "swarm_result", Message: msg}
}
