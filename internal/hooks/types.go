// Package hooks lets external code observe and intervene in subagent
// lifecycle transitions: SubagentStart fires before a task is handed to a
// Runner and may block the spawn, narrow its tool set, or inject context;
// SubagentStop fires after a Runner returns and may veto the result or
// rewrite its text before the dispatcher records it.
package hooks

import (
	"context"
	"time"
)

// EventType identifies which subagent lifecycle transition a hook fires on.
type EventType string

const (
	SubagentStart EventType = "SubagentStart"
	SubagentStop  EventType = "SubagentStop"
)

// Input carries everything a hook needs to decide. Status, Result, Error,
// and Duration are only populated for SubagentStop.
type Input struct {
	Event           EventType
	SessionID       string
	Cwd             string
	SubagentID      string
	ParentSessionID string
	Task            string
	AllowedTools    []string
	MaxTurns        int
	Depth           int

	Status   string
	Result   string
	Error    string
	Duration time.Duration
}

// UpdatedInput carries the fields a hook is allowed to rewrite before the
// caller proceeds: the tool set on start, the result text on stop.
type UpdatedInput struct {
	AllowedTools []string
	Result       string
}

// Output is a hook's verdict. Continue defaults to true; a hook that wants
// to block a start or veto a stop's result sets Continue=false and
// StopReason. AdditionalContext from a start hook is appended to the
// subagent's task prompt; it never replaces anything. The subagent manager
// does not use AdditionalContext returned on stop.
type Output struct {
	Continue          bool
	StopReason        string
	UpdatedInput      *UpdatedInput
	AdditionalContext string
}

// Hook observes or intervenes in one lifecycle transition.
type Hook interface {
	Fire(ctx context.Context, input *Input) (*Output, error)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx context.Context, input *Input) (*Output, error)

func (f HookFunc) Fire(ctx context.Context, input *Input) (*Output, error) {
	return f(ctx, input)
}

// Priority determines call order within a chain (lower runs earlier).
type Priority int

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 25
	PriorityNormal  Priority = 50
	PriorityLow     Priority = 75
	PriorityLowest  Priority = 100
)

// Registration is one hook bound to an event at a priority.
type Registration struct {
	ID       string
	Event    EventType
	Hook     Hook
	Priority Priority
	Name     string
}
