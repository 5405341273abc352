package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Chain holds registrations per event and fires them as an ordered,
// veto-capable pipeline rather than the fan-out-to-everyone model a plain
// pub/sub bus would use: a SubagentStart/SubagentStop hook point needs at
// most one hook to be able to stop the chain, so Fire short-circuits on the
// first Continue=false instead of running every handler unconditionally.
type Chain struct {
	mu      sync.RWMutex
	byEvent map[EventType][]*Registration
	byID    map[string]*Registration
	logger  *slog.Logger
}

// NewChain creates an empty hook chain.
func NewChain(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		byEvent: make(map[EventType][]*Registration),
		byID:    make(map[string]*Registration),
		logger:  logger.With("component", "hooks"),
	}
}

// RegisterOption configures a Registration.
type RegisterOption func(*Registration)

func WithPriority(p Priority) RegisterOption { return func(r *Registration) { r.Priority = p } }
func WithName(name string) RegisterOption    { return func(r *Registration) { r.Name = name } }

// Register adds hook for event and returns an id usable with Unregister.
func (c *Chain) Register(event EventType, hook Hook, opts ...RegisterOption) string {
	reg := &Registration{
		ID:       uuid.New().String(),
		Event:    event,
		Hook:     hook,
		Priority: PriorityNormal,
	}
	for _, opt := range opts {
		opt(reg)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byEvent[event] = append(c.byEvent[event], reg)
	c.byID[reg.ID] = reg
	sort.SliceStable(c.byEvent[event], func(i, j int) bool {
		return c.byEvent[event][i].Priority < c.byEvent[event][j].Priority
	})

	c.logger.Debug("registered hook", "id", reg.ID, "event", event, "name", reg.Name, "priority", reg.Priority)
	return reg.ID
}

// Unregister removes a hook by id. Reports whether it was present.
func (c *Chain) Unregister(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	handlers := c.byEvent[reg.Event]
	for i, h := range handlers {
		if h.ID == id {
			c.byEvent[reg.Event] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return true
}

// Fire runs every hook registered for input.Event in priority order. Each
// hook sees the input as mutated by the prior hook's UpdatedInput. The
// chain stops at the first hook that returns Continue=false; otherwise the
// final Output carries Continue=true, the last UpdatedInput seen (if any),
// and the concatenation of every hook's AdditionalContext. A hook that
// panics is treated as a non-vetoing error and does not stop the chain.
func (c *Chain) Fire(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("hooks: nil input")
	}

	c.mu.RLock()
	regs := append([]*Registration(nil), c.byEvent[input.Event]...)
	c.mu.RUnlock()

	result := &Output{Continue: true}
	cur := *input
	var firstErr error

	for _, reg := range regs {
		out, err := c.callHook(ctx, reg, &cur)
		if err != nil {
			c.logger.Warn("hook error", "event", input.Event, "hook_id", reg.ID, "hook_name", reg.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if out == nil {
			continue
		}
		if out.AdditionalContext != "" {
			if result.AdditionalContext != "" {
				result.AdditionalContext += "\n"
			}
			result.AdditionalContext += out.AdditionalContext
		}
		if out.UpdatedInput != nil {
			result.UpdatedInput = out.UpdatedInput
			if out.UpdatedInput.AllowedTools != nil {
				cur.AllowedTools = out.UpdatedInput.AllowedTools
			}
			if out.UpdatedInput.Result != "" {
				cur.Result = out.UpdatedInput.Result
			}
		}
		if !out.Continue {
			result.Continue = false
			result.StopReason = out.StopReason
			return result, firstErr
		}
	}

	return result, firstErr
}

func (c *Chain) callHook(ctx context.Context, reg *Registration, input *Input) (out *Output, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panic: %v", p)
		}
	}()
	return reg.Hook.Fire(ctx, input)
}

// Len reports how many hooks are registered for event.
func (c *Chain) Len(event EventType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byEvent[event])
}
