// Package subagentmgr owns subagent lifecycle: admission against depth and
// concurrency limits, pre/post lifecycle hooks, tool-set narrowing, timeout
// racing against a Runner, and guaranteed cleanup.
package subagentmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/swarmcore/swarmcore/internal/hooks"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
	"github.com/swarmcore/swarmcore/internal/toolpolicy"
)

// SpawnConfig is one request to run a subagent to completion.
type SpawnConfig struct {
	Task               string
	Tools              []string
	ForbiddenTools     []string
	ParentAllowedTools []string // nil = unrestricted; non-nil narrows the child's effective set
	MaxTurns           int
	Cwd                string
	SessionID          string
	Depth              int
	TimeoutMs          int64
	OnChunk            func(text string)
}

// Config tunes a Manager's admission limits and defaults.
type Config struct {
	MaxDepth          int
	MaxConcurrent     int
	DefaultTimeoutMs  int64
	HardMaxTurns      int
	SpawnCapableTools []string // subtracted from a subagent's tools one level short of MaxDepth
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.DefaultTimeoutMs <= 0 {
		c.DefaultTimeoutMs = 10 * 60 * 1000
	}
	if c.HardMaxTurns <= 0 {
		c.HardMaxTurns = 50
	}
	return c
}

type activeRecord struct {
	id        string
	status    string
	startedAt time.Time
	runner    swarmtypes.Runner
	cancel    func()
}

// Manager is the Subagent Manager. Safe for concurrent use.
type Manager struct {
	cfg      Config
	factory  swarmtypes.RunnerFactory
	resolver *toolpolicy.Resolver
	chain    *hooks.Chain
	logger   *slog.Logger

	mu          sync.RWMutex
	active      map[string]*activeRecord
	jobs        map[string]*jobRecord
	activeCount int64
}

// New constructs a Manager. chain may be nil (no hooks fired).
func New(cfg Config, factory swarmtypes.RunnerFactory, resolver *toolpolicy.Resolver, chain *hooks.Chain, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = toolpolicy.NewResolver()
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		factory:  factory,
		resolver: resolver,
		chain:    chain,
		logger:   logger.With("component", "subagentmgr"),
		active:   make(map[string]*activeRecord),
		jobs:     make(map[string]*jobRecord),
	}
}

// ActiveCount reports the number of subagents currently running.
func (m *Manager) ActiveCount() int {
	return int(atomic.LoadInt64(&m.activeCount))
}

// Spawn runs one subagent to completion and returns its result. Admission
// refusal (depth or concurrency limit) is a normal, non-error return with
// Success=false; the manager never panics and never returns a Go error from
// Spawn itself — runner failures are themselves folded into the result.
func (m *Manager) Spawn(ctx context.Context, cfg SpawnConfig) *swarmtypes.SubResult {
	subID := uuid.New().String()

	if cfg.Depth >= m.cfg.MaxDepth {
		return &swarmtypes.SubResult{SubID: subID, Success: false, Error: "max depth"}
	}
	if atomic.LoadInt64(&m.activeCount) >= int64(m.cfg.MaxConcurrent) {
		return &swarmtypes.SubResult{SubID: subID, Success: false, Error: fmt.Sprintf("max active sub-agents reached (%d)", m.cfg.MaxConcurrent)}
	}

	input := &hooks.Input{
		Event:        hooks.SubagentStart,
		SessionID:    cfg.SessionID,
		Cwd:          cfg.Cwd,
		SubagentID:   subID,
		Task:         cfg.Task,
		AllowedTools: cfg.Tools,
		MaxTurns:     cfg.MaxTurns,
		Depth:        cfg.Depth,
	}
	if m.chain != nil {
		out, err := m.chain.Fire(ctx, input)
		if err != nil {
			m.logger.Warn("SubagentStart hook error", "subagent_id", subID, "error", err)
		}
		if out != nil {
			if !out.Continue {
				return &swarmtypes.SubResult{SubID: subID, Success: false, Error: "blocked by hook: " + out.StopReason}
			}
			if out.UpdatedInput != nil && out.UpdatedInput.AllowedTools != nil {
				cfg.Tools = out.UpdatedInput.AllowedTools
			}
			if out.AdditionalContext != "" {
				cfg.Task += "\n\n" + out.AdditionalContext
			}
		}
	}

	nearMaxDepth := cfg.Depth >= m.cfg.MaxDepth-1
	effectiveTools := m.resolver.Resolve(cfg.Tools, cfg.ForbiddenTools, nearMaxDepth, m.cfg.SpawnCapableTools, cfg.ParentAllowedTools)

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 || maxTurns > m.cfg.HardMaxTurns {
		maxTurns = m.cfg.HardMaxTurns
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = m.cfg.DefaultTimeoutMs
	}

	runnerCfg := swarmtypes.RunnerConfig{
		Task:      cfg.Task,
		Tools:     effectiveTools,
		MaxTurns:  maxTurns,
		Cwd:       cfg.Cwd,
		SessionID: cfg.SessionID,
		Depth:     cfg.Depth + 1,
		OnChunk:   cfg.OnChunk,
	}
	runner, err := m.factory.Create(ctx, runnerCfg)
	if err != nil {
		return &swarmtypes.SubResult{SubID: subID, Success: false, Error: fmt.Sprintf("runner creation failed: %v", err)}
	}

	atomic.AddInt64(&m.activeCount, 1)
	runCtx, cancel := context.WithCancel(ctx)
	rec := &activeRecord{id: subID, status: "running", startedAt: time.Now(), runner: runner, cancel: cancel}
	m.mu.Lock()
	m.active[subID] = rec
	m.mu.Unlock()

	defer func() {
		cancel()
		atomic.AddInt64(&m.activeCount, -1)
		m.mu.Lock()
		delete(m.active, subID)
		m.mu.Unlock()
	}()

	result := m.race(runCtx, runner, time.Duration(timeoutMs)*time.Millisecond)
	result.SubID = subID

	stopInput := &hooks.Input{
		Event:      hooks.SubagentStop,
		SessionID:  cfg.SessionID,
		SubagentID: subID,
		Task:       cfg.Task,
		Depth:      cfg.Depth,
		Status:     terminalStatus(result),
		Result:     result.Result,
		Error:      result.Error,
		Duration:   time.Since(rec.startedAt),
	}
	if m.chain != nil {
		out, hookErr := m.chain.Fire(ctx, stopInput)
		if hookErr != nil {
			m.logger.Warn("SubagentStop hook error", "subagent_id", subID, "error", hookErr)
		}
		if out != nil {
			if !out.Continue {
				return &swarmtypes.SubResult{SubID: subID, Success: false, Error: "blocked by hook: " + out.StopReason}
			}
			if out.UpdatedInput != nil && out.UpdatedInput.Result != "" {
				result.Result = out.UpdatedInput.Result
			}
		}
	}

	return result
}

func terminalStatus(r *swarmtypes.SubResult) string {
	if r.Success {
		return "completed"
	}
	return "failed"
}

// race runs runner.Run against a timer of the given length and returns
// whichever settles first. On timeout it calls runner.Stop and returns a
// canonical timeout SubResult.
func (m *Manager) race(ctx context.Context, runner swarmtypes.Runner, timeout time.Duration) *swarmtypes.SubResult {
	type outcome struct {
		result swarmtypes.SubResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := runner.Run(ctx)
		done <- outcome{result: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			return &swarmtypes.SubResult{Success: false, Error: o.err.Error()}
		}
		return &o.result
	case <-timer.C:
		runner.Stop()
		return &swarmtypes.SubResult{Success: false, Error: fmt.Sprintf("timed out after %s", timeout)}
	}
}

// StopSubagent cancels a running subagent by id. Idempotent: stopping an
// unknown or already-stopped id is a no-op.
func (m *Manager) StopSubagent(id string) {
	m.mu.RLock()
	rec, ok := m.active[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	rec.cancel()
	rec.runner.Stop()
}

// StopAll cancels every currently running subagent.
func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.StopSubagent(id)
	}
}
