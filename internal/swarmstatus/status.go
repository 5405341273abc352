// Package swarmstatus maintains a read-optimized, mutex-guarded view over a
// running swarm for progress reporting: display copies of tasks/agents, a
// per-task log ring buffer, and best-effort update listeners.
package swarmstatus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// Event is emitted to listeners on every display-state transition.
type Event struct {
	Type string // "task_update"
	Task *swarmtypes.Task
}

// Listener receives status events. A panicking listener is caught and
// dropped for that call only; it does not stop the provider.
type Listener func(Event)

// logEntry is one ring-buffer line for a task.
type logEntry struct {
	At   time.Time
	Line string
}

// Provider tracks display state for one swarm run.
type Provider struct {
	mu             sync.RWMutex
	tasks          map[string]*swarmtypes.Task
	order          []string
	logs           map[string][]logEntry
	logCap         int
	completedDurs  []time.Duration
	listeners      []Listener
	spinnerFrames  []string
	spinnerCounter int
}

// Config tunes the Provider.
type Config struct {
	LogCapacity int // max ring-buffer entries per task; default 100
}

func (c Config) withDefaults() Config {
	if c.LogCapacity <= 0 {
		c.LogCapacity = 100
	}
	return c
}

// New constructs an empty Provider.
func New(cfg Config) *Provider {
	cfg = cfg.withDefaults()
	return &Provider{
		tasks:         make(map[string]*swarmtypes.Task),
		logs:          make(map[string][]logEntry),
		logCap:        cfg.LogCapacity,
		spinnerFrames: []string{"|", "/", "-", "\\"},
	}
}

// OnUpdate registers a best-effort listener.
func (p *Provider) OnUpdate(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// UpdateTask overwrites display state for t. If t transitions into
// completed, its duration (if StartedAt/CompletedAt are both set) is
// recorded for ETA estimation. A task_update event is emitted afterward.
func (p *Provider) UpdateTask(t *swarmtypes.Task) {
	if t == nil {
		return
	}
	p.mu.Lock()
	prev, existed := p.tasks[t.ID]
	if !existed {
		p.order = append(p.order, t.ID)
	}
	clone := t.Clone()
	p.tasks[t.ID] = clone

	transitionedToCompleted := clone.Status == swarmtypes.StatusCompleted && (!existed || prev.Status != swarmtypes.StatusCompleted)
	if transitionedToCompleted && clone.StartedAt != nil && clone.CompletedAt != nil {
		p.completedDurs = append(p.completedDurs, clone.CompletedAt.Sub(*clone.StartedAt))
	}
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	p.notify(listeners, Event{Type: "task_update", Task: clone})
}

func (p *Provider) notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		p.safeCall(l, ev)
	}
}

func (p *Provider) safeCall(l Listener, ev Event) {
	defer func() { recover() }()
	l(ev)
}

// AppendLog appends a line to taskID's ring buffer, evicting the oldest
// entry once the buffer is at capacity.
func (p *Provider) AppendLog(taskID, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := p.logs[taskID]
	buf = append(buf, logEntry{At: time.Now(), Line: line})
	if len(buf) > p.logCap {
		buf = buf[len(buf)-p.logCap:]
	}
	p.logs[taskID] = buf
}

// Logs returns a copy of taskID's ring buffer lines, oldest first.
func (p *Provider) Logs(taskID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	buf := p.logs[taskID]
	out := make([]string, len(buf))
	for i, e := range buf {
		out[i] = e.Line
	}
	return out
}

// Tasks returns clones of every tracked task in insertion order.
func (p *Provider) Tasks() []*swarmtypes.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*swarmtypes.Task, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.tasks[id].Clone())
	}
	return out
}

// GetProgress returns round(completed/total*100), or 0 if there are no tasks.
func (p *Provider) GetProgress() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range p.tasks {
		if t.Status == swarmtypes.StatusCompleted {
			completed++
		}
	}
	return int(float64(completed) / float64(len(p.tasks)) * 100.0 + 0.5)
}

// EstimateRemaining returns the estimated remaining duration based on the
// average of recorded completion durations, or (0, false) if fewer than two
// completions have been recorded.
func (p *Provider) EstimateRemaining() (time.Duration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.completedDurs) < 2 {
		return 0, false
	}
	var sum time.Duration
	for _, d := range p.completedDurs {
		sum += d
	}
	avg := sum / time.Duration(len(p.completedDurs))

	remaining := 0
	for _, t := range p.tasks {
		if !t.Status.Terminal() {
			remaining++
		}
	}
	return avg * time.Duration(remaining), true
}

// FormatStyle selects FormatProgress's rendering.
type FormatStyle string

const (
	FormatBar      FormatStyle = "bar"
	FormatPercent  FormatStyle = "percent"
	FormatFraction FormatStyle = "fraction"
	FormatSpinner  FormatStyle = "spinner"
)

// FormatProgress renders the current progress in the given style. Every
// style but FormatSpinner is pure; FormatSpinner advances an internal frame
// counter on each call (time-based in spirit, deterministic per-call order).
func (p *Provider) FormatProgress(style FormatStyle) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := len(p.tasks)
	completed := 0
	for _, t := range p.tasks {
		if t.Status == swarmtypes.StatusCompleted {
			completed++
		}
	}
	pct := 0
	if total > 0 {
		pct = int(float64(completed) / float64(total) * 100.0 + 0.5)
	}

	switch style {
	case FormatFraction:
		return fmt.Sprintf("%d/%d", completed, total)
	case FormatSpinner:
		frame := p.spinnerFrames[p.spinnerCounter%len(p.spinnerFrames)]
		p.spinnerCounter++
		return frame
	case FormatBar:
		const width = 20
		filled := width * pct / 100
		return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", width-filled) + fmt.Sprintf("] %d%%", pct)
	default: // FormatPercent
		return fmt.Sprintf("%d%%", pct)
	}
}
