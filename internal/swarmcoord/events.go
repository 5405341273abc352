package swarmcoord

import (
	"time"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// CoordinatorPhase names a point in a swarm run's lifecycle at which a
// CoordinatorEvent is emitted.
type CoordinatorPhase string

const (
	PhaseInit        CoordinatorPhase = "init"
	PhasePlanning    CoordinatorPhase = "planning"
	PhaseApproval    CoordinatorPhase = "approval"
	PhaseExecution   CoordinatorPhase = "execution"
	PhaseCritic      CoordinatorPhase = "critic"
	PhaseAggregation CoordinatorPhase = "aggregation"
	PhaseTerminated  CoordinatorPhase = "terminated"
)

// CoordinatorEvent is one entry in the running narrative a Coordinator emits
// as a run crosses phase boundaries, so a caller can render progress without
// polling the Status Provider.
type CoordinatorEvent struct {
	SwarmID    string           `json:"swarmId"`
	Phase      CoordinatorPhase `json:"phase"`
	Message    string           `json:"message"`
	OccurredAt time.Time        `json:"occurredAt"`
	Metrics    swarmtypes.SwarmMetrics `json:"metrics"`
}

// EventSink receives CoordinatorEvents as a run progresses. Implementations
// must not block; a slow sink stalls the run.
type EventSink func(CoordinatorEvent)

// emit is a no-op when sink is nil, so narrating a run costs nothing unless
// a caller asked for it.
func (c *Coordinator) emit(state *swarmtypes.SwarmState, phase CoordinatorPhase, message string) {
	if c.events == nil {
		return
	}
	c.events(CoordinatorEvent{
		SwarmID:    state.ID,
		Phase:      phase,
		Message:    message,
		OccurredAt: time.Now(),
		Metrics:    state.Metrics,
	})
}
