// Package swarmmetrics exposes Prometheus instrumentation for a swarm
// orchestration run: task/dispatch counters, subagent latency histograms,
// and run-level gauges, wired the way the teacher's observability package
// wires channel/LLM/tool metrics.
package swarmmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized set of Prometheus collectors for swarm runs.
//
// Usage:
//
//	m := swarmmetrics.New()
//	m.TaskCounter.WithLabelValues("worker", "completed").Inc()
//	m.SubagentDuration.WithLabelValues("worker").Observe(time.Since(start).Seconds())
type Metrics struct {
	// TaskCounter counts task terminal outcomes by role and status.
	// Labels: role (planner|worker|critic|aggregator), status (completed|failed|timeout|cancelled)
	TaskCounter *prometheus.CounterVec

	// TaskRetryCounter counts retry attempts by role.
	TaskRetryCounter *prometheus.CounterVec

	// SubagentDuration measures subagent run latency in seconds.
	// Labels: role
	SubagentDuration *prometheus.HistogramVec

	// SubagentSpawnCounter counts spawn admissions/refusals.
	// Labels: outcome (admitted|depth_refused|capacity_refused|hook_vetoed)
	SubagentSpawnCounter *prometheus.CounterVec

	// ActiveSubagents is a gauge of currently running subagents.
	ActiveSubagents prometheus.Gauge

	// SwarmDuration measures full swarm run latency in seconds.
	// Labels: outcome (completed|failed|cancelled)
	SwarmDuration *prometheus.HistogramVec

	// SwarmCounter counts swarm run terminal outcomes.
	// Labels: outcome
	SwarmCounter *prometheus.CounterVec

	// SwarmTokensUsed tracks token consumption per swarm run.
	SwarmTokensUsed prometheus.Counter

	// DecisionCounter counts swarm-vs-single-agent decisions.
	// Labels: decision (single_agent|swarm|ask_user)
	DecisionCounter *prometheus.CounterVec

	// CriticIterations counts critic review iterations per swarm run.
	CriticIterations prometheus.Histogram

	// DispatchQueueDepth is a gauge of queued+waiting_deps dispatcher tasks.
	DispatchQueueDepth prometheus.Gauge
}

// New creates and registers all swarm Prometheus metrics against the
// default registry. Call once at process startup.
func New() *Metrics {
	return &Metrics{
		TaskCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcore_tasks_total",
				Help: "Total number of tasks by role and terminal status",
			},
			[]string{"role", "status"},
		),

		TaskRetryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcore_task_retries_total",
				Help: "Total number of task retry attempts by role",
			},
			[]string{"role"},
		),

		SubagentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swarmcore_subagent_duration_seconds",
				Help:    "Duration of subagent runs in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"role"},
		),

		SubagentSpawnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcore_subagent_spawns_total",
				Help: "Total number of subagent spawn attempts by outcome",
			},
			[]string{"outcome"},
		),

		ActiveSubagents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarmcore_active_subagents",
				Help: "Current number of running subagents",
			},
		),

		SwarmDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swarmcore_swarm_duration_seconds",
				Help:    "Duration of full swarm runs in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"outcome"},
		),

		SwarmCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcore_swarm_runs_total",
				Help: "Total number of swarm runs by terminal outcome",
			},
			[]string{"outcome"},
		),

		SwarmTokensUsed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "swarmcore_tokens_used_total",
				Help: "Total number of LLM tokens consumed across all swarm runs",
			},
		),

		DecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swarmcore_decisions_total",
				Help: "Total number of swarm-vs-single-agent decisions by outcome",
			},
			[]string{"decision"},
		),

		CriticIterations: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "swarmcore_critic_iterations",
				Help:    "Number of critic review iterations per swarm run",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),

		DispatchQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "swarmcore_dispatch_queue_depth",
				Help: "Current number of queued or waiting-on-dependency dispatcher tasks",
			},
		),
	}
}
