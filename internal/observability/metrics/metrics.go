// Package metrics centralizes the Prometheus collectors Conductor exposes
// on its /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector Conductor registers. Construct one with
// New and keep it for the life of the process; pass it down to the
// packages that take it (fanout, the tool-server router, and the HTTP
// gateway that serves it). Fanout records FanoutDropped and the router
// records ToolInvocations; no package updates AgentsActive,
// PermissionDecisions or SessionTurnDuration.
type Metrics struct {
	Registry *prometheus.Registry

	// AgentsActive tracks the number of currently live agents.
	AgentsActive *prometheus.GaugeVec

	// ToolInvocations counts tool invocations by tool name and result
	// (ok|error).
	ToolInvocations *prometheus.CounterVec

	// PermissionDecisions counts permission engine verdicts by decision
	// (allow|deny|ask).
	PermissionDecisions *prometheus.CounterVec

	// FanoutDropped counts events dropped for a slow subscriber.
	FanoutDropped *prometheus.CounterVec

	// SessionTurnDuration measures wall-clock time per agent turn.
	SessionTurnDuration *prometheus.HistogramVec
}

// New creates and registers all collectors against a fresh registry. Each
// call returns an independent registry, so tests may construct as many
// instances as needed without collisions.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		AgentsActive: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "conductor_agents_active",
				Help: "Number of currently live agents by type.",
			},
			[]string{"agent_type"},
		),

		ToolInvocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_tool_invocations_total",
				Help: "Total tool invocations by tool name and result.",
			},
			[]string{"tool", "result"},
		),

		PermissionDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_permission_decisions_total",
				Help: "Total permission engine decisions by verdict.",
			},
			[]string{"decision"},
		),

		FanoutDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_fanout_dropped_total",
				Help: "Total events dropped for a slow fanout subscriber.",
			},
			[]string{"subscriber"},
		),

		SessionTurnDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_session_turn_duration_seconds",
				Help:    "Duration of one agent turn in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"agent_type"},
		),
	}
}
