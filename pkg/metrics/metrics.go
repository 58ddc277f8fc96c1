package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alloy_agent_runs_total",
			Help: "Research agent runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	AgentTurns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alloy_agent_turns_total",
			Help: "Plan-act-observe cycles executed by research agents",
		},
	)

	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alloy_tool_invocations_total",
			Help: "Research tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alloy_tool_duration_seconds",
			Help:    "Research tool execution duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tool"},
	)

	ExternalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alloy_external_calls_total",
			Help: "Calls to external services by service and status",
		},
		[]string{"service", "status"},
	)

	TasteCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alloy_taste_cache_total",
			Help: "Taste cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	ReportsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alloy_reports_saved_total",
			Help: "Reports persisted by status",
		},
		[]string{"status"},
	)
)
