package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	settlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_settlements_total",
			Help: "Submissions moved to a terminal status",
		},
		[]string{"status", "source"},
	)
	settlementConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_settlement_conflicts_total",
			Help: "Settle calls that found the submission already settled",
		},
		[]string{"source"},
	)
	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Background sweep runs by result",
		},
		[]string{"sweep", "result"},
	)
	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of background sweep runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)
	sweepUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_units_total",
			Help: "Units of work handled by background sweeps",
		},
		[]string{"sweep", "outcome"},
	)
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_redemptions_total",
			Help: "Reward entries by the status they reached",
		},
		[]string{"status"},
	)

	chatQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_queries_total",
			Help: "Assistant queries by classified type",
		},
		[]string{"type"},
	)
)

// RegisterMetrics registers the domain metrics. Call once from main.
func RegisterMetrics() {
	prometheus.MustRegister(
		settlementsTotal,
		settlementConflicts,
		sweepRuns,
		sweepDuration,
		sweepUnits,
		redemptionsTotal,
		chatQueriesTotal,
	)
}
