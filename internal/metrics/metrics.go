// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus counters and gauges for the
// compile/reconcile cycle, served by internal/ctlapi's /metrics
// endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvefw_cycles_total",
			Help: "Number of reconciliation cycles run, by outcome.",
		},
		[]string{"outcome"})

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pvefw_cycle_duration_seconds",
			Help: "Wall-clock duration of a full parse/compile/diff/apply/verify cycle.",
		})

	ChainsManaged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pvefw_chains_managed",
			Help: "Number of chains in the most recent cycle's diff: every compiled chain plus any managed chain scheduled for deletion.",
		})

	ChainActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvefw_chain_actions_total",
			Help: "Chain diff actions taken, by action (create, update, exists, delete).",
		},
		[]string{"action"})

	ParseWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvefw_parse_warnings_total",
			Help: "Recoverable per-line parse warnings, by source file.",
		},
		[]string{"file"})

	LockWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pvefw_lock_wait_seconds",
			Help: "Time spent waiting to acquire the advisory apply lock.",
		})
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleDuration,
		ChainsManaged,
		ChainActions,
		ParseWarnings,
		LockWaitSeconds,
	)
}
