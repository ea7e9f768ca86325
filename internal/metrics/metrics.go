// Package metrics provides Prometheus metrics for the monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "wheasentry"
)

// Poll metrics
var (
	// PollsTotal counts poll ticks by result: ok, open_error, read_error, skipped, dropped.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of event log polls by result",
		},
		[]string{"result"},
	)

	// RecordsReadTotal counts records returned by the event source.
	RecordsReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Total event log records read",
		},
	)

	// RecordsMatchedTotal counts in-window WHEA records.
	RecordsMatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_matched_total",
			Help:      "Total in-window WHEA records seen across polls",
		},
	)

	// RecordsMalformedTotal counts records skipped for an unusable timestamp or layout.
	RecordsMalformedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_malformed_total",
			Help:      "Total malformed event log records skipped",
		},
	)

	// LastMatchCount mirrors the alert state machine.
	LastMatchCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_match_count",
			Help:      "Match count remembered by the alert state machine",
		},
	)

	// MonitorRunning is 1 while monitoring is active.
	MonitorRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitor_running",
			Help:      "Whether monitoring is currently running",
		},
	)
)

// Reaction metrics
var (
	// AlertsFiredTotal counts edge-triggered alerts.
	AlertsFiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Total WHEA alerts fired",
		},
	)

	// ActionsTotal counts reaction actions by action and result.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total reaction actions by action and result",
		},
		[]string{"action", "result"},
	)
)
