// Package metrics provides application-level Prometheus collectors.
// Collectors register with the default registry and are served on /metrics
// by the API server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echobell_classifications_total",
			Help: "Total number of classifications by winning intent and source",
		},
		[]string{"intent", "source"},
	)

	RuleReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echobell_rule_reloads_total",
			Help: "Total number of rule reload attempts by result",
		},
		[]string{"result"},
	)

	InvalidRules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echobell_invalid_rules",
			Help: "Number of rule rows excluded from the active snapshot",
		},
	)

	ActivePatterns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echobell_active_patterns",
			Help: "Number of compiled pattern rules in the active snapshot",
		},
	)

	RulesetVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echobell_ruleset_version",
			Help: "Version of the active rule snapshot",
		},
	)

	VisionLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echobell_vision_lookups_total",
			Help: "Total number of vision label lookups by result",
		},
		[]string{"result"},
	)

	EventsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echobell_events_recorded_total",
			Help: "Total number of events recorded by type",
		},
		[]string{"type"},
	)

	StoreOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "echobell_store_op_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "success"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echobell_tool_calls_total",
			Help: "Total number of MCP tool calls",
		},
		[]string{"tool", "success"},
	)
)

// TimeOp starts timing a store operation. Call the returned func with the outcome.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		StoreOpSeconds.WithLabelValues(op, strconv.FormatBool(success)).Observe(time.Since(start).Seconds())
	}
}
