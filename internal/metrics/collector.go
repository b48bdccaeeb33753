// internal/metrics/collector.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launchpad_ledger"

// Instruction outcome labels.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
)

// Collector owns the engine's prometheus metrics. Each collector has its own
// registry so several executors (and tests) can coexist in one process.
type Collector struct {
	registry      *prometheus.Registry
	instructions  *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lanes         prometheus.Gauge
	conflicts     prometheus.Gauge
	events        *prometheus.CounterVec
}

// NewCollector creates and registers the engine metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instructions_total",
				Help:      "Total number of instructions executed",
			},
			[]string{"opcode", "status"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Batch execution duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		lanes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_lanes",
				Help:      "Number of independent lanes in the last batch",
			},
		),
		conflicts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_conflicts",
				Help:      "Number of conflict edges in the last batch",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of events appended to the log",
			},
			[]string{"type"},
		),
	}

	c.registry.MustRegister(c.instructions, c.batchDuration, c.lanes, c.conflicts, c.events)
	return c
}

// Registry exposes the collector's registry, e.g. for a /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordInstruction counts one executed instruction.
func (c *Collector) RecordInstruction(opcode string, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusRejected
	}
	c.instructions.WithLabelValues(opcode, status).Inc()
}

// RecordBatch records the shape and duration of one batch.
func (c *Collector) RecordBatch(duration time.Duration, lanes, conflicts int) {
	c.batchDuration.Observe(duration.Seconds())
	c.lanes.Set(float64(lanes))
	c.conflicts.Set(float64(conflicts))
}

// RecordEvent counts one appended event.
func (c *Collector) RecordEvent(eventType string) {
	c.events.WithLabelValues(eventType).Inc()
}

// Reset clears all metric values.
func (c *Collector) Reset() {
	c.instructions.Reset()
	c.events.Reset()
	c.lanes.Set(0)
	c.conflicts.Set(0)
}
