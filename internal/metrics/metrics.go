// Package metrics exposes Prometheus counters for the scheduling loop and
// the transport correlation flow, scraped via /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector aggregates the platform's Prometheus metrics.
type Collector struct {
	cyclesFired         prometheus.Counter
	questionsDelivered  prometheus.Counter
	deliveryFailures    prometheus.Counter
	answersRegistered   prometheus.Counter
	unknownCorrelations prometheus.Counter
	cycleDuration       prometheus.Histogram
}

// NewCollector builds and registers the metric set on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cyclesFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_cycles_fired_total",
			Help: "Total number of dispatch cycles fired",
		}),
		questionsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_questions_delivered_total",
			Help: "Total number of questions acknowledged by the transport",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_delivery_failures_total",
			Help: "Total number of per-person delivery failures",
		}),
		answersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_answers_registered_total",
			Help: "Total number of answers registered from inbound responses",
		}),
		unknownCorrelations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_unknown_correlations_total",
			Help: "Total number of inbound responses with an unknown correlation token",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_cycle_duration_seconds",
			Help:    "Dispatch cycle body duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.cyclesFired,
		c.questionsDelivered,
		c.deliveryFailures,
		c.answersRegistered,
		c.unknownCorrelations,
		c.cycleDuration,
	)
	return c
}

func (c *Collector) RecordCycle(d time.Duration) {
	if c == nil {
		return
	}
	c.cyclesFired.Inc()
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collector) RecordDelivered() {
	if c == nil {
		return
	}
	c.questionsDelivered.Inc()
}

func (c *Collector) RecordDeliveryFailure() {
	if c == nil {
		return
	}
	c.deliveryFailures.Inc()
}

func (c *Collector) RecordAnswerRegistered() {
	if c == nil {
		return
	}
	c.answersRegistered.Inc()
}

func (c *Collector) RecordUnknownCorrelation() {
	if c == nil {
		return
	}
	c.unknownCorrelations.Inc()
}
