// Package observability provides metric instruments and OpenTelemetry
// tracing for rqcbridge deliveries and drain cycles.
package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for rqcbridge, backed by any go-utils
// MetricFactory.
type Metrics struct {
	DeliveriesTotal   gu.Counter
	DeliveryLatency   gu.Histogram
	QueueDepth        gu.Gauge
	DrainCyclesTotal  gu.Counter
	BreakerTripsTotal gu.Counter
}

// NewMetrics creates rqcbridge metric instruments using the supplied factory.
// Use metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		DeliveriesTotal:   factory.Counter("rqcbridge_deliveries_total"),
		DeliveryLatency:   factory.Histogram("rqcbridge_delivery_latency_seconds"),
		QueueDepth:        factory.Gauge("rqcbridge_queue_depth"),
		DrainCyclesTotal:  factory.Counter("rqcbridge_drain_cycles_total"),
		BreakerTripsTotal: factory.Counter("rqcbridge_breaker_trips_total"),
	}
}

// RecordDelivery records a delivery attempt with its classified outcome and
// latency.
func (m *Metrics) RecordDelivery(outcome string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordDrainCycle records one completed drain cycle.
func (m *Metrics) RecordDrainCycle() {
	m.DrainCyclesTotal.Inc()
}

// RecordBreakerTrip records a circuit-breaker abort of a drain cycle.
func (m *Metrics) RecordBreakerTrip() {
	m.BreakerTripsTotal.Inc()
}
