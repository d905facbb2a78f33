package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the platform-level metrics shared by the multiplexer
// and the connection provider. Component-specific metrics are registered
// separately through the MetricsRegistrar interface.
type Metrics struct {
	// Dispatch pipeline
	MessagesEnqueued   prometheus.Counter
	MessagesDispatched prometheus.Counter
	MessagesDropped    prometheus.Counter
	ExtractionFailures prometheus.Counter
	QueueDepth         prometheus.Gauge

	// Subscription registry
	ActiveSubscriptions prometheus.Gauge
	ActiveListeners     prometheus.Gauge

	// Widget buffer store
	ActiveBuffers     prometheus.Gauge
	BufferedItems     prometheus.Gauge
	BufferMemoryBytes prometheus.Gauge

	// Transport
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "dispatch",
			Name:      "enqueued_total",
			Help:      "Total number of messages accepted into the dispatch queue",
		}),
		MessagesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "dispatch",
			Name:      "dispatched_total",
			Help:      "Total number of messages fanned out to listeners",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped by the queue overflow policy",
		}),
		ExtractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "dispatch",
			Name:      "extraction_failures_total",
			Help:      "Total number of per-listener value extraction failures",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Current number of messages waiting in the dispatch queue",
		}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "registry",
			Name:      "subscriptions",
			Help:      "Current number of distinct subject subscriptions",
		}),
		ActiveListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "registry",
			Name:      "listeners",
			Help:      "Current number of widget listeners across all subjects",
		}),
		ActiveBuffers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "buffers",
			Name:      "active",
			Help:      "Current number of widget buffers",
		}),
		BufferedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "buffers",
			Name:      "items",
			Help:      "Current total number of buffered samples across all widgets",
		}),
		BufferMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "buffers",
			Name:      "memory_bytes",
			Help:      "Approximate memory held by all widget buffers",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Subsystem: "nats",
			Name:      "connected",
			Help:      "Whether the NATS connection is established (1) or not (0)",
		}),
		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of NATS reconnections",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesEnqueued,
		m.MessagesDispatched,
		m.MessagesDropped,
		m.ExtractionFailures,
		m.QueueDepth,
		m.ActiveSubscriptions,
		m.ActiveListeners,
		m.ActiveBuffers,
		m.BufferedItems,
		m.BufferMemoryBytes,
		m.NATSConnected,
		m.NATSReconnects,
	}
}
