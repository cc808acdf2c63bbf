// Package metrics provides Prometheus instrumentation for streamkit components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for streamkit components.
type Registry struct {
	// Stream Metrics
	ChunksEnqueued     *prometheus.CounterVec
	ChunksDelivered    *prometheus.CounterVec
	StreamErrors       *prometheus.CounterVec
	BackpressureEvents *prometheus.CounterVec
	QueueCost          *prometheus.GaugeVec

	// Pipe Metrics
	PipesActive   prometheus.Gauge
	PipeShutdowns *prometheus.CounterVec
	PipeDuration  prometheus.Histogram
}

// DefaultRegistry is the default metrics registry used by streamkit components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		ChunksEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamkit",
				Subsystem: "streams",
				Name:      "chunks_enqueued_total",
				Help:      "Total number of chunks admitted to a stream queue",
			},
			[]string{"kind", "stream_name"},
		),

		ChunksDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamkit",
				Subsystem: "streams",
				Name:      "chunks_delivered_total",
				Help:      "Total number of chunks handed to a consumer or sink",
			},
			[]string{"kind", "stream_name"},
		),

		StreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamkit",
				Subsystem: "streams",
				Name:      "errors_total",
				Help:      "Total number of streams that transitioned to errored",
			},
			[]string{"kind", "stream_name"},
		),

		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamkit",
				Subsystem: "streams",
				Name:      "backpressure_events_total",
				Help:      "Total number of times buffered cost reached the high-water mark",
			},
			[]string{"kind", "stream_name"},
		),

		QueueCost: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streamkit",
				Subsystem: "streams",
				Name:      "queue_cost",
				Help:      "Current total cost of buffered chunks",
			},
			[]string{"kind", "stream_name"},
		),

		PipesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "streamkit",
				Subsystem: "pipe",
				Name:      "active",
				Help:      "Number of pipes currently moving chunks",
			},
		),

		PipeShutdowns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamkit",
				Subsystem: "pipe",
				Name:      "shutdowns_total",
				Help:      "Total number of pipe shutdowns by outcome",
			},
			[]string{"outcome"},
		),

		PipeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "streamkit",
				Subsystem: "pipe",
				Name:      "duration_seconds",
				Help:      "Time from pipe start to full shutdown",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}
