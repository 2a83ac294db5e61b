package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	SpansReceived       *prometheus.CounterVec
	EvaluationsReceived *prometheus.CounterVec
	EvaluationsDropped  *prometheus.CounterVec
	ExportCache         *prometheus.CounterVec
}

// NewMetrics registers the collector's metrics on a fresh registry. numProjects backs the
// project gauge and is called on every scrape.
func NewMetrics(numProjects func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SpansReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_spans_received_total",
			Help: "Spans received over OTLP",
		}, []string{"project"}),
		EvaluationsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_evaluations_received_total",
			Help: "Evaluations received",
		}, []string{"project", "subject"}),
		EvaluationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_evaluations_dropped_total",
			Help: "Evaluations dropped for having no valid subject",
		}, []string{"project"}),
		ExportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_export_cache_operations_total",
			Help: "Evaluation export cache lookups",
		}, []string{"hit_miss"}),
	}
	m.registry.MustRegister(
		m.SpansReceived,
		m.EvaluationsReceived,
		m.EvaluationsDropped,
		m.ExportCache,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "beacon_projects",
			Help: "Projects known to the collector",
		}, func() float64 { return float64(numProjects()) }),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
