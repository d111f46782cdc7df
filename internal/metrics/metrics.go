// Package metrics provides Prometheus instrumentation for the clarity engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors on a private registry.
// A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	inputs                   *prometheus.CounterVec
	levelUps                 *prometheus.CounterVec
	negativeFeedback         prometheus.Counter
	recalibrationRecommended prometheus.Counter
	conflicts                prometheus.Counter
	memoryStores             *prometheus.CounterVec
	memoryQueries            prometheus.Counter
	embedDuration            prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}
	m.initEngineMetrics()
	m.initHTTPMetrics()
	return m
}

func (m *Metrics) initEngineMetrics() {
	m.inputs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarity_inputs_total",
			Help: "Total number of ledger inputs applied by category",
		},
		[]string{"category"},
	)
	m.levelUps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarity_level_ups_total",
			Help: "Total number of level transitions by reached level",
		},
		[]string{"level"},
	)
	m.negativeFeedback = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clarity_negative_feedback_total",
		Help: "Total number of negative feedback events",
	})
	m.recalibrationRecommended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clarity_recalibration_recommended_total",
		Help: "Total number of times a profile crossed the recalibration threshold",
	})
	m.conflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clarity_conflicts_total",
		Help: "Total number of optimistic concurrency conflicts",
	})
	m.memoryStores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarity_memory_stores_total",
			Help: "Total number of memory store calls by source and result",
		},
		[]string{"source", "result"},
	)
	m.memoryQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clarity_memory_queries_total",
		Help: "Total number of memory similarity queries",
	})
	m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clarity_embedding_duration_seconds",
		Help:    "Embedding provider call duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	m.registry.MustRegister(
		m.inputs,
		m.levelUps,
		m.negativeFeedback,
		m.recalibrationRecommended,
		m.conflicts,
		m.memoryStores,
		m.memoryQueries,
		m.embedDuration,
	)
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordInput counts an applied ledger category.
func (m *Metrics) RecordInput(category string) {
	if m == nil {
		return
	}
	m.inputs.WithLabelValues(category).Inc()
}

// RecordLevelUps counts each reached level.
func (m *Metrics) RecordLevelUps(levels []int) {
	if m == nil {
		return
	}
	for _, level := range levels {
		m.levelUps.WithLabelValues(strconv.Itoa(level)).Inc()
	}
}

// RecordNegativeFeedback counts a decay event and, when it flips the advisory flag, the recommendation.
func (m *Metrics) RecordNegativeFeedback(recommendedNow bool) {
	if m == nil {
		return
	}
	m.negativeFeedback.Inc()
	if recommendedNow {
		m.recalibrationRecommended.Inc()
	}
}

// RecordConflict counts a lost optimistic write.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecordMemoryStore counts a store call. result is one of "created", "existing" or "error".
func (m *Metrics) RecordMemoryStore(source, result string) {
	if m == nil {
		return
	}
	m.memoryStores.WithLabelValues(source, result).Inc()
}

// RecordMemoryQuery counts a similarity query.
func (m *Metrics) RecordMemoryQuery() {
	if m == nil {
		return
	}
	m.memoryQueries.Inc()
}

// ObserveEmbedding records how long an embedding call took.
func (m *Metrics) ObserveEmbedding(d time.Duration) {
	if m == nil {
		return
	}
	m.embedDuration.Observe(d.Seconds())
}
