// Package metrics exposes Prometheus collectors for pipeline activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "redditpersona"

// Metrics owns a private registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	citations   *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
}

// New creates and registers the collectors, plus Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Duration of pipeline operations.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		citations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evidence",
				Name:      "citations_total",
				Help:      "Citations seen during merges, split by whether a source was found.",
			},
			[]string{"result"},
		),
		llmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "request_duration_seconds",
				Help:      "Latency of LLM generate calls.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"model", "status"},
		),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.citations, m.llmLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records one pipeline operation.
func (m *Metrics) ObserveRun(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(operation, outcome).Inc()
	m.runDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// AddCitations counts resolved and unresolved citations.
func (m *Metrics) AddCitations(resolved, unresolved int) {
	if m == nil {
		return
	}
	m.citations.WithLabelValues("resolved").Add(float64(resolved))
	m.citations.WithLabelValues("unresolved").Add(float64(unresolved))
}

// ObserveLLM records the latency of one generate call.
func (m *Metrics) ObserveLLM(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmLatency.WithLabelValues(model, status).Observe(d.Seconds())
}
