package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

// PipelineMetrics implements ports.PipelineMetrics on a private registry.
type PipelineMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	attempts        *prometheus.HistogramVec
	gateDeferrals   prometheus.Counter
	memoryDelta     prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "pdfdigest",
			Subsystem:   "pipeline",
			Name:        "document_process_total",
			Help:        "Total processed documents by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "pdfdigest",
			Subsystem:   "pipeline",
			Name:        "document_process_duration_seconds",
			Help:        "Document processing duration in seconds by status, memory-gate waits included.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "pdfdigest",
			Subsystem:   "pipeline",
			Name:        "document_process_in_flight",
			Help:        "Number of in-flight document processing tasks.",
			ConstLabels: constLabels,
		},
	)
	attempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "pdfdigest",
			Subsystem:   "pipeline",
			Name:        "document_attempts",
			Help:        "Attempts consumed per document by status.",
			Buckets:     []float64{1, 2, 3, 4, 5, 8, 13},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	gateDeferrals := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "pdfdigest",
			Subsystem:   "pipeline",
			Name:        "memory_gate_deferrals_total",
			Help:        "Attempts spent waiting for free memory.",
			ConstLabels: constLabels,
		},
	)
	memoryDelta := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "pdfdigest",
			Subsystem:   "pipeline",
			Name:        "document_memory_delta_bytes",
			Help:        "Change in used system memory across one document.",
			Buckets:     []float64{-64 << 20, -16 << 20, -1 << 20, 0, 1 << 20, 16 << 20, 64 << 20, 256 << 20},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, attempts, gateDeferrals, memoryDelta)

	return &PipelineMetrics{
		service:         service,
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		attempts:        attempts,
		gateDeferrals:   gateDeferrals,
		memoryDelta:     memoryDelta,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *PipelineMetrics) FinishDocument(outcome domain.ProcessingOutcome) {
	m.processInFlight.Dec()

	status := "success"
	if !outcome.Succeeded {
		status = "error"
	}

	m.processTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(outcome.Elapsed.Seconds())
	m.attempts.WithLabelValues(status).Observe(float64(outcome.Attempts))
	m.memoryDelta.Observe(float64(outcome.MemoryDelta))
}

func (m *PipelineMetrics) ObserveGateDeferral() {
	m.gateDeferrals.Inc()
}
