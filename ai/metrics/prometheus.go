// Package metrics provides Prometheus metrics export for chat exchanges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "studychat"

	kindText  = "text"
	kindFiles = "files"
)

// PrometheusExporter exports exchange metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	exchangeRequests  *prometheus.CounterVec
	exchangeLatency   *prometheus.HistogramVec
	completionLatency *prometheus.HistogramVec

	attachmentsRejected *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	e := &PrometheusExporter{registry: registry}

	e.exchangeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "requests_total",
			Help:      "Total number of exchanges by outcome; status is success or the failing step",
		},
		[]string{"kind", "status"},
	)

	e.exchangeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "latency_seconds",
			Help:      "Exchange latency in seconds, from encoding to the last persisted turn",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"kind"},
	)

	e.completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Completion endpoint latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"kind"},
	)

	e.attachmentsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attachment",
			Name:      "rejected_total",
			Help:      "Total number of attachments rejected by validation",
		},
		[]string{"reason"},
	)

	registry.MustRegister(
		e.exchangeRequests,
		e.exchangeLatency,
		e.completionLatency,
		e.attachmentsRejected,
	)

	return e
}

func kindOf(withFiles bool) string {
	if withFiles {
		return kindFiles
	}
	return kindText
}

// RecordExchange records a finished exchange. failedStep is empty on success.
func (e *PrometheusExporter) RecordExchange(withFiles bool, failedStep string, latency time.Duration) {
	status := "success"
	if failedStep != "" {
		status = failedStep
	}
	kind := kindOf(withFiles)
	e.exchangeRequests.WithLabelValues(kind, status).Inc()
	e.exchangeLatency.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordCompletion records the latency of one completion call.
func (e *PrometheusExporter) RecordCompletion(withFiles bool, latency time.Duration) {
	e.completionLatency.WithLabelValues(kindOf(withFiles)).Observe(latency.Seconds())
}

// RecordRejectedAttachment counts a file refused by validation.
func (e *PrometheusExporter) RecordRejectedAttachment(reason string) {
	e.attachmentsRejected.WithLabelValues(reason).Inc()
}

// RegisterGauge exposes a value sampled at scrape time, such as the number
// of open sessions or live preview handles.
func (e *PrometheusExporter) RegisterGauge(subsystem, name, help string, fn func() float64) {
	e.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
