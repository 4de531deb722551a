// Package metrics exposes Prometheus collectors for the scan flow on a
// dedicated registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "foodiepass"

type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration prometheus.Histogram
	inFlight     prometheus.Gauge
	rejections   *prometheus.CounterVec
	policies     *prometheus.CounterVec
	surveys      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Finished scan calls by outcome.",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of finished scan calls.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 150},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scans_in_flight",
			Help:      "Scan calls currently outstanding.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rejections_total",
			Help:      "Uploads rejected before any network call, by reason.",
		}, []string{"reason"}),
		policies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_rendered_total",
			Help:      "Rendered scan results by experiment group and policy.",
		}, []string{"group", "policy"}),
		surveys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "survey_submissions_total",
			Help:      "Survey submission attempts by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.scans,
		m.scanDuration,
		m.inFlight,
		m.rejections,
		m.policies,
		m.surveys,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ScanStarted() {
	m.inFlight.Inc()
}

// ScanFinished records a finished call. outcome is a lifecycle status name.
func (m *Metrics) ScanFinished(outcome string, elapsed time.Duration) {
	m.inFlight.Dec()
	m.scans.WithLabelValues(outcome).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) UploadRejected(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ResultRendered(group, policy string) {
	m.policies.WithLabelValues(group, policy).Inc()
}

func (m *Metrics) SurveySubmitted(outcome string) {
	m.surveys.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
