// Package metrics exposes prometheus collectors for coverage decisions and
// HTTP traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"locksmith-coverage/internal/coverage"
	"locksmith-coverage/internal/models"
)

type Metrics struct {
	readiness     *prometheus.CounterVec
	heatmapGroups *prometheus.CounterVec
	inference     *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors on registerer. A nil registerer uses the
// prometheus default registry.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Metrics{
		readiness: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keycov_readiness_total",
				Help: "Readiness assessments by resulting status",
			},
			[]string{"status"},
		),
		heatmapGroups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keycov_heatmap_groups_total",
				Help: "Heatmap groups projected by bucket",
			},
			[]string{"status"},
		),
		inference: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keycov_inference_total",
				Help: "Coverage inferences by the rule that decided them",
			},
			[]string{"rule"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keycov_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}
}

func (m *Metrics) ObserveReadiness(status models.ReadinessStatus) {
	if m == nil {
		return
	}
	m.readiness.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveHeatmap(h models.Heatmap) {
	if m == nil {
		return
	}
	for _, g := range h.Groups {
		m.heatmapGroups.WithLabelValues(string(g.Status)).Inc()
	}
}

func (m *Metrics) ObserveInference(rule coverage.Rule) {
	if m == nil {
		return
	}
	m.inference.WithLabelValues(string(rule)).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
