// File: internal/metrics/metrics.go
// Brief: Prometheus collectors for the scan lifecycle and the live feed.

// Package metrics exposes leakwatch counters on a private Prometheus registry.
// Every method is safe to call on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/leakwatch/internal/model"
)

const namespace = "leakwatch"

// Scan outcomes.
const (
	OutcomeResults = "results"
	OutcomeError   = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	scansStarted    prometheus.Counter
	scansCompleted  *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	staleResults    prometheus.Counter
	feedEvents      *prometheus.CounterVec
	invalidEvents   prometheus.Counter
	duplicateEvents prometheus.Counter
	framesDrawn     prometheus.Counter
	webClients      prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_started_total",
			Help:      "Scan attempts started (page load or scan again).",
		}),
		scansCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_completed_total",
			Help:      "Scan attempts that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time from entering Scanning to rendering results or an error.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 20, 30, 60},
		}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Scan responses discarded because a newer scan superseded them.",
		}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Live events prepended to the feed, by severity.",
		}, []string{"severity"}),
		invalidEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_invalid_events_total",
			Help:      "Pushed messages that could not be decoded as live events.",
		}),
		duplicateEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_duplicate_events_total",
			Help:      "Redelivered live events dropped by the dedupe window.",
		}),
		framesDrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "animation_frames_total",
			Help:      "Flicker frames drawn while scanning.",
		}),
		webClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "web_clients",
			Help:      "Connected dashboard WebSocket clients.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scansStarted,
		m.scansCompleted,
		m.scanDuration,
		m.staleResults,
		m.feedEvents,
		m.invalidEvents,
		m.duplicateEvents,
		m.framesDrawn,
		m.webClients,
	)
	return m
}

// Registry returns the registry collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncScansStarted() {
	if m == nil {
		return
	}
	m.scansStarted.Inc()
}

// ObserveScan records a finished scan.
func (m *Metrics) ObserveScan(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scansCompleted.WithLabelValues(outcome).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncStaleResults() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}

func (m *Metrics) IncFeedEvent(sev model.Severity) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(sev.String()).Inc()
}

func (m *Metrics) IncInvalidEvents() {
	if m == nil {
		return
	}
	m.invalidEvents.Inc()
}

func (m *Metrics) IncDuplicateEvents() {
	if m == nil {
		return
	}
	m.duplicateEvents.Inc()
}

func (m *Metrics) IncFrames() {
	if m == nil {
		return
	}
	m.framesDrawn.Inc()
}

func (m *Metrics) SetWebClients(n int) {
	if m == nil {
		return
	}
	m.webClients.Set(float64(n))
}
