package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the avatar compositor.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	tokensIssuedTotal  prometheus.Counter
	tokenFailuresTotal prometheus.Counter
	sessionsStarted    prometheus.Counter
	activeSessions     prometheus.Gauge
	passesTotal        *prometheus.CounterVec
	passDuration       prometheus.Histogram
	framesIngested     prometheus.Counter
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avatar_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avatar_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	tokensIssuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avatar_tokens_issued_total",
		Help: "Total number of streaming session tokens handed to clients",
	})
	tokenFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avatar_token_failures_total",
		Help: "Total number of failed token exchanges with the vendor",
	})
	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avatar_sessions_started_total",
		Help: "Total number of avatar sessions started",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "avatar_active_sessions",
		Help: "Number of sessions that are not inactive",
	})
	passesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chromakey_passes_total",
		Help: "Chroma-key passes by result (composited or skipped)",
	}, []string{"result"})
	passDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chromakey_pass_duration_seconds",
		Help:    "Duration of chroma-key passes that composited a frame",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25},
	})
	framesIngested := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avatar_frames_ingested_total",
		Help: "Total number of frames received on ingest websockets",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		tokensIssuedTotal,
		tokenFailuresTotal,
		sessionsStarted,
		activeSessions,
		passesTotal,
		passDuration,
		framesIngested,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		errorsTotal:        errorsTotal,
		tokensIssuedTotal:  tokensIssuedTotal,
		tokenFailuresTotal: tokenFailuresTotal,
		sessionsStarted:    sessionsStarted,
		activeSessions:     activeSessions,
		passesTotal:        passesTotal,
		passDuration:       passDuration,
		framesIngested:     framesIngested,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncTokensIssued increments the issued token counter.
func (m *Metrics) IncTokensIssued() {
	m.tokensIssuedTotal.Inc()
}

// IncTokenFailures increments the failed token exchange counter.
func (m *Metrics) IncTokenFailures() {
	m.tokenFailuresTotal.Inc()
}

// IncSessionsStarted increments the started sessions counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStarted.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncFramesIngested increments the ingested frame counter.
func (m *Metrics) IncFramesIngested() {
	m.framesIngested.Inc()
}

// ObservePass records one chroma-key pass. Skipped passes are counted but
// not timed.
func (m *Metrics) ObservePass(composited bool, took time.Duration) {
	if !composited {
		m.passesTotal.WithLabelValues("skipped").Inc()
		return
	}
	m.passesTotal.WithLabelValues("composited").Inc()
	m.passDuration.Observe(took.Seconds())
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
