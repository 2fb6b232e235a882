package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tenantrag"

// Turn outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeNoInfo = "no_info"
	OutcomeError  = "error"
)

// Stream kinds for OpenStreams.
const (
	StreamChat     = "chat"
	StreamProgress = "progress"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	chatTurns         *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	retrievalMisses   prometheus.Counter
	ingestionJobs     *prometheus.CounterVec
	ingestionDuration *prometheus.HistogramVec
	openStreams       *prometheus.GaugeVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers every metric on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		chatTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Conversation turns processed, partitioned by outcome.",
		}, []string{"outcome"}),

		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Time from turn start to the final chunk.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		retrievalMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "misses_total",
			Help:      "Turns answered with the no-information message without calling the model.",
		}),

		ingestionJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "jobs_total",
			Help:      "Document jobs finished, partitioned by final status.",
		}, []string{"status"}),

		ingestionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of document jobs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),

		openStreams: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "open_streams",
			Help:      "SSE streams currently open, by kind.",
		}, []string{"kind"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, partitioned by method, route and status code.",
		}, []string{"method", "route", "code"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of non-streaming HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ObserveTurn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(outcome).Inc()
	m.turnDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome == OutcomeNoInfo {
		m.retrievalMisses.Inc()
	}
}

func (m *Metrics) ObserveIngestion(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestionJobs.WithLabelValues(status).Inc()
	m.ingestionDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// StreamOpened increments the open stream gauge and returns the matching
// decrement.
func (m *Metrics) StreamOpened(kind string) func() {
	if m == nil {
		return func() {}
	}
	g := m.openStreams.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}

func (m *Metrics) ObserveHTTP(method, route, code string, elapsed time.Duration, streaming bool) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	if !streaming {
		m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	}
}
