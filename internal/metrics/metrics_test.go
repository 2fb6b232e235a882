package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTurn(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveTurn(OutcomeOK, time.Second)
	m.ObserveTurn(OutcomeNoInfo, time.Millisecond)
	m.ObserveTurn(OutcomeNoInfo, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatTurns.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatTurns.WithLabelValues(OutcomeNoInfo)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retrievalMisses))
}

func TestStreamGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	done := m.StreamOpened(StreamChat)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.openStreams.WithLabelValues(StreamChat)))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.openStreams.WithLabelValues(StreamChat)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTurn(OutcomeError, time.Second)
	m.ObserveIngestion("failed", time.Second)
	m.ObserveHTTP("GET", "/healthz", "200", time.Millisecond, false)
	m.StreamOpened(StreamProgress)()
}

func TestIngestionAndHTTPRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveIngestion("completed", 3*time.Second)
	m.ObserveHTTP("POST", "/api/v1/documents", "202", time.Millisecond, false)

	assert.Equal(t, 1, testutil.CollectAndCount(m.ingestionJobs))
	assert.Equal(t, 1, testutil.CollectAndCount(m.httpRequests))
}
