// ABOUTME: Prometheus collectors for message delivery, sessions, and presence
// ABOUTME: Uses a private registry exposed through promhttp; all methods are nil-safe

// Package metrics exposes gateway counters and gauges in Prometheus format.
// A nil *Metrics is valid and records nothing, so components can run without
// metrics enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ease"

// Message origins.
const (
	OriginUser = "user"
	OriginBot  = "bot"
)

// Inbound event outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
)

// Metrics holds the gateway's collectors.
type Metrics struct {
	registry *prometheus.Registry

	persisted      *prometheus.CounterVec
	delivered      prometheus.Counter
	queued         prometheus.Counter
	read           prometheus.Counter
	emitFailures   prometheus.Counter
	storeErrors    *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	inbound        *prometheus.CounterVec
}

// New creates the collectors on a private registry. onlineCount, when
// non-nil, backs the identities-online gauge.
func New(onlineCount func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages written to the store, by origin.",
		}, []string{"origin"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages marked Delivered.",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_queued_total",
			Help:      "Messages left in Sent because the recipient was offline.",
		}),
		read: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_read_total",
			Help:      "Messages marked Read.",
		}),
		emitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emit_failures_total",
			Help:      "Outbound events that could not be queued to a connection.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store operations that failed, by operation.",
		}, []string{"op"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Authenticated connections currently open.",
		}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound events received, by type and outcome.",
		}, []string{"type", "outcome"}),
	}

	reg.MustRegister(
		m.persisted,
		m.delivered,
		m.queued,
		m.read,
		m.emitFailures,
		m.storeErrors,
		m.sessionsActive,
		m.inbound,
	)

	if onlineCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities_online",
			Help:      "Identities with at least one live connection.",
		}, func() float64 { return float64(onlineCount()) }))
	}

	return m
}

// Handler serves the registry in Prometheus text format.
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

func (m *Metrics) MessagePersisted(origin string) {
	if m == nil {
		return
	}
	m.persisted.WithLabelValues(origin).Inc()
}

func (m *Metrics) MessageDelivered() {
	if m == nil {
		return
	}
	m.delivered.Inc()
}

func (m *Metrics) MessageQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) MessageRead() {
	if m == nil {
		return
	}
	m.read.Inc()
}

func (m *Metrics) EmitFailed() {
	if m == nil {
		return
	}
	m.emitFailures.Inc()
}

// StoreError counts a failed store operation such as "insert" or "update".
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// InboundEvent counts one inbound event with its outcome.
func (m *Metrics) InboundEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(eventType, outcome).Inc()
}
