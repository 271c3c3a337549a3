// Package metrics holds the Prometheus collectors exported by the indexer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "artindexer"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsApplied *prometheus.CounterVec
	eventsSkipped prometheus.Counter
	diagnostics   *prometheus.CounterVec
	applyDuration prometheus.Histogram
	rpcCalls      *prometheus.CounterVec
	cursorBlock   prometheus.Gauge
	headBlock     prometheus.Gauge
	snapshots     *prometheus.CounterVec
	wsClients     prometheus.Gauge
	retries       prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_applied_total",
			Help:      "Contract events committed, by event kind.",
		}, []string{"kind"}),
		eventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_duplicate_total",
			Help:      "Events skipped because they had already been applied.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "diagnostics_total",
			Help:      "Diagnostics recorded while applying events, by code and severity.",
		}, []string{"code", "severity"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "apply_duration_seconds",
			Help:      "Time to apply one event including chain queries.",
			Buckets:   prometheus.DefBuckets,
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_calls_total",
			Help:      "JSON-RPC calls made to the node, by method and outcome.",
		}, []string{"method", "outcome"}),
		cursorBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "cursor_block",
			Help:      "Last block whose events are fully committed.",
		}),
		headBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "head_block",
			Help:      "Latest block reported by the node.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "exports_total",
			Help:      "Snapshot exports to object storage, by outcome.",
		}, []string{"outcome"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "retries_total",
			Help:      "Block ranges retried after an infrastructure error.",
		}),
	}
	m.registry.MustRegister(
		m.eventsApplied,
		m.eventsSkipped,
		m.diagnostics,
		m.applyDuration,
		m.rpcCalls,
		m.cursorBlock,
		m.headBlock,
		m.snapshots,
		m.wsClients,
		m.retries,
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

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventApplied(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.eventsApplied.WithLabelValues(kind).Inc()
	m.applyDuration.Observe(took.Seconds())
}

func (m *Metrics) EventDuplicate() {
	if m == nil {
		return
	}
	m.eventsSkipped.Inc()
}

func (m *Metrics) Diagnostic(code, severity string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(code, severity).Inc()
}

// RPCCall counts one node call. outcome is "ok", "reverted" or "error".
func (m *Metrics) RPCCall(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) SetCursor(block uint64) {
	if m == nil {
		return
	}
	m.cursorBlock.Set(float64(block))
}

func (m *Metrics) SetHead(block uint64) {
	if m == nil {
		return
	}
	m.headBlock.Set(float64(block))
}

func (m *Metrics) Snapshot(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.snapshots.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
