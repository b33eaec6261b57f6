// Package observability provides Prometheus metrics for the monitoring
// core: lifecycle phase, RPC pool health, and per-monitor counters.
//
// Only ws_clients_connected and events_broadcast_total are updated (by the
// API surface). The other collectors are registered and exported on
// /metrics, but nothing in this repository records to them, so they stay
// at zero.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the monitoring core reports.
type Metrics struct {
	LifecyclePhase *prometheus.GaugeVec

	RPCCallLatency     *prometheus.HistogramVec
	RPCCallErrors      *prometheus.CounterVec
	RPCEndpointHealthy *prometheus.GaugeVec
	PushConnected      prometheus.Gauge

	WhaleTradesDetected *prometheus.CounterVec
	TaxNetInflow        prometheus.Gauge
	BuybackSpentTotal   prometheus.Gauge
	BuybackStalled      prometheus.Gauge

	CatalogPollsTotal  *prometheus.CounterVec
	CatalogPollLatency prometheus.Histogram

	WSClientsConnected prometheus.Gauge
	EventsBroadcast    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with every collector registered
// under namespace (empty defaults to "launchsentinel").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "launchsentinel"
	}

	return &Metrics{
		LifecyclePhase: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "phase",
			Help:      "1 for the currently active phase, 0 otherwise",
		}, []string{"phase"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC pool call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total RPC pool call errors by endpoint",
		}, []string{"endpoint"}),
		RPCEndpointHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "endpoint_healthy",
			Help:      "1 if the current RPC endpoint answered the last health probe",
		}, []string{"endpoint"}),
		PushConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "push_connected",
			Help:      "1 if the resilient push client is currently connected",
		}),

		WhaleTradesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "whale",
			Name:      "trades_detected_total",
			Help:      "Total whale trades detected by direction",
		}, []string{"direction"}),
		TaxNetInflow: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tax",
			Name:      "net_inflow_virtual",
			Help:      "Running net tax inflow to the fee receiver, in base-token wei",
		}),
		BuybackSpentTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buyback",
			Name:      "spent_total_virtual",
			Help:      "Total buyback spend so far, in base-token wei",
		}),
		BuybackStalled: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buyback",
			Name:      "stalled",
			Help:      "1 if the buyback spend rate is currently flagged as stalled",
		}),

		CatalogPollsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "polls_total",
			Help:      "Total catalog discovery polls by outcome",
		}, []string{"outcome"}),
		CatalogPollLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "poll_latency_seconds",
			Help:      "Catalog discovery poll latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		WSClientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "ws_clients_connected",
			Help:      "Number of currently connected push-socket clients",
		}),
		EventsBroadcast: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "events_broadcast_total",
			Help:      "Total events broadcast to push-socket clients by kind",
		}, []string{"kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Default is the process-wide metrics instance, built at import time so
// every package can record against it without threading a reference
// through every constructor.
var Default = NewMetrics("")

// SetPhase marks phase as active and every other known phase inactive.
func SetPhase(phase string, allPhases []string) {
	for _, p := range allPhases {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		Default.LifecyclePhase.WithLabelValues(p).Set(v)
	}
}

// RecordRPCLatency records one RPC pool call's latency.
func RecordRPCLatency(method string, seconds float64) {
	Default.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError increments the per-endpoint RPC error counter.
func RecordRPCError(endpoint string) {
	Default.RPCCallErrors.WithLabelValues(endpoint).Inc()
}

// RecordWhaleTrade increments the whale-trade counter for direction.
func RecordWhaleTrade(direction string) {
	Default.WhaleTradesDetected.WithLabelValues(direction).Inc()
}

// RecordCatalogPoll increments the catalog poll counter for outcome and
// observes its latency.
func RecordCatalogPoll(outcome string, seconds float64) {
	Default.CatalogPollsTotal.WithLabelValues(outcome).Inc()
	Default.CatalogPollLatency.Observe(seconds)
}

// RecordEventBroadcast increments the broadcast counter for an event kind.
func RecordEventBroadcast(kind string) {
	Default.EventsBroadcast.WithLabelValues(kind).Inc()
}
