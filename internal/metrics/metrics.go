// Package metrics exposes Prometheus counters and gauges for the engine and
// control plane, grounded on the bounded-cardinality label discipline the
// pack's kick-game-stream repo uses for its own HTTP/WebSocket metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EngineTransitions counts state-machine transitions by target state
	// name ("Loading", "Playing", "Paused", "EndOfTrack", "Stopped") —
	// bounded cardinality, matching the pack's "reason"-labelled counters.
	EngineTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_state_transitions_total",
		Help: "Player engine state machine transitions by target state",
	}, []string{"state"})

	// DecodeErrorsTotal counts track-level decode/load failures.
	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_decode_errors_total",
		Help: "Track-level decode or load errors, by kind",
	}, []string{"kind"}) // "unavailable", "decode"

	// RPCRequestsTotal counts JSON-RPC requests by method and outcome.
	RPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_rpc_requests_total",
		Help: "JSON-RPC requests received by the control facade",
	}, []string{"method", "outcome"}) // outcome: "ok" or an error code

	// RPCRequestDuration tracks dispatch latency per method.
	RPCRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "control_rpc_duration_seconds",
		Help:    "JSON-RPC dispatch latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// WebSocketClients tracks the number of currently connected clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "control_websocket_clients",
		Help: "Currently connected control-plane WebSocket clients",
	})

	// NotificationsBroadcast counts notifications pushed to subscribers.
	NotificationsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "control_notifications_broadcast_total",
		Help: "Notifications broadcast to WebSocket subscribers",
	}, []string{"method"})
)

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
