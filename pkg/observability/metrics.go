// Package observability exposes the Prometheus collectors for the
// realtime collaboration surface.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors the hub and coordinator report into.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	MessagesSent      prometheus.Counter
	MessagesFailed    prometheus.Counter
	BroadcastsTotal   *prometheus.CounterVec
	ChangesRelayed    prometheus.Counter
}

// NewMetrics creates and registers the collectors on the registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collabgraph",
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collabgraph",
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Messages delivered to clients.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collabgraph",
			Subsystem: "websocket",
			Name:      "messages_failed_total",
			Help:      "Messages dropped because a client could not keep up.",
		}),
		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collabgraph",
			Subsystem: "collab",
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by message type.",
		}, []string{"type"}),
		ChangesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collabgraph",
			Subsystem: "collab",
			Name:      "changes_relayed_total",
			Help:      "Diagram changes relayed to peers.",
		}),
	}
	registry.MustRegister(
		m.ActiveConnections,
		m.MessagesSent,
		m.MessagesFailed,
		m.BroadcastsTotal,
		m.ChangesRelayed,
	)
	return m
}
