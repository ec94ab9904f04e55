package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collabhub",
		Name:      "active_rooms",
		Help:      "Rooms with at least one live connection",
	})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collabhub",
		Name:      "active_connections",
		Help:      "Connections currently joined to a room",
	})

	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collabhub",
		Name:      "messages_received_total",
		Help:      "Inbound client messages by type",
	}, []string{"type"})

	MessagesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collabhub",
		Name:      "messages_delivered_total",
		Help:      "Outbound frames queued for delivery by type",
	}, []string{"type"})

	Evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collabhub",
		Name:      "evictions_total",
		Help:      "Connections dropped after a failed or backed-up delivery",
	})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collabhub",
		Name:      "auth_failures_total",
		Help:      "Rejected websocket handshakes by reason",
	}, []string{"reason"})

	RelayPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collabhub",
		Name:      "relay_publish_errors_total",
		Help:      "Failed publishes to the cross-instance relay",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
