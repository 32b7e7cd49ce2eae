package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EnvelopesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staychat_envelopes_dispatched_total",
		Help: "Envelopes routed by the hub, by variant.",
	}, []string{"type"})

	EnvelopesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staychat_envelopes_dropped_total",
		Help: "Inbound socket payloads dropped as malformed.",
	})

	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staychat_messages_persisted_total",
		Help: "Messages written through the durable API.",
	})

	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staychat_push_failures_total",
		Help: "Web push deliveries that returned an error.",
	})

	SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "staychat_sessions_connected",
		Help: "Currently connected socket sessions.",
	})
)

// Handler exposes the default registry, mounted on the admin listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
