package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookUpdatesTotal, streamListeners) }

var webhookUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_updates_total",
		Help: "Inbound runner webhook pushes, labeled by reported status.",
	},
	[]string{"status"},
)

var streamListeners = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "stream_listeners",
		Help: "Currently attached status-streaming connections.",
	},
)

func IncWebhookUpdate(status string) {
	webhookUpdatesTotal.WithLabelValues(norm(status)).Inc()
}

func StreamListenerAttached() { streamListeners.Inc() }
func StreamListenerDetached() { streamListeners.Dec() }
