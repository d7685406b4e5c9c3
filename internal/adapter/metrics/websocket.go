package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics tracks kiosk screens subscribed to overlay channels and
// the overlay updates pushed to them.
type WebSocketMetrics struct {
	ConnectedKiosks  prometheus.Gauge
	UpdatesPublished prometheus.Counter
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ConnectedKiosks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presenter",
			Name:      "connected_kiosks",
			Help:      "Kiosk screens currently connected to the overlay channel.",
		}),
		UpdatesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presenter",
			Name:      "overlay_updates_published_total",
			Help:      "Overlay instance views published to kiosk screens.",
		}),
	}

	reg.MustRegister(m.ConnectedKiosks, m.UpdatesPublished)
	return m
}
