package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/kioskads/internal/domain"
)

// OverlayMetrics instruments the overlay engine. It satisfies overlay.Observer.
type OverlayMetrics struct {
	Transitions       *prometheus.CounterVec
	Captures          *prometheus.CounterVec
	Fetches           *prometheus.CounterVec
	StaleTimers       *prometheus.CounterVec
	PresenterDrops    prometheus.Counter
	SessionsActive    prometheus.Gauge
	SessionsReclaimed prometheus.Counter
}

// NewOverlayMetrics creates and registers overlay engine metrics on the given registry.
func NewOverlayMetrics(reg prometheus.Registerer) *OverlayMetrics {
	m := &OverlayMetrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "transitions_total",
			Help:      "Overlay instance state transitions, by kind and target state.",
		}, []string{"kind", "state"}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "captures_total",
			Help:      "Completed capture workflows, by kind and result.",
		}, []string{"kind", "result"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "fetches_total",
			Help:      "Catalog and sales reads, by source and status.",
		}, []string{"source", "status"}),
		StaleTimers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "stale_timers_total",
			Help:      "Timer callbacks that arrived after their instance moved on, by kind.",
		}, []string{"kind"}),
		PresenterDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "presenter_dropped_total",
			Help:      "Presenter updates dropped because the per-session queue was full.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "sessions_active",
			Help:      "Number of mounted overlay sessions.",
		}),
		SessionsReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "overlay",
			Name:      "sessions_reclaimed_total",
			Help:      "Sessions unmounted by the idle sweep.",
		}),
	}

	reg.MustRegister(m.Transitions, m.Captures, m.Fetches, m.StaleTimers, m.PresenterDrops, m.SessionsActive, m.SessionsReclaimed)
	return m
}

func (m *OverlayMetrics) Transition(kind domain.OverlayKind, state domain.OverlayState) {
	m.Transitions.WithLabelValues(string(kind), state.String()).Inc()
}

func (m *OverlayMetrics) Capture(kind domain.OverlayKind, result domain.CaptureResult) {
	m.Captures.WithLabelValues(string(kind), string(result)).Inc()
}

func (m *OverlayMetrics) Fetch(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Fetches.WithLabelValues(source, status).Inc()
}

func (m *OverlayMetrics) StaleTimer(kind domain.OverlayKind) {
	m.StaleTimers.WithLabelValues(string(kind)).Inc()
}

func (m *OverlayMetrics) PresenterDropped() {
	m.PresenterDrops.Inc()
}
