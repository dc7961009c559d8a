package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the timer service
type Metrics struct {
	LinesIngested    *prometheus.CounterVec
	TrackedTimers    prometheus.Gauge
	VisibleTimers    prometheus.Gauge
	IdentitiesSeen   prometheus.Gauge
	IconFetches      *prometheus.CounterVec
	ConnectedClients prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "timers_log_lines_total",
			Help: "Total number of combat log lines ingested, by outcome",
		}, []string{"outcome"}),
		TrackedTimers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timers_tracked",
			Help: "Current number of (action, caster) identities in the tracking store",
		}),
		VisibleTimers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timers_visible",
			Help: "Number of timers in the last published projection",
		}),
		IdentitiesSeen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timers_identities_seen",
			Help: "Distinct (action, caster) identities seen since startup",
		}),
		IconFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "timers_icon_fetches_total",
			Help: "Total number of action icon fetches, by result",
		}, []string{"result"}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "timers_ws_clients",
			Help: "Current number of connected overlay WebSocket clients",
		}),
	}
}

func (m *Metrics) RecordIngest(outcome string) {
	m.LinesIngested.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetTrackedTimers(n int) {
	m.TrackedTimers.Set(float64(n))
}

func (m *Metrics) SetVisibleTimers(n int) {
	m.VisibleTimers.Set(float64(n))
}

func (m *Metrics) SetIdentitiesSeen(n int) {
	m.IdentitiesSeen.Set(float64(n))
}

func (m *Metrics) RecordIconFetch(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.IconFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) SetConnectedClients(n int) {
	m.ConnectedClients.Set(float64(n))
}
