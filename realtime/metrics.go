package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the hub's Prometheus collectors. They are created
// unregistered so tests can instantiate a hub without touching the default
// registry; main registers them once via Register.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	MessagesIn       prometheus.Counter
	MessagesOut      prometheus.Counter
	Broadcasts       prometheus.Counter
	DroppedSends     prometheus.Counter
	MalformedIn      prometheus.Counter
	MissedPongs      prometheus.Counter
}

// NewMetrics creates the hub collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "raceline_connected_clients",
			Help: "Number of currently registered connections.",
		}),
		MessagesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raceline_messages_in_total",
			Help: "Inbound messages dispatched.",
		}),
		MessagesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raceline_messages_out_total",
			Help: "Outbound envelopes successfully handed to a channel.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raceline_broadcasts_total",
			Help: "Room, user and subtype fan-out operations.",
		}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raceline_dropped_sends_total",
			Help: "Sends skipped because the channel was closed or full.",
		}),
		MalformedIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raceline_malformed_messages_total",
			Help: "Inbound messages dropped as unparsable.",
		}),
		MissedPongs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "raceline_missed_pongs_total",
			Help: "Heartbeat ticks where a connection had not answered the previous ping.",
		}),
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ConnectedClients,
		m.MessagesIn,
		m.MessagesOut,
		m.Broadcasts,
		m.DroppedSends,
		m.MalformedIn,
		m.MissedPongs,
	)
}
