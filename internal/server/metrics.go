package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the host
type Metrics struct {
	ConnectedClients prometheus.Gauge
	FramesBroadcast  prometheus.Counter
	PacketsInFlight  prometheus.Gauge
	PendingSends     prometheus.Gauge
	PacketsDelivered *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	PacketsRerouted  prometheus.Counter
	SendsDelivered   prometheus.Counter
	SendsFailed      prometheus.Counter
	Converged        prometheus.Gauge
	Phase            prometheus.Gauge
	TickDuration     prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_connected_clients",
			Help: "Number of connected renderer clients",
		}),
		FramesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "constellation_frames_broadcast_total",
			Help: "Number of frames broadcast to clients",
		}),
		PacketsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_packets_in_flight",
			Help: "Number of packets currently travelling the mesh",
		}),
		PendingSends: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_pending_sends",
			Help: "Number of queued sends waiting for a viable path",
		}),
		PacketsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "constellation_packets_delivered_total",
			Help: "Packets resolved at their destination, by kind",
		}, []string{"kind"}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "constellation_packets_dropped_total",
			Help: "Packets lost to failures or the in-flight cap, by kind",
		}, []string{"kind"}),
		PacketsRerouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "constellation_packets_rerouted_total",
			Help: "Packets that detoured around a non-healthy node",
		}),
		SendsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "constellation_sends_delivered_total",
			Help: "User messages delivered to their endpoint",
		}),
		SendsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "constellation_sends_failed_total",
			Help: "User messages dropped undelivered or expired in queue",
		}),
		Converged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_converged",
			Help: "Whether every node knows a route to every other (0 or 1)",
		}),
		Phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "constellation_phase",
			Help: "Current lifecycle phase as its ordinal value",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "constellation_tick_duration_seconds",
			Help:    "Simulation tick duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
		}),
	}

	// Register all metrics
	prometheus.MustRegister(
		m.ConnectedClients,
		m.FramesBroadcast,
		m.PacketsInFlight,
		m.PendingSends,
		m.PacketsDelivered,
		m.PacketsDropped,
		m.PacketsRerouted,
		m.SendsDelivered,
		m.SendsFailed,
		m.Converged,
		m.Phase,
		m.TickDuration,
	)

	return m
}

// Close unregisters all metrics
func (m *Metrics) Close() {
	prometheus.Unregister(m.ConnectedClients)
	prometheus.Unregister(m.FramesBroadcast)
	prometheus.Unregister(m.PacketsInFlight)
	prometheus.Unregister(m.PendingSends)
	prometheus.Unregister(m.PacketsDelivered)
	prometheus.Unregister(m.PacketsDropped)
	prometheus.Unregister(m.PacketsRerouted)
	prometheus.Unregister(m.SendsDelivered)
	prometheus.Unregister(m.SendsFailed)
	prometheus.Unregister(m.Converged)
	prometheus.Unregister(m.Phase)
	prometheus.Unregister(m.TickDuration)
}
