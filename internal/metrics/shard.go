package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Message types recorded by RecordMessage.
const (
	MessageJoined = "userJoined"
	MessageLeft   = "userLeft"
	MessageChat   = "chat"
)

// ShardMetrics instruments one session shard.
type ShardMetrics struct {
	// Connections is the number of connections currently joined to a room.
	Connections prometheus.Gauge

	// Rooms is the number of live rooms.
	Rooms prometheus.Gauge

	// MessagesTotal counts broadcasts. Labels: type (userJoined, userLeft, chat)
	MessagesTotal *prometheus.CounterVec
}

// NewShardMetricsWithRegistry registers shard metrics with reg.
func NewShardMetricsWithRegistry(reg prometheus.Registerer) *ShardMetrics {
	m := &ShardMetrics{
		Connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "shard",
				Name:      "connections",
				Help:      "Connections currently joined to a room on this shard.",
			},
		),
		Rooms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "shard",
				Name:      "rooms",
				Help:      "Live rooms on this shard.",
			},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "shard",
				Name:      "messages_total",
				Help:      "Room broadcasts, by message type.",
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(m.Connections, m.Rooms, m.MessagesTotal)
	return m
}

// SetLoad publishes the current connection and room counts.
func (m *ShardMetrics) SetLoad(connections, rooms int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(connections))
	m.Rooms.Set(float64(rooms))
}

// RecordMessage counts one broadcast of the given type.
func (m *ShardMetrics) RecordMessage(msgType string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(msgType).Inc()
}
