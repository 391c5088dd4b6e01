// Package metrics holds the Prometheus instruments the runtime updates as it
// moves frames between the ring, the sockets, and the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the runtime exposes. pkg/ambrosia updates
// RingOccupancyBytes (after each outgoing push), RingCapacityBytes,
// AttachedDestinations, RPCsSentTotal and CheckpointsSentTotal (startup
// checkpoint only). RPCsDispatchedTotal, ProtocolViolations and
// BytesWrittenTotal are registered but nothing in the module updates them.
type Metrics struct {
	RingOccupancyBytes prometheus.Gauge
	RingCapacityBytes  prometheus.Gauge

	AttachedDestinations prometheus.Gauge

	RPCsDispatchedTotal  *prometheus.CounterVec
	RPCsSentTotal        *prometheus.CounterVec
	CheckpointsSentTotal prometheus.Counter
	ProtocolViolations   *prometheus.CounterVec

	BytesWrittenTotal prometheus.Counter
}

// New creates and registers every instrument.
func New() *Metrics {
	return &Metrics{
		RingOccupancyBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ambrosia_ring_occupancy_bytes",
			Help: "Bytes currently queued in the egress ring.",
		}),
		RingCapacityBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ambrosia_ring_capacity_bytes",
			Help: "Total capacity of the egress ring.",
		}),
		AttachedDestinations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ambrosia_attached_destinations",
			Help: "Number of remote destinations an AttachTo has been sent to.",
		}),
		RPCsDispatchedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ambrosia_rpcs_dispatched_total",
			Help: "Incoming RPCs dispatched to the application, by outcome.",
		}, []string{"outcome"}), // ok, error, fire_and_forget_error
		RPCsSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ambrosia_rpcs_sent_total",
			Help: "Outgoing RPCs pushed onto the egress ring, by destination.",
		}, []string{"dest"}),
		CheckpointsSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ambrosia_checkpoints_sent_total",
			Help: "Checkpoint envelopes written by the startup handshake (TakeCheckpoint responses are not counted).",
		}),
		ProtocolViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ambrosia_protocol_violations_total",
			Help: "Frames rejected as protocol violations, by stage.",
		}, []string{"stage"}), // handshake, ingress
		BytesWrittenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ambrosia_bytes_written_total",
			Help: "Total bytes written to the up socket by the progress loop.",
		}),
	}
}
