package netsim

// NodeStatus describes the health of a single node in the constellation.
type NodeStatus int

const (
	StatusHealthy NodeStatus = iota
	StatusDegraded
	StatusRecovering
	StatusOffline
)

// String returns a human-readable status name.
func (s NodeStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusRecovering:
		return "recovering"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Phase identifies which stage of the network lifecycle drives the tick.
type Phase int

const (
	PhaseDiscovering Phase = iota
	PhaseRamping
	PhaseStable
	PhaseDowning
	PhaseRecovering
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDiscovering:
		return "discovering"
	case PhaseRamping:
		return "ramping"
	case PhaseStable:
		return "stable"
	case PhaseDowning:
		return "downing"
	case PhaseRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// PacketKind discriminates the five message types carried by the network.
type PacketKind int

const (
	PacketApp PacketKind = iota
	PacketAck
	PacketControlPing
	PacketControlPong
	PacketLiveness

	numPacketKinds = iota
)

// String returns a human-readable kind name.
func (k PacketKind) String() string {
	switch k {
	case PacketApp:
		return "app"
	case PacketAck:
		return "ack"
	case PacketControlPing:
		return "control_ping"
	case PacketControlPong:
		return "control_pong"
	case PacketLiveness:
		return "liveness"
	default:
		return "unknown"
	}
}

// isControl reports whether the kind counts as control traffic for the
// probe gate and the quiescence window.
func (k PacketKind) isControl() bool {
	return k == PacketControlPing || k == PacketControlPong || k == PacketLiveness
}

// SignalKind labels a domain event raised by the simulation and drained
// by the host after each tick.
type SignalKind int

const (
	SignalDelivered SignalKind = iota
	SignalDeliveryFailed
	SignalConverged
	SignalDesynced
	SignalPhaseChanged
	SignalNodeToggled
)

// String returns a human-readable signal name.
func (k SignalKind) String() string {
	switch k {
	case SignalDelivered:
		return "delivered"
	case SignalDeliveryFailed:
		return "delivery_failed"
	case SignalConverged:
		return "converged"
	case SignalDesynced:
		return "desynced"
	case SignalPhaseChanged:
		return "phase_changed"
	case SignalNodeToggled:
		return "node_toggled"
	default:
		return "unknown"
	}
}
