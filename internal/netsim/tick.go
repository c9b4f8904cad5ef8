package netsim

import "fmt"

// TickConfig carries the per-tick knobs supplied by the host. Zero or
// negative multipliers fall back to 1 and a non-positive discovery edge
// cap falls back to the default, so a zero value behaves sanely.
type TickConfig struct {
	ReducedMotion            bool
	MaxVisibleDiscoveryEdges int
	NetworkSpeedMultiplier   float64
	PacketSpeedMultiplier    float64
}

const (
	defaultDiscoveryEdgeCap = 24
	defaultSendDeadlineMs   = 6000
)

// Tick advances the whole simulation by deltaMs milliseconds. It is the
// single entry point, invoked once per frame by the host, and never
// blocks or spawns work. The network speed multiplier scales protocol
// cadence, the packet speed multiplier scales packet travel, and the
// caller is responsible for clamping oversized deltas. With reduced
// motion requested the tick clears in-flight packets and does nothing
// else.
func (s *Simulation) Tick(deltaMs float64, cfg TickConfig) {
	if cfg.ReducedMotion {
		s.packets = nil
		return
	}
	if deltaMs <= 0 {
		return
	}
	netMul := cfg.NetworkSpeedMultiplier
	if netMul <= 0 {
		netMul = 1
	}
	packetMul := cfg.PacketSpeedMultiplier
	if packetMul <= 0 {
		packetMul = 1
	}
	maxEdges := cfg.MaxVisibleDiscoveryEdges
	if maxEdges <= 0 {
		maxEdges = defaultDiscoveryEdgeCap
	}

	s.clockMs += deltaMs
	sdt := deltaMs * netMul

	s.advancePhase(sdt)
	switch s.phase {
	case PhaseDiscovering:
		s.runDiscoverySweep(sdt)
	case PhaseRamping:
		s.servicePendingSends(deltaMs)
	case PhaseStable:
		s.servicePendingSends(deltaMs)
		s.runProbeCycle(sdt)
	}
	s.serviceRecoveryQueue()
	s.advancePackets(deltaMs, packetMul)
	s.expirePendingPongs(sdt)
	s.decayStatuses(sdt)
	s.trackQuiescence(sdt)
	s.trimDiscoveryEdges(maxEdges)
}

// ToggleNode flips a node between operational and offline: a healthy or
// degraded node is taken offline, an offline node begins recovery and
// is queued for neighbor revalidation, and a recovering node can be
// taken back offline mid-revalidation. Every toggle bumps the topology
// version and re-arms synchronization. The node set is closed, so an
// out-of-range index is a caller bug and panics.
func (s *Simulation) ToggleNode(i int) {
	if i < 0 || i >= len(s.nodes) {
		panic(fmt.Sprintf("netsim: node index %d out of range [0,%d)", i, len(s.nodes)))
	}
	wasSynced := !s.needsSync
	n := &s.nodes[i]
	switch n.Status {
	case StatusHealthy, StatusDegraded:
		s.setNodeStatus(i, StatusOffline)
		if s.phase == PhaseStable {
			s.setPhase(PhaseDowning)
		}
	case StatusOffline:
		n.LivenessPending = true
		n.RecoveryProbes = 0
		s.setNodeStatus(i, StatusRecovering)
		s.recoveryQueue = append(s.recoveryQueue, i)
		if s.phase == PhaseStable {
			s.setPhase(PhaseRecovering)
		}
	case StatusRecovering:
		n.LivenessPending = false
		s.setNodeStatus(i, StatusOffline)
		s.removeFromRecoveryQueue(i)
		if s.phase == PhaseStable {
			s.setPhase(PhaseDowning)
		}
	}
	s.topologyVersion++
	s.needsSync = true
	s.quietMs = 0
	s.emit(Signal{Kind: SignalNodeToggled, Node: i, Endpoint: -1, Phase: s.phase})
	if wasSynced {
		s.emit(Signal{Kind: SignalDesynced, Node: i, Endpoint: -1, Phase: s.phase})
	}
}

// RequestSend queues a user message between the two designated
// endpoints. The deadline counts down while the request waits for a
// viable path; expiry drops it with a failure pulse. Endpoint
// identifiers come from a closed two-value set, so anything else is a
// caller bug and panics.
func (s *Simulation) RequestSend(from, to EndpointID, deadlineMs float64) {
	if from == to || from < EndpointA || from > EndpointB || to < EndpointA || to > EndpointB {
		panic(fmt.Sprintf("netsim: invalid endpoint pair %d -> %d", from, to))
	}
	if deadlineMs <= 0 {
		deadlineMs = defaultSendDeadlineMs
	}
	s.pendingSends = append(s.pendingSends, PendingSend{
		Source:     s.endpoints[from].Node,
		QueuedNode: s.endpoints[from].Node,
		TargetNode: s.endpoints[to].Node,
		DeadlineMs: deadlineMs,
	})
}
