// Package netsim implements the constellation's network simulation: a
// tick-driven model of an unreliable ad hoc mesh whose nodes gossip
// routing state, probe each other for liveness, and reroute in-flight
// packets around failures. The whole simulation is one mutable aggregate
// owned by a single caller; nothing inside blocks, spawns goroutines, or
// keeps wall-clock timers. All waiting is numeric state counted down by
// the delta supplied to Tick.
package netsim

import (
	"math/rand"
	"strconv"
)

// Protocol timing and capacity constants. Durations are simulation
// milliseconds; cadence timers scale with the network speed multiplier.
const (
	probeIntervalMs       = 920
	routingPushIntervalMs = 760
	pongTimeoutMs         = 1200
	quiescenceWindowMs    = 1200
	discoveringDurationMs = 3000
	discoverySweepMs      = 130
	rampingDurationMs     = 1400

	degradedMissLimit = 2
	degradedDecayMs   = 2600

	maxInFlightPackets   = 64
	discoverySweepFanout = 4
	discoveryEdgeTTLMs   = 650

	appPacketSpeed      = 0.0022
	ackPacketSpeed      = 0.0026
	controlPacketSpeed  = 0.0030
	livenessPacketSpeed = 0.0030
)

// unknownHop marks a routing table entry whose next hop has not been
// learned yet.
const unknownHop = -1

// Node is one constellation member. Placement parameters are retained so
// a resize can re-derive positions without rerolling the generator.
type Node struct {
	Index int
	X, Y  float64

	Band         int
	Angle        float64
	RadialJitter float64

	Status          NodeStatus
	StatusMs        float64
	LivenessPending bool
	RecoveryCursor  int
	RecoveryProbes  int
	PulseAt         float64
}

// Edge is an undirected link between two nodes. The edge set is fixed
// after construction except for the one endpoint edge removed at build.
type Edge struct {
	A, B int
}

// Packet is a typed message travelling a precomputed path one edge at a
// time. Progress covers the current segment and lives in [0,1).
type Packet struct {
	Kind        PacketKind
	Path        []int
	Source      int
	Destination int
	Segment     int
	Progress    float64
	Speed       float64
	Rerouted    bool
	Correlation string
}

// PendingSend is a user send request waiting for a viable path. The
// deadline counts down while queued; emission as a packet removes it.
type PendingSend struct {
	Source     int
	QueuedNode int
	TargetNode int
	DeadlineMs float64
}

// Endpoint is one of the two designated conversation ends. The stamps
// record the simulation clock of the last delivery and failure pulses.
type Endpoint struct {
	Node            int
	LastDeliveredAt float64
	LastFailedAt    float64
}

// EndpointID selects one of the two designated endpoints.
type EndpointID int

const (
	EndpointA EndpointID = iota
	EndpointB
)

// DiscoveryEdge is a recently swept node pair, kept only for the
// renderer's discovery visuals.
type DiscoveryEdge struct {
	From int
	To   int
	At   float64
}

// Signal is a domain event raised during a tick and drained by the host.
// Node and Endpoint are -1 when not applicable.
type Signal struct {
	Kind     SignalKind
	At       float64
	Node     int
	Endpoint int
	Phase    Phase
}

// pendingPong tracks an outstanding ping probe on a directed edge.
type pendingPong struct {
	From        int
	To          int
	Correlation string
	RemainingMs float64
}

// Stats are cumulative traffic counters kept since build. Delivered and
// Dropped are indexed by PacketKind.
type Stats struct {
	Delivered    [numPacketKinds]uint64
	Dropped      [numPacketKinds]uint64
	Rerouted     uint64
	ExpiredSends uint64
}

// Simulation is the single mutable aggregate holding every piece of
// network state. It is not safe for concurrent use; exactly one caller
// owns it and drives it through Tick.
type Simulation struct {
	// Topology
	nodes     []Node
	edges     []Edge
	adjacency [][]int
	endpoints [2]Endpoint
	width     float64
	height    float64

	// Routing: table[i][j] is the next hop from i toward j, version[i]
	// counts changes to i's row, shared[i][j] is the last version of i
	// merged into j.
	table   [][]int
	version []uint64
	shared  [][]uint64

	// Health
	pendingPongs  map[string]*pendingPong
	missedPongs   map[string]int
	probeTimer    float64
	pushTimer     float64
	recoveryQueue []int

	// Traffic, kept in spawn order so the oldest packet sits at the front.
	packets      []*Packet
	pendingSends []PendingSend

	// Phase
	phase           Phase
	phaseMs         float64
	sweepTimer      float64
	sweepCursor     int
	neighborCursors []int
	discoveryEdges  []DiscoveryEdge

	// Sync
	needsSync             bool
	quietMs               float64
	topologyVersion       uint64
	syncedTopologyVersion uint64

	clockMs float64
	stats   Stats
	signals []Signal
	rng     *rand.Rand
}

// edgeKey builds the map key for a directed node pair.
func edgeKey(from, to int) string {
	return strconv.Itoa(from) + ">" + strconv.Itoa(to)
}

// emit stamps a signal with the current simulation clock and queues it
// for the host.
func (s *Simulation) emit(sig Signal) {
	sig.At = s.clockMs
	s.signals = append(s.signals, sig)
}

// DrainSignals returns the signals raised since the last drain and
// clears the queue.
func (s *Simulation) DrainSignals() []Signal {
	out := s.signals
	s.signals = nil
	return out
}

// setNodeStatus transitions a node and restarts its status timer.
func (s *Simulation) setNodeStatus(i int, status NodeStatus) {
	n := &s.nodes[i]
	if n.Status == status {
		return
	}
	n.Status = status
	n.StatusMs = 0
	if status == StatusHealthy {
		s.clearMissesToward(i)
	}
}

// clearMissesToward forgets recorded pong misses for probes aimed at a
// node that just returned to healthy.
func (s *Simulation) clearMissesToward(target int) {
	for key := range s.missedPongs {
		if isEdgeKeyTarget(key, target) {
			delete(s.missedPongs, key)
		}
	}
}

func isEdgeKeyTarget(key string, target int) bool {
	for i := 0; i < len(key); i++ {
		if key[i] == '>' {
			to, err := strconv.Atoi(key[i+1:])
			return err == nil && to == target
		}
	}
	return false
}

// setPhase transitions the phase machine and announces the change.
func (s *Simulation) setPhase(p Phase) {
	if s.phase == p {
		return
	}
	s.phase = p
	s.phaseMs = 0
	s.emit(Signal{Kind: SignalPhaseChanged, Node: -1, Endpoint: -1, Phase: p})
}

// nodeHealthy reports whether a node participates in routing and probing.
func (s *Simulation) nodeHealthy(i int) bool {
	return s.nodes[i].Status == StatusHealthy
}

// healthyNeighbors returns the currently healthy neighbors of a node in
// adjacency order.
func (s *Simulation) healthyNeighbors(i int) []int {
	var out []int
	for _, nb := range s.adjacency[i] {
		if s.nodeHealthy(nb) {
			out = append(out, nb)
		}
	}
	return out
}

// pickProbePair selects a random healthy node and a random healthy
// neighbor of it, for ping probing.
func (s *Simulation) pickProbePair() (from, to int, ok bool) {
	var sources []int
	for i := range s.nodes {
		if !s.nodeHealthy(i) {
			continue
		}
		if len(s.healthyNeighbors(i)) > 0 {
			sources = append(sources, i)
		}
	}
	if len(sources) == 0 {
		return 0, 0, false
	}
	from = sources[s.rng.Intn(len(sources))]
	neighbors := s.healthyNeighbors(from)
	to = neighbors[s.rng.Intn(len(neighbors))]
	return from, to, true
}

// pickHealthyEdge selects a random edge whose two ends are both healthy.
func (s *Simulation) pickHealthyEdge() (Edge, bool) {
	var candidates []Edge
	for _, e := range s.edges {
		if s.nodeHealthy(e.A) && s.nodeHealthy(e.B) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Edge{}, false
	}
	return candidates[s.rng.Intn(len(candidates))], true
}

// controlInFlight reports whether any control traffic is travelling.
func (s *Simulation) controlInFlight() bool {
	for _, p := range s.packets {
		if p.Kind.isControl() {
			return true
		}
	}
	return false
}

// livenessInFlight reports whether a liveness probe is travelling.
func (s *Simulation) livenessInFlight() bool {
	for _, p := range s.packets {
		if p.Kind == PacketLiveness {
			return true
		}
	}
	return false
}

// endpointFor returns the endpoint ordinal for a node index, or -1 if
// the node is not an endpoint.
func (s *Simulation) endpointFor(node int) int {
	for i := range s.endpoints {
		if s.endpoints[i].Node == node {
			return i
		}
	}
	return -1
}

// pulseDelivered stamps a delivery pulse on the endpoint owning the
// given node, if any, and announces it.
func (s *Simulation) pulseDelivered(node int) {
	if ep := s.endpointFor(node); ep >= 0 {
		s.endpoints[ep].LastDeliveredAt = s.clockMs
		s.emit(Signal{Kind: SignalDelivered, Node: node, Endpoint: ep, Phase: s.phase})
	}
	s.nodes[node].PulseAt = s.clockMs
}

// pulseFailure stamps a failure pulse on every endpoint touched by the
// given nodes and announces one failure per endpoint.
func (s *Simulation) pulseFailure(nodes ...int) {
	seen := [2]bool{}
	for _, node := range nodes {
		ep := s.endpointFor(node)
		if ep < 0 || seen[ep] {
			continue
		}
		seen[ep] = true
		s.endpoints[ep].LastFailedAt = s.clockMs
		s.emit(Signal{Kind: SignalDeliveryFailed, Node: node, Endpoint: ep, Phase: s.phase})
	}
}
