package netsim

// advancePhase moves the phase timer and applies transitions. The
// downing and recovering states are deliberately transient: they exist
// so the renderer can show the blip, and normalize back to stable on
// the next tick. Leaving discovery clears whatever traffic the warm-up
// produced.
func (s *Simulation) advancePhase(sdt float64) {
	s.phaseMs += sdt
	switch s.phase {
	case PhaseDiscovering:
		if s.phaseMs >= discoveringDurationMs {
			s.packets = nil
			s.setPhase(PhaseRamping)
		}
	case PhaseRamping:
		if s.phaseMs >= rampingDurationMs {
			s.setPhase(PhaseStable)
		}
	case PhaseDowning, PhaseRecovering:
		s.setPhase(PhaseStable)
	}
}

// runDiscoverySweep performs the bounded neighbor-exchange loop that
// seeds early routing knowledge. Each sweep touches a handful of nodes
// in round-robin order and, per node, the next neighbor in round-robin
// order; a touch is a bidirectional gossip recorded as a discovery edge
// for the renderer.
func (s *Simulation) runDiscoverySweep(sdt float64) {
	s.sweepTimer -= sdt
	for s.sweepTimer <= 0 {
		s.sweepTimer += discoverySweepMs
		for k := 0; k < discoverySweepFanout; k++ {
			i := s.sweepCursor % len(s.nodes)
			s.sweepCursor++
			adj := s.adjacency[i]
			if len(adj) == 0 {
				continue
			}
			j := adj[s.neighborCursors[i]%len(adj)]
			s.neighborCursors[i]++
			if !s.nodeHealthy(i) || !s.nodeHealthy(j) {
				continue
			}
			s.exchange(i, j)
			s.discoveryEdges = append(s.discoveryEdges, DiscoveryEdge{From: i, To: j, At: s.clockMs})
		}
	}
}

// trimDiscoveryEdges ages out stale sweep edges and enforces the
// renderer's visibility cap, keeping the newest.
func (s *Simulation) trimDiscoveryEdges(maxEdges int) {
	cutoff := s.clockMs - discoveryEdgeTTLMs
	keepFrom := 0
	for keepFrom < len(s.discoveryEdges) && s.discoveryEdges[keepFrom].At < cutoff {
		keepFrom++
	}
	if over := len(s.discoveryEdges) - keepFrom - maxEdges; over > 0 {
		keepFrom += over
	}
	if keepFrom > 0 {
		s.discoveryEdges = append([]DiscoveryEdge{}, s.discoveryEdges[keepFrom:]...)
	}
}
