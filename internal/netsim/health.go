package netsim

import "github.com/google/uuid"

// runProbeCycle drives the two periodic health cadences while the
// network still needs synchronization: ping probes on the probe
// interval and an unconditional routing push on its own shorter
// interval.
func (s *Simulation) runProbeCycle(sdt float64) {
	if !s.needsSync {
		return
	}
	s.probeTimer -= sdt
	if s.probeTimer <= 0 {
		s.probeTimer = probeIntervalMs
		s.firePingProbe()
	}
	s.pushTimer -= sdt
	if s.pushTimer <= 0 {
		s.pushTimer = routingPushIntervalMs
		s.fireRoutingPush()
	}
}

// firePingProbe emits one controlPing between a random healthy pair.
// The probe is skipped while any control packet is in flight, or when a
// pong is already pending for the chosen direction.
func (s *Simulation) firePingProbe() {
	if s.controlInFlight() {
		return
	}
	from, to, ok := s.pickProbePair()
	if !ok {
		return
	}
	key := edgeKey(from, to)
	if _, pending := s.pendingPongs[key]; pending {
		return
	}
	correlation := uuid.NewString()
	if s.spawnPacket(PacketControlPing, []int{from, to}, correlation) == nil {
		return
	}
	s.pendingPongs[key] = &pendingPong{
		From:        from,
		To:          to,
		Correlation: correlation,
		RemainingMs: pongTimeoutMs,
	}
}

// fireRoutingPush gossips both directions across one random healthy
// edge, independent of ping outcomes.
func (s *Simulation) fireRoutingPush() {
	if e, ok := s.pickHealthyEdge(); ok {
		s.exchange(e.A, e.B)
	}
}

// expirePendingPongs counts down outstanding probes. A probe that times
// out records a miss against its direction and still forces a gossip
// exchange, treating the timeout as informative rather than purely
// punitive. Past the miss limit the probed node is marked degraded; a
// repeat miss while degraded restarts the decay window.
func (s *Simulation) expirePendingPongs(sdt float64) {
	for key, pp := range s.pendingPongs {
		pp.RemainingMs -= sdt
		if pp.RemainingMs > 0 {
			continue
		}
		delete(s.pendingPongs, key)
		s.missedPongs[key]++
		s.exchange(pp.From, pp.To)
		if s.missedPongs[key] < degradedMissLimit {
			continue
		}
		switch s.nodes[pp.To].Status {
		case StatusHealthy:
			s.setNodeStatus(pp.To, StatusDegraded)
		case StatusDegraded:
			s.nodes[pp.To].StatusMs = 0
		}
	}
}

// resolvePong clears the pending probe and miss count matched by a pong
// correlation key. Keys are generated internally; an unmatched key
// means the probe already timed out and is ignored.
func (s *Simulation) resolvePong(correlation string) {
	for key, pp := range s.pendingPongs {
		if pp.Correlation != correlation {
			continue
		}
		delete(s.pendingPongs, key)
		delete(s.missedPongs, key)
		return
	}
}

// decayStatuses advances every node's status timer and settles degraded
// nodes back to healthy once the decay window passes without further
// misses.
func (s *Simulation) decayStatuses(sdt float64) {
	for i := range s.nodes {
		n := &s.nodes[i]
		n.StatusMs += sdt
		if n.Status == StatusDegraded && n.StatusMs >= degradedDecayMs {
			s.setNodeStatus(i, StatusHealthy)
		}
	}
}

// serviceRecoveryQueue advances the head of the recovery queue by at
// most one liveness probe per tick, gated on no liveness packet already
// travelling. A recovering node rejoins as healthy once every currently
// healthy neighbor has been probed in round-robin order, or immediately
// when it has none.
func (s *Simulation) serviceRecoveryQueue() {
	if len(s.recoveryQueue) == 0 || s.livenessInFlight() {
		return
	}
	i := s.recoveryQueue[0]
	n := &s.nodes[i]
	if n.Status != StatusRecovering {
		s.recoveryQueue = s.recoveryQueue[1:]
		return
	}
	healthy := s.healthyNeighbors(i)
	if len(healthy) == 0 || n.RecoveryProbes >= len(healthy) {
		n.LivenessPending = false
		s.setNodeStatus(i, StatusHealthy)
		s.recoveryQueue = s.recoveryQueue[1:]
		return
	}
	adj := s.adjacency[i]
	for k := 0; k < len(adj); k++ {
		c := (n.RecoveryCursor + k) % len(adj)
		nb := adj[c]
		if !s.nodeHealthy(nb) {
			continue
		}
		n.RecoveryCursor = (c + 1) % len(adj)
		n.RecoveryProbes++
		s.spawnPacket(PacketLiveness, []int{i, nb}, uuid.NewString())
		return
	}
}

// removeFromRecoveryQueue drops a node from the revalidation queue.
func (s *Simulation) removeFromRecoveryQueue(node int) {
	for k, v := range s.recoveryQueue {
		if v == node {
			s.recoveryQueue = append(s.recoveryQueue[:k], s.recoveryQueue[k+1:]...)
			return
		}
	}
}
