package netsim

// gossip merges from's routing knowledge into to's table, filling only
// destinations to does not know yet. The merge is skipped unless from's
// version exceeds the version last shared over this directed pair,
// which makes repeated calls idempotent. Returns the number of entries
// learned.
func (s *Simulation) gossip(from, to int) int {
	if s.version[from] <= s.shared[from][to] {
		return 0
	}
	s.shared[from][to] = s.version[from]

	updates := 0
	fromRow, toRow := s.table[from], s.table[to]
	for dest := range toRow {
		if toRow[dest] != unknownHop || fromRow[dest] == unknownHop {
			continue
		}
		toRow[dest] = from
		updates++
	}
	if updates > 0 {
		s.version[to]++
		s.needsSync = true
		s.quietMs = 0
	}
	return updates
}

// exchange gossips both directions across a node pair.
func (s *Simulation) exchange(a, b int) {
	s.gossip(a, b)
	s.gossip(b, a)
}

// learnRoute records, for every adjacent pair along a traversed path,
// that the earlier node reaches the destination via the later one. Only
// unknown entries are filled; knowledge is never overwritten or
// forgotten.
func (s *Simulation) learnRoute(path []int, dest int) {
	for k := 0; k+1 < len(path); k++ {
		node, next := path[k], path[k+1]
		if node == dest {
			continue
		}
		if s.table[node][dest] == unknownHop {
			s.table[node][dest] = next
			s.version[node]++
			s.quietMs = 0
		}
	}
}

// isConverged reports whether every node knows a next hop for every
// destination.
func (s *Simulation) isConverged() bool {
	for i := range s.table {
		for j := range s.table[i] {
			if s.table[i][j] == unknownHop {
				return false
			}
		}
	}
	return true
}

// trackQuiescence accumulates the settle window once the tables have
// converged and no control traffic or pending sends remain, then clears
// needsSync and records the synced topology version. Routing churn
// resets the window from inside gossip and learnRoute. Settling is a
// stable-phase behavior; the warm-up phases never quiesce.
func (s *Simulation) trackQuiescence(sdt float64) {
	if s.phase != PhaseStable || !s.needsSync {
		return
	}
	if !s.isConverged() || s.controlInFlight() || len(s.pendingSends) > 0 {
		return
	}
	s.quietMs += sdt
	if s.quietMs < quiescenceWindowMs {
		return
	}
	s.needsSync = false
	s.syncedTopologyVersion = s.topologyVersion
	s.emit(Signal{Kind: SignalConverged, Node: -1, Endpoint: -1, Phase: s.phase})
}
