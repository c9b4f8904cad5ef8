package netsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGossipMergesUnknownDestinations(t *testing.T) {
	s := lineSim()
	// Node 1 sits between both endpoints and knows the whole chain;
	// node 0 only knows itself and node 1.
	require.Equal(t, unknownHop, s.table[0][2])

	updates := s.gossip(1, 0)
	require.Equal(t, 1, updates)
	assert.Equal(t, 1, s.table[0][2], "node 0 learns node 2 via its informant")
	assert.Equal(t, uint64(2), s.version[0], "learning bumps the row version")
	assert.True(t, s.needsSync)
	assert.Zero(t, s.quietMs)
}

func TestGossipNeverOverwritesKnownEntries(t *testing.T) {
	s := diamondSim()
	s.gossip(1, 0)
	require.Equal(t, 1, s.table[0][3])

	// A second informant with the same reachability must not replace
	// the recorded next hop.
	s.gossip(2, 0)
	assert.Equal(t, 1, s.table[0][3])
}

func TestGossipIdempotence(t *testing.T) {
	s := lineSim()
	first := s.gossip(1, 0)
	require.Equal(t, 1, first)

	second := s.gossip(1, 0)
	assert.Zero(t, second, "repeat call without intervening change merges nothing")

	// The version gate alone short-circuits: shared cursor equals the
	// informant's version after the first exchange.
	assert.Equal(t, s.version[1], s.shared[1][0])
}

func TestGossipVersionGate(t *testing.T) {
	s := lineSim()
	s.gossip(1, 0)
	require.Equal(t, uint64(1), s.shared[1][0])

	// Bump the informant and gossip again: the gate reopens even though
	// there is nothing new to learn.
	s.version[1]++
	updates := s.gossip(1, 0)
	assert.Zero(t, updates)
	assert.Equal(t, s.version[1], s.shared[1][0], "cursor follows the informant version")
}

func TestLearnRouteFillsPathKnowledge(t *testing.T) {
	s := buildFixed(4, []Edge{{A: 0, B: 1}, {A: 1, B: 2}, {A: 2, B: 3}}, 0, 3)
	require.Equal(t, unknownHop, s.table[0][3])
	require.Equal(t, unknownHop, s.table[1][3])

	v0, v1, v2 := s.version[0], s.version[1], s.version[2]
	s.learnRoute([]int{0, 1, 2, 3}, 3)

	assert.Equal(t, 1, s.table[0][3])
	assert.Equal(t, 2, s.table[1][3])
	assert.Equal(t, 3, s.table[2][3], "already seeded as a direct neighbor")
	assert.Equal(t, v0+1, s.version[0])
	assert.Equal(t, v1+1, s.version[1])
	assert.Equal(t, v2, s.version[2], "known entries do not bump the version")
}

func TestLearnRouteIsMonotonic(t *testing.T) {
	s := buildFixed(4, []Edge{{A: 0, B: 1}, {A: 1, B: 3}, {A: 0, B: 2}, {A: 2, B: 3}}, 0, 3)
	s.learnRoute([]int{0, 1, 3}, 3)
	require.Equal(t, 1, s.table[0][3])

	s.learnRoute([]int{0, 2, 3}, 3)
	assert.Equal(t, 1, s.table[0][3], "a later path never replaces recorded knowledge")
}

func TestSelfRouteInvariantHoldsThroughRun(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 12, Width: 900, Height: 600, Seed: 17})
	toggleAt := map[int]int{120: 4, 260: 4, 400: 7}
	for step := 0; step < 600; step++ {
		if node, ok := toggleAt[step]; ok {
			s.ToggleNode(node)
		}
		s.Tick(16, TickConfig{})
		for i := range s.nodes {
			require.Equal(t, i, s.table[i][i], "step %d node %d", step, i)
		}
	}
}

func TestRoutingKnowledgeNeverReverts(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 10, Width: 700, Height: 700, Seed: 23})
	known := make([][]bool, len(s.nodes))
	for i := range known {
		known[i] = make([]bool, len(s.nodes))
	}
	for step := 0; step < 500; step++ {
		if step == 150 {
			s.ToggleNode(3)
		}
		if step == 300 {
			s.ToggleNode(3)
		}
		s.Tick(16, TickConfig{})
		for i := range s.table {
			for j := range s.table[i] {
				if s.table[i][j] != unknownHop {
					known[i][j] = true
				} else {
					require.False(t, known[i][j], "entry %d->%d reverted to unknown at step %d", i, j, step)
				}
			}
		}
	}
}

func TestQuiescenceClearsNeedsSync(t *testing.T) {
	s := lineSim()
	forceStable(s)
	// Fill every table up front so only the settle window remains.
	s.exchange(0, 1)
	s.exchange(1, 2)
	require.True(t, s.isConverged())
	require.True(t, s.needsSync)

	run(s, 6000, 16)
	assert.False(t, s.needsSync)
	assert.Equal(t, s.topologyVersion, s.syncedTopologyVersion)

	var converged bool
	for _, sig := range s.DrainSignals() {
		if sig.Kind == SignalConverged {
			converged = true
		}
	}
	assert.True(t, converged, "settling announces a converged signal")
}

func TestQuiescenceWaitsForPendingSends(t *testing.T) {
	s := lineSim()
	forceStable(s)
	s.exchange(0, 1)
	s.exchange(1, 2)
	s.ToggleNode(1)
	require.True(t, s.needsSync)

	// With the relay down the send can never leave the queue, so the
	// network must not declare itself settled while it waits.
	s.RequestSend(EndpointA, EndpointB, 4000)
	run(s, 3000, 16)
	assert.True(t, s.needsSync)
	assert.Len(t, s.pendingSends, 1)
}
