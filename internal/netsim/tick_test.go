package netsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseProgression(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 10, Width: 800, Height: 600, Seed: 31})
	require.Equal(t, PhaseDiscovering, s.phase)

	run(s, 3100, 16)
	assert.Equal(t, PhaseRamping, s.phase)
	assert.Empty(t, s.packets, "leaving discovery clears warm-up traffic")

	run(s, 1400, 16)
	assert.Equal(t, PhaseStable, s.phase)
}

func TestDiscoverySweepSeedsRoutingKnowledge(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 16, Width: 900, Height: 700, Seed: 8})
	before := knownEntries(s)

	run(s, 600, 16)
	assert.Greater(t, knownEntries(s), before, "sweep exchanges teach new routes")
	assert.NotEmpty(t, s.discoveryEdges)
	assert.LessOrEqual(t, len(s.discoveryEdges), defaultDiscoveryEdgeCap)
}

func TestDiscoveryEdgeCapHonored(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 20, Width: 900, Height: 700, Seed: 8})
	cfg := TickConfig{MaxVisibleDiscoveryEdges: 5}
	for elapsed := 0.0; elapsed < 800; elapsed += 16 {
		s.Tick(16, cfg)
		require.LessOrEqual(t, len(s.discoveryEdges), 5)
	}
}

func knownEntries(s *Simulation) int {
	count := 0
	for i := range s.table {
		for j := range s.table[i] {
			if s.table[i][j] != unknownHop {
				count++
			}
		}
	}
	return count
}

func TestReducedMotionClearsPacketsAndFreezes(t *testing.T) {
	s := lineSim()
	forceStable(s)
	require.NotNil(t, s.spawnPacket(PacketApp, []int{0, 1, 2}, "m1"))
	clock := s.clockMs
	phase := s.phase
	versions := append([]uint64{}, s.version...)

	s.Tick(16, TickConfig{ReducedMotion: true})
	assert.Empty(t, s.packets)
	assert.Equal(t, clock, s.clockMs)
	assert.Equal(t, phase, s.phase)
	assert.Equal(t, versions, s.version)
}

func TestSendQueuesWhileRelayOfflineThenDelivers(t *testing.T) {
	s := lineSim()
	forceStable(s)
	s.ToggleNode(1)
	s.RequestSend(EndpointA, EndpointB, 20000)

	run(s, 1000, 16)
	require.Len(t, s.pendingSends, 1, "no viable path while the relay is down")
	require.Empty(t, s.packets)
	require.Zero(t, s.endpoints[EndpointB].LastDeliveredAt)

	s.ToggleNode(1)
	run(s, 4000, 16)
	assert.Empty(t, s.pendingSends)
	assert.Greater(t, s.endpoints[EndpointB].LastDeliveredAt, 0.0, "the queued send delivered after recovery")
}

func TestFiveNodeMeshConverges(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 5, Width: 800, Height: 600, Seed: 77})
	run(s, 4500, 16)
	require.Equal(t, PhaseStable, s.phase)

	run(s, 12000, 16)
	assert.True(t, s.Converged(), "every node knows a next hop to every other")
	assert.False(t, s.NeedsSync(), "the settled network cleared its sync flag")

	a := s.EndpointNode(EndpointA)
	b := s.EndpointNode(EndpointB)
	assert.NotEqual(t, unknownHop, s.table[a][b])
	assert.NotNil(t, s.findPath(a, b))
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 12, Width: 800, Height: 600, Seed: 4})
	require.NotNil(t, s.spawnPacket(PacketApp, []int{s.edges[0].A, s.edges[0].B}, "m1"))
	run(s, 200, 16)

	snap := s.Snapshot()
	require.Len(t, snap.Nodes, 12)
	require.Len(t, snap.Edges, len(s.edges))
	require.Len(t, snap.Packets, len(s.packets))
	assert.Equal(t, s.phase, snap.Phase)
	assert.Equal(t, s.needsSync, snap.NeedsSync)
	for _, p := range snap.Packets {
		assert.GreaterOrEqual(t, p.Progress, 0.0)
		assert.Less(t, p.Progress, 1.0)
	}

	snap.Nodes[0].X = -9999
	snap.Edges[0] = Edge{A: -1, B: -1}
	assert.NotEqual(t, -9999.0, s.nodes[0].X, "snapshots never alias live state")
	assert.NotEqual(t, -1, s.edges[0].A)
}

func TestDrainSignalsEmptiesQueue(t *testing.T) {
	s := lineSim()
	forceStable(s)
	s.ToggleNode(1)

	first := s.DrainSignals()
	require.NotEmpty(t, first)
	kinds := make(map[SignalKind]bool)
	for _, sig := range first {
		kinds[sig.Kind] = true
	}
	assert.True(t, kinds[SignalNodeToggled])
	assert.True(t, kinds[SignalPhaseChanged])

	assert.Empty(t, s.DrainSignals())
}

func TestUserMutationPanicsOnCallerBug(t *testing.T) {
	s := lineSim()
	assert.Panics(t, func() { s.ToggleNode(99) })
	assert.Panics(t, func() { s.ToggleNode(-1) })
	assert.Panics(t, func() { s.RequestSend(EndpointA, EndpointA, 1000) })
	assert.Panics(t, func() { s.RequestSend(EndpointID(7), EndpointB, 1000) })
}

func TestOversizedTickStillSane(t *testing.T) {
	s := Build(BuildConfig{NodeCount: 8, Width: 600, Height: 600, Seed: 13})
	// The host clamps suspended-tab deltas, but a single large tick must
	// not corrupt the state machine either.
	s.Tick(10000, TickConfig{})
	assert.Equal(t, PhaseRamping, s.phase)
	for i := range s.nodes {
		require.Equal(t, i, s.table[i][i])
	}
}
