package netsim

import "math/rand"

// buildFixed assembles a simulation over an explicit edge list, for
// scenarios that need an exact topology rather than a generated one.
func buildFixed(nodeCount int, edges []Edge, a, b int) *Simulation {
	s := &Simulation{
		width:        800,
		height:       600,
		pendingPongs: make(map[string]*pendingPong),
		missedPongs:  make(map[string]int),
		probeTimer:   probeIntervalMs,
		pushTimer:    routingPushIntervalMs,
		phase:        PhaseDiscovering,
		sweepTimer:   discoverySweepMs,
		needsSync:    true,
		rng:          rand.New(rand.NewSource(1)),
	}
	s.nodes = make([]Node, nodeCount)
	for i := range s.nodes {
		s.nodes[i] = Node{Index: i, Status: StatusHealthy}
	}
	s.edges = append([]Edge{}, edges...)
	s.endpoints[EndpointA] = Endpoint{Node: a}
	s.endpoints[EndpointB] = Endpoint{Node: b}
	s.deriveAdjacency()
	s.seedRouting()
	s.neighborCursors = make([]int, nodeCount)
	return s
}

// lineSim builds the three node chain 0-1-2 with the outer nodes as
// endpoints, the smallest topology where a route must pass a relay.
func lineSim() *Simulation {
	return buildFixed(3, []Edge{{A: 0, B: 1}, {A: 1, B: 2}}, 0, 2)
}

// diamondSim builds two disjoint relay paths between the endpoints 0
// and 3, so one relay can fail while a detour remains.
func diamondSim() *Simulation {
	return buildFixed(4, []Edge{{A: 0, B: 1}, {A: 1, B: 3}, {A: 0, B: 2}, {A: 2, B: 3}}, 0, 3)
}

// forceStable fast-forwards the phase machine past the warm-up phases.
func forceStable(s *Simulation) {
	s.phase = PhaseStable
	s.phaseMs = 0
}

// run ticks the simulation with default config in fixed steps until
// totalMs of simulated time has elapsed.
func run(s *Simulation, totalMs, stepMs float64) {
	for elapsed := 0.0; elapsed < totalMs; elapsed += stepMs {
		s.Tick(stepMs, TickConfig{})
	}
}
