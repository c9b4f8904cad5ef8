package netsim

import (
	"math"
	"math/rand"
	"sort"
)

// BuildConfig parameterizes topology construction. The same seed over
// the same node count and extents yields an identical constellation.
type BuildConfig struct {
	NodeCount int
	Width     float64
	Height    float64
	Seed      int64
}

const (
	minNodeCount   = 2
	canvasMargin   = 0.12
	chordStride    = 5
	spokeWindowRad = 0.9
)

// Build deterministically derives node placement and the connectivity
// graph, designates the two endpoints, removes their direct edge, and
// seeds the routing tables with self and direct-neighbor entries.
func Build(cfg BuildConfig) *Simulation {
	count := cfg.NodeCount
	if count < minNodeCount {
		count = minNodeCount
	}
	width, height := cfg.Width, cfg.Height
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 600
	}

	s := &Simulation{
		width:        width,
		height:       height,
		pendingPongs: make(map[string]*pendingPong),
		missedPongs:  make(map[string]int),
		probeTimer:   probeIntervalMs,
		pushTimer:    routingPushIntervalMs,
		phase:        PhaseDiscovering,
		sweepTimer:   discoverySweepMs,
		needsSync:    true,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
	}

	s.placeNodes(count)
	s.buildEdges()
	s.designateEndpoints()
	s.deriveAdjacency()
	s.seedRouting()
	s.neighborCursors = make([]int, count)
	return s
}

// bandCountFor picks how many concentric bands the constellation uses.
func bandCountFor(count int) int {
	if count < 12 {
		return 2
	}
	return 3
}

// bandFraction returns the normalized radius of a band, innermost first.
func bandFraction(band, bands int) float64 {
	if bands <= 1 {
		return 1
	}
	return 0.45 + 0.55*float64(band)/float64(bands-1)
}

// placeNodes assigns each node a band, a jittered angle, and a jittered
// radius, then projects the canvas positions.
func (s *Simulation) placeNodes(count int) {
	bands := bandCountFor(count)
	step := 2 * math.Pi / float64(count)
	s.nodes = make([]Node, count)
	for i := range s.nodes {
		s.nodes[i] = Node{
			Index:        i,
			Band:         i % bands,
			Angle:        float64(i)*step + (s.rng.Float64()-0.5)*step*0.6,
			RadialJitter: 1 + (s.rng.Float64()-0.5)*0.12,
			Status:       StatusHealthy,
		}
	}
	s.projectPositions()
}

// projectPositions maps placement parameters onto the current canvas.
func (s *Simulation) projectPositions() {
	bands := bandCountFor(len(s.nodes))
	cx, cy := s.width/2, s.height/2
	rx := s.width / 2 * (1 - canvasMargin)
	ry := s.height / 2 * (1 - canvasMargin)
	for i := range s.nodes {
		n := &s.nodes[i]
		f := bandFraction(n.Band, bands) * n.RadialJitter
		n.X = cx + math.Cos(n.Angle)*rx*f
		n.Y = cy + math.Sin(n.Angle)*ry*f
	}
}

// Resize refits node positions to new canvas extents. The graph and all
// routing state are untouched.
func (s *Simulation) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.width, s.height = width, height
	s.projectPositions()
}

// buildEdges applies the three edge rules in order: a ring over the
// angularly sorted nodes, long chords at a fixed stride, and radial
// spokes toward the nearest next-band candidate. Duplicates are
// rejected.
func (s *Simulation) buildEdges() {
	seen := make(map[[2]int]struct{})
	add := func(a, b int) {
		if a == b {
			return
		}
		if a > b {
			a, b = b, a
		}
		key := [2]int{a, b}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		s.edges = append(s.edges, Edge{A: a, B: b})
	}

	order := make([]int, len(s.nodes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return s.nodes[order[a]].Angle < s.nodes[order[b]].Angle
	})
	for k := range order {
		add(order[k], order[(k+1)%len(order)])
	}

	if n := len(order); n >= 8 {
		span := n / 3
		for k := 0; k < n; k += chordStride {
			add(order[k], order[(k+span)%n])
		}
	}

	bands := bandCountFor(len(s.nodes))
	for i := range s.nodes {
		if s.nodes[i].Band >= bands-1 {
			continue
		}
		if best := s.bestSpoke(i, bands); best >= 0 {
			add(i, best)
		}
	}
}

// bestSpoke finds the nearest candidate in the next band within the
// angular window, scored by combined angular and radial distance. Ties
// keep the first candidate found.
func (s *Simulation) bestSpoke(i, bands int) int {
	from := &s.nodes[i]
	fromR := bandFraction(from.Band, bands) * from.RadialJitter
	best, bestScore := -1, 0.0
	for j := range s.nodes {
		cand := &s.nodes[j]
		if cand.Band != from.Band+1 {
			continue
		}
		da := angularDelta(from.Angle, cand.Angle)
		if da > spokeWindowRad {
			continue
		}
		dr := math.Abs(bandFraction(cand.Band, bands)*cand.RadialJitter - fromR)
		score := da/spokeWindowRad + dr
		if best < 0 || score < bestScore {
			best, bestScore = j, score
		}
	}
	return best
}

// angularDelta returns the wrap-aware absolute angle between two rays.
func angularDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// designateEndpoints picks the min-x and max-x nodes as the two
// conversation endpoints and removes their direct edge so the pair must
// learn a route through intermediate hops.
func (s *Simulation) designateEndpoints() {
	minI, maxI := 0, 0
	for i := range s.nodes {
		if s.nodes[i].X < s.nodes[minI].X {
			minI = i
		}
		if s.nodes[i].X > s.nodes[maxI].X {
			maxI = i
		}
	}
	if minI == maxI {
		minI, maxI = 0, len(s.nodes)-1
	}
	s.endpoints[EndpointA] = Endpoint{Node: minI}
	s.endpoints[EndpointB] = Endpoint{Node: maxI}

	a, b := minI, maxI
	if a > b {
		a, b = b, a
	}
	for k, e := range s.edges {
		if e.A == a && e.B == b {
			s.edges = append(s.edges[:k], s.edges[k+1:]...)
			break
		}
	}
}

// deriveAdjacency rebuilds per-node neighbor lists from the edge set.
func (s *Simulation) deriveAdjacency() {
	s.adjacency = make([][]int, len(s.nodes))
	for _, e := range s.edges {
		s.adjacency[e.A] = append(s.adjacency[e.A], e.B)
		s.adjacency[e.B] = append(s.adjacency[e.B], e.A)
	}
}

// seedRouting initializes the next-hop tables with self entries and
// direct neighbors, leaving everything else unknown.
func (s *Simulation) seedRouting() {
	count := len(s.nodes)
	s.table = make([][]int, count)
	s.version = make([]uint64, count)
	s.shared = make([][]uint64, count)
	for i := 0; i < count; i++ {
		row := make([]int, count)
		for j := range row {
			row[j] = unknownHop
		}
		row[i] = i
		for _, nb := range s.adjacency[i] {
			row[nb] = nb
		}
		s.table[i] = row
		s.version[i] = 1
		s.shared[i] = make([]uint64, count)
	}
}
