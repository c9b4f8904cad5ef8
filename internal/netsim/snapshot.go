package netsim

// Snapshot is the read-only view handed to renderers, built from value
// copies so no live simulation state leaks out.
type Snapshot struct {
	ClockMs               float64
	Phase                 Phase
	PhaseMs               float64
	Converged             bool
	NeedsSync             bool
	QuietMs               float64
	TopologyVersion       uint64
	SyncedTopologyVersion uint64
	Width                 float64
	Height                float64
	Nodes                 []NodeSnapshot
	Edges                 []Edge
	Packets               []PacketSnapshot
	DiscoveryEdges        []DiscoveryEdge
	Endpoints             [2]Endpoint
	PendingSends          int
	Stats                 Stats
}

// NodeSnapshot is one node's renderable state.
type NodeSnapshot struct {
	Index    int
	X        float64
	Y        float64
	Status   NodeStatus
	StatusMs float64
	PulseAt  float64
}

// PacketSnapshot is one packet's renderable position: the edge it is
// crossing and its progress along that edge.
type PacketSnapshot struct {
	From     int
	To       int
	Progress float64
	Kind     PacketKind
	Rerouted bool
}

// Snapshot builds a point-in-time copy of everything a renderer needs.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		ClockMs:               s.clockMs,
		Phase:                 s.phase,
		PhaseMs:               s.phaseMs,
		Converged:             s.isConverged(),
		NeedsSync:             s.needsSync,
		QuietMs:               s.quietMs,
		TopologyVersion:       s.topologyVersion,
		SyncedTopologyVersion: s.syncedTopologyVersion,
		Width:                 s.width,
		Height:                s.height,
		Nodes:                 make([]NodeSnapshot, len(s.nodes)),
		Edges:                 append([]Edge{}, s.edges...),
		Packets:               make([]PacketSnapshot, 0, len(s.packets)),
		DiscoveryEdges:        append([]DiscoveryEdge{}, s.discoveryEdges...),
		Endpoints:             s.endpoints,
		PendingSends:          len(s.pendingSends),
		Stats:                 s.stats,
	}
	for i, n := range s.nodes {
		snap.Nodes[i] = NodeSnapshot{
			Index:    n.Index,
			X:        n.X,
			Y:        n.Y,
			Status:   n.Status,
			StatusMs: n.StatusMs,
			PulseAt:  n.PulseAt,
		}
	}
	for _, p := range s.packets {
		snap.Packets = append(snap.Packets, PacketSnapshot{
			From:     p.Path[p.Segment],
			To:       p.Path[p.Segment+1],
			Progress: p.Progress,
			Kind:     p.Kind,
			Rerouted: p.Rerouted,
		})
	}
	return snap
}

// Phase returns the current lifecycle phase.
func (s *Simulation) Phase() Phase { return s.phase }

// Converged reports whether every routing entry is known.
func (s *Simulation) Converged() bool { return s.isConverged() }

// NeedsSync reports whether the network is still synchronizing.
func (s *Simulation) NeedsSync() bool { return s.needsSync }

// NodeCount returns the size of the closed node set.
func (s *Simulation) NodeCount() int { return len(s.nodes) }

// EndpointNode returns the node index of a designated endpoint.
func (s *Simulation) EndpointNode(id EndpointID) int { return s.endpoints[id].Node }

// ClockMs returns the accumulated simulation clock in milliseconds.
func (s *Simulation) ClockMs() float64 { return s.clockMs }
