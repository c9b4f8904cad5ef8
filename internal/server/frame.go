package server

import (
	"constellation/internal/netsim"
	"constellation/internal/protocol"
)

// buildFrame maps one simulation snapshot onto the wire frame handed to
// renderer clients.
func buildFrame(snap netsim.Snapshot) protocol.Frame {
	frame := protocol.Frame{
		ClockMs:               snap.ClockMs,
		Phase:                 snap.Phase.String(),
		PhaseMs:               snap.PhaseMs,
		Converged:             snap.Converged,
		NeedsSync:             snap.NeedsSync,
		QuietMs:               snap.QuietMs,
		TopologyVersion:       snap.TopologyVersion,
		SyncedTopologyVersion: snap.SyncedTopologyVersion,
		Nodes:                 buildNodes(snap.Nodes),
		Packets:               make([]protocol.FramePacket, len(snap.Packets)),
		DiscoveryEdges:        make([][2]int, len(snap.DiscoveryEdges)),
		PendingSends:          snap.PendingSends,
	}
	for i, p := range snap.Packets {
		frame.Packets[i] = protocol.FramePacket{
			From:     p.From,
			To:       p.To,
			Progress: p.Progress,
			Kind:     p.Kind.String(),
			Rerouted: p.Rerouted,
		}
	}
	for i, e := range snap.DiscoveryEdges {
		frame.DiscoveryEdges[i] = [2]int{e.From, e.To}
	}
	for i, ep := range snap.Endpoints {
		frame.Endpoints[i] = protocol.FrameEndpoint{
			Node:            ep.Node,
			LastDeliveredAt: ep.LastDeliveredAt,
			LastFailedAt:    ep.LastFailedAt,
		}
	}
	return frame
}

// buildInit maps a snapshot onto the immutable scene description sent
// once per connection: canvas extents, node placement, the edge list,
// and the endpoint designations.
func buildInit(snap netsim.Snapshot) protocol.Init {
	init := protocol.Init{
		Width:  snap.Width,
		Height: snap.Height,
		Nodes:  buildNodes(snap.Nodes),
		Edges:  make([][2]int, len(snap.Edges)),
	}
	for i, e := range snap.Edges {
		init.Edges[i] = [2]int{e.A, e.B}
	}
	for i, ep := range snap.Endpoints {
		init.Endpoints[i] = ep.Node
	}
	return init
}

func buildNodes(nodes []netsim.NodeSnapshot) []protocol.FrameNode {
	out := make([]protocol.FrameNode, len(nodes))
	for i, n := range nodes {
		out[i] = protocol.FrameNode{
			Index:    n.Index,
			X:        n.X,
			Y:        n.Y,
			Status:   n.Status.String(),
			StatusMs: n.StatusMs,
			PulseAt:  n.PulseAt,
		}
	}
	return out
}
