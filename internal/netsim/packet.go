package netsim

import "github.com/google/uuid"

// packetStep is the outcome of advancing one packet for one tick.
type packetStep int

const (
	packetInFlight packetStep = iota
	packetArrived
	packetDropped
)

// spawnPacket queues a packet on the given path. The in-flight set is
// hard-capped; when full, the oldest packet is dropped to make room.
// Paths shorter than one edge are rejected.
func (s *Simulation) spawnPacket(kind PacketKind, path []int, correlation string) *Packet {
	if len(path) < 2 {
		return nil
	}
	for len(s.packets) >= maxInFlightPackets {
		s.stats.Dropped[s.packets[0].Kind]++
		s.packets = s.packets[1:]
	}
	p := &Packet{
		Kind:        kind,
		Path:        path,
		Source:      path[0],
		Destination: path[len(path)-1],
		Speed:       speedFor(kind),
		Correlation: correlation,
	}
	s.packets = append(s.packets, p)
	return p
}

// speedFor returns the per-segment travel speed of a packet kind.
func speedFor(kind PacketKind) float64 {
	switch kind {
	case PacketApp:
		return appPacketSpeed
	case PacketAck:
		return ackPacketSpeed
	case PacketLiveness:
		return livenessPacketSpeed
	default:
		return controlPacketSpeed
	}
}

// findPath computes a shortest path between two nodes by breadth-first
// search restricted to healthy nodes. The source is exempt so that a
// recovering node can still originate traffic; ties resolve to the
// first path discovered. Returns nil when no healthy path exists.
func (s *Simulation) findPath(from, to int) []int {
	if from == to {
		return []int{from}
	}
	if !s.nodeHealthy(to) {
		return nil
	}
	parent := make([]int, len(s.nodes))
	for i := range parent {
		parent[i] = -1
	}
	parent[from] = from
	queue := []int{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range s.adjacency[cur] {
			if parent[nb] != -1 || !s.nodeHealthy(nb) {
				continue
			}
			parent[nb] = cur
			if nb == to {
				return unwindPath(parent, from, to)
			}
			queue = append(queue, nb)
		}
	}
	return nil
}

// unwindPath rebuilds the forward path from BFS parent links.
func unwindPath(parent []int, from, to int) []int {
	var rev []int
	for cur := to; ; cur = parent[cur] {
		rev = append(rev, cur)
		if cur == from {
			break
		}
	}
	path := make([]int, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

// reversePath returns the path walked backwards, for acks and pongs.
func reversePath(path []int) []int {
	out := make([]int, len(path))
	for i := range path {
		out[i] = path[len(path)-1-i]
	}
	return out
}

// advancePackets moves every in-flight packet, rerouting around
// non-healthy nodes and resolving arrivals by kind. Arrivals resolve
// after the surviving set is in place so follow-up packets they spawn
// are not lost.
func (s *Simulation) advancePackets(deltaMs, packetMul float64) {
	var survivors []*Packet
	var arrivals []*Packet
	for _, p := range s.packets {
		switch s.stepPacket(p, deltaMs*p.Speed*packetMul) {
		case packetInFlight:
			survivors = append(survivors, p)
		case packetArrived:
			arrivals = append(arrivals, p)
		case packetDropped:
		}
	}
	s.packets = survivors
	for _, p := range arrivals {
		s.resolveArrival(p)
	}
}

// stepPacket rescues or advances a single packet. A packet whose
// remaining path crosses a non-healthy node is rerouted from its
// current node first; if no healthy path remains it is dropped with a
// failure pulse for any endpoint it touched.
func (s *Simulation) stepPacket(p *Packet, progressDelta float64) packetStep {
	if s.unhealthyAhead(p) {
		if !s.reroute(p) {
			s.stats.Dropped[p.Kind]++
			s.pulseFailure(p.Source, p.Destination)
			return packetDropped
		}
	}
	p.Progress += progressDelta
	for p.Progress >= 1 {
		p.Progress -= 1
		p.Segment++
		if p.Segment >= len(p.Path)-1 {
			return packetArrived
		}
	}
	return packetInFlight
}

// unhealthyAhead reports whether any node on the remaining path,
// next hop through destination, is not healthy.
func (s *Simulation) unhealthyAhead(p *Packet) bool {
	for k := p.Segment + 1; k < len(p.Path); k++ {
		if !s.nodeHealthy(p.Path[k]) {
			return true
		}
	}
	return false
}

// reroute replaces the remainder of the path with a fresh healthy route
// from the packet's current node to its original destination. Progress
// restarts on the new first segment.
func (s *Simulation) reroute(p *Packet) bool {
	cur := p.Path[p.Segment]
	fresh := s.findPath(cur, p.Destination)
	if fresh == nil {
		return false
	}
	kept := append([]int{}, p.Path[:p.Segment]...)
	p.Path = append(kept, fresh...)
	p.Progress = 0
	p.Rerouted = true
	s.stats.Rerouted++
	return true
}

// resolveArrival applies the kind-specific arrival behavior. Arrival at
// a destination that stopped being healthy counts as a delivery
// failure, not a resolution.
func (s *Simulation) resolveArrival(p *Packet) {
	if !s.nodeHealthy(p.Destination) {
		s.stats.Dropped[p.Kind]++
		s.pulseFailure(p.Source, p.Destination)
		return
	}
	s.stats.Delivered[p.Kind]++
	switch p.Kind {
	case PacketApp:
		s.learnRoute(p.Path, p.Destination)
		s.pulseDelivered(p.Destination)
		s.spawnPacket(PacketAck, reversePath(p.Path), p.Correlation)
	case PacketAck:
		s.learnRoute(p.Path, p.Destination)
		s.pulseDelivered(p.Destination)
	case PacketControlPing:
		s.learnRoute(p.Path, p.Destination)
		s.spawnPacket(PacketControlPong, reversePath(p.Path), p.Correlation)
	case PacketControlPong:
		s.learnRoute(p.Path, p.Destination)
		s.resolvePong(p.Correlation)
	case PacketLiveness:
		s.exchange(p.Source, p.Destination)
	}
}

// servicePendingSends walks the queued user sends: expired requests are
// dropped with a failure pulse, requests whose source is not healthy
// stay queued, and any send with a healthy path is emitted as an app
// packet and removed from the queue.
func (s *Simulation) servicePendingSends(deltaMs float64) {
	if len(s.pendingSends) == 0 {
		return
	}
	var remaining []PendingSend
	for _, ps := range s.pendingSends {
		ps.DeadlineMs -= deltaMs
		if ps.DeadlineMs <= 0 {
			s.stats.ExpiredSends++
			s.pulseFailure(ps.Source, ps.TargetNode)
			continue
		}
		if !s.nodeHealthy(ps.QueuedNode) {
			remaining = append(remaining, ps)
			continue
		}
		path := s.findPath(ps.QueuedNode, ps.TargetNode)
		if path == nil {
			remaining = append(remaining, ps)
			continue
		}
		s.spawnPacket(PacketApp, path, uuid.NewString())
	}
	s.pendingSends = remaining
}
