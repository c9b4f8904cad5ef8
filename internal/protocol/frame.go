package protocol

// Command names accepted from renderer clients
const (
	CommandToggleNode    = "toggle_node"
	CommandRequestSend   = "request_send"
	CommandReducedMotion = "reduced_motion"
	CommandResize        = "resize"
)

// Hello is the client's opening message carrying its schema version
type Hello struct {
	SchemaVersion string `json:"schema_version"`
	ReducedMotion bool   `json:"reduced_motion,omitempty"`
}

// HelloAck confirms the negotiated schema and assigns the client ID
type HelloAck struct {
	SchemaVersion string `json:"schema_version"`
	ClientID      string `json:"client_id"`
}

// Init carries the immutable scene a client needs before the frame
// stream starts: canvas extents, node placement, the edge list, and
// the two designated endpoints
type Init struct {
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Nodes     []FrameNode `json:"nodes"`
	Edges     [][2]int    `json:"edges"`
	Endpoints [2]int      `json:"endpoints"`
}

// Frame is one renderable tick of the simulation
type Frame struct {
	ClockMs               float64          `json:"clock_ms"`
	Phase                 string           `json:"phase"`
	PhaseMs               float64          `json:"phase_ms"`
	Converged             bool             `json:"converged"`
	NeedsSync             bool             `json:"needs_sync"`
	QuietMs               float64          `json:"quiet_ms"`
	TopologyVersion       uint64           `json:"topology_version"`
	SyncedTopologyVersion uint64           `json:"synced_topology_version"`
	Nodes                 []FrameNode      `json:"nodes"`
	Packets               []FramePacket    `json:"packets"`
	DiscoveryEdges        [][2]int         `json:"discovery_edges"`
	Endpoints             [2]FrameEndpoint `json:"endpoints"`
	PendingSends          int              `json:"pending_sends"`
}

// FrameNode is one node's renderable state
type FrameNode struct {
	Index    int     `json:"index"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Status   string  `json:"status"`
	StatusMs float64 `json:"status_ms"`
	PulseAt  float64 `json:"pulse_at,omitempty"`
}

// FramePacket is one packet's renderable position
type FramePacket struct {
	From     int     `json:"from"`
	To       int     `json:"to"`
	Progress float64 `json:"progress"`
	Kind     string  `json:"kind"`
	Rerouted bool    `json:"rerouted,omitempty"`
}

// FrameEndpoint is one conversation end with its pulse stamps
type FrameEndpoint struct {
	Node            int     `json:"node"`
	LastDeliveredAt float64 `json:"last_delivered_at,omitempty"`
	LastFailedAt    float64 `json:"last_failed_at,omitempty"`
}

// Command is a user mutation relayed by a renderer client. Fields
// beyond Name are interpreted per command
type Command struct {
	Name       string  `json:"name"`
	Node       int     `json:"node,omitempty"`
	From       int     `json:"from,omitempty"`
	To         int     `json:"to,omitempty"`
	DeadlineMs float64 `json:"deadline_ms,omitempty"`
	Enabled    bool    `json:"enabled,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
}

// ErrorInfo describes a rejected message or command
type ErrorInfo struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Error codes sent to clients
const (
	ErrorCodeIncompatible   = "incompatible_version"
	ErrorCodeBadMessage     = "bad_message"
	ErrorCodeUnknownCommand = "unknown_command"
	ErrorCodeBadCommand     = "bad_command"
)

// NewFrameMessage wraps a frame for broadcast
func NewFrameMessage(f Frame) (*Message, error) {
	return NewMessage(MessageTypeFrame, f)
}

// NewInitMessage wraps the scene description
func NewInitMessage(init Init) (*Message, error) {
	return NewMessage(MessageTypeInit, init)
}

// NewAckMessage wraps the handshake confirmation
func NewAckMessage(ack HelloAck) (*Message, error) {
	return NewMessage(MessageTypeAck, ack)
}

// NewErrorMessage wraps a rejection
func NewErrorMessage(code, reason string) (*Message, error) {
	return NewMessage(MessageTypeError, ErrorInfo{Code: code, Reason: reason})
}
