// Package events publishes simulation lifecycle events to an external
// broker so other site services can react to the constellation without
// consuming the frame stream.
package events

// Event kinds
const (
	KindSendDelivered   = "send_delivered"
	KindSendFailed      = "send_failed"
	KindConverged       = "converged"
	KindDesynced        = "desynced"
	KindTopologyChanged = "topology_changed"
	KindPhaseChanged    = "phase_changed"
	KindNodeToggled     = "node_toggled"
)

// Event is one simulation lifecycle occurrence. At is the simulation
// clock in milliseconds. Node and Endpoint are -1 when not applicable.
type Event struct {
	Kind     string  `json:"kind"`
	At       float64 `json:"at_ms"`
	Node     int     `json:"node"`
	Endpoint int     `json:"endpoint"`
	Detail   string  `json:"detail,omitempty"`
}

// Publisher delivers events to an external sink. Publish is called from
// the frame loop and must not block it.
type Publisher interface {
	Publish(Event) error
	Close() error
}
