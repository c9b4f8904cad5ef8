package events

// Nop is the publisher used when no broker is configured. It swallows
// every event.
type Nop struct{}

// Publish discards the event
func (Nop) Publish(Event) error { return nil }

// Close does nothing
func (Nop) Close() error { return nil }
