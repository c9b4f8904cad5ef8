package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes events to per-kind NATS subjects under a
// common prefix
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the broker at the given URL
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("constellation"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Publish fires the event at its kind subject. Publishing is
// fire-and-forget; the broker buffers and the caller only sees
// connection-level failures.
func (p *NATSPublisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Kind, err)
	}

	if err := p.nc.Publish(SubjectFor(p.prefix, ev.Kind), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// Close flushes buffered publishes and closes the connection
func (p *NATSPublisher) Close() error {
	defer p.nc.Close()
	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

// SubjectFor builds the subject an event kind is published on
func SubjectFor(prefix, kind string) string {
	return prefix + "." + kind
}
