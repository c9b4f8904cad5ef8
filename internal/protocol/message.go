package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types for renderer communication
const (
	MessageTypeHello   = "hello"
	MessageTypeAck     = "ack"
	MessageTypeInit    = "init"
	MessageTypeFrame   = "frame"
	MessageTypeCommand = "command"
	MessageTypeError   = "error"
)

// Message is the envelope for every exchange with a renderer client
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewMessage wraps a payload in a stamped envelope
func NewMessage(msgType string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}

// Encode serializes a message to JSON
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage deserializes a message from JSON
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodePayload unmarshals the envelope payload into the given struct
func (m *Message) DecodePayload(out any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}
