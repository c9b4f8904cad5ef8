package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MessageTypeCommand, Command{Name: CommandToggleNode, Node: 7})
	require.NoError(t, err)
	require.Equal(t, MessageTypeCommand, msg.Type)
	require.False(t, msg.Timestamp.IsZero())

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeCommand, decoded.Type)

	var cmd Command
	require.NoError(t, decoded.DecodePayload(&cmd))
	assert.Equal(t, CommandToggleNode, cmd.Name)
	assert.Equal(t, 7, cmd.Node)
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeMessage([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodePayloadErrors(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "missing payload", raw: `{"type":"command"}`},
		{name: "payload of the wrong shape", raw: `{"type":"command","payload":[1,2,3]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tc.raw))
			require.NoError(t, err)

			var cmd Command
			assert.Error(t, msg.DecodePayload(&cmd))
		})
	}
}

func TestFrameMessageCarriesPayload(t *testing.T) {
	frame := Frame{
		ClockMs:   1234,
		Phase:     "stable",
		Converged: true,
		Nodes: []FrameNode{
			{Index: 0, X: 10, Y: 20, Status: "healthy"},
		},
		Packets: []FramePacket{
			{From: 0, To: 1, Progress: 0.5, Kind: "app", Rerouted: true},
		},
	}

	msg, err := NewFrameMessage(frame)
	require.NoError(t, err)
	require.Equal(t, MessageTypeFrame, msg.Type)

	var got Frame
	require.NoError(t, msg.DecodePayload(&got))
	assert.Equal(t, frame.ClockMs, got.ClockMs)
	assert.Equal(t, frame.Phase, got.Phase)
	assert.True(t, got.Converged)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, 10.0, got.Nodes[0].X)
	require.Len(t, got.Packets, 1)
	assert.True(t, got.Packets[0].Rerouted)
}

func TestErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage(ErrorCodeIncompatible, "schema 0.4.0 is too old")
	require.NoError(t, err)
	require.Equal(t, MessageTypeError, msg.Type)

	var info ErrorInfo
	require.NoError(t, msg.DecodePayload(&info))
	assert.Equal(t, ErrorCodeIncompatible, info.Code)
	assert.Contains(t, info.Reason, "too old")
}
