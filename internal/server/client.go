package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"constellation/internal/protocol"
)

// Client is one admitted renderer connection. The host never waits on a
// client: frames go through the buffered send channel and a client that
// stops draining it is removed by the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// readPump consumes client messages, staging any commands, until the
// connection drops.
func (c *Client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.WithField("client", c.id).WithError(err).Debug("Client read failed")
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage stages a command message; anything else from a client
// is discarded.
func (c *Client) handleMessage(data []byte) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		c.hub.log.WithField("client", c.id).WithError(err).Debug("Discarding malformed message")
		return
	}
	if msg.Type != protocol.MessageTypeCommand {
		c.hub.log.WithFields(logrus.Fields{"client": c.id, "type": msg.Type}).Debug("Discarding unexpected message")
		return
	}

	var cmd protocol.Command
	if err := msg.DecodePayload(&cmd); err != nil {
		c.hub.log.WithField("client", c.id).WithError(err).Debug("Discarding malformed command")
		return
	}
	c.hub.Stage(cmd)
}

// writePump pushes queued messages and keepalive pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
