package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"constellation/internal/protocol"
)

const (
	// Time allowed to write a message to a client
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from a client
	pongWait = 60 * time.Second

	// Ping cadence; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for a freshly upgraded connection to say hello
	helloWait = 5 * time.Second

	// Maximum inbound message size; clients only send commands
	maxMessageSize = 4096

	// Per-client outbound buffer in messages
	sendBuffer = 16
)

// Hub tracks connected renderer clients, fans frames out to them, and
// stages the commands they relay for the frame loop to apply. Clients
// register through the hello handshake and are dropped the moment they
// cannot keep up with the frame stream.
type Hub struct {
	log  *logrus.Logger
	meta *protocol.MetadataManager

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
	init    []byte

	commandsMu sync.Mutex
	pending    []protocol.Command

	activeConns sync.WaitGroup
}

// NewHub creates a hub speaking the given schema
func NewHub(log *logrus.Logger, meta *protocol.MetadataManager) *Hub {
	return &Hub{
		log:  log,
		meta: meta,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The frame stream is world-readable scene state
				return true
			},
		},
		clients: make(map[string]*Client),
	}
}

// SetInit replaces the scene description handed to connecting clients
func (h *Hub) SetInit(data []byte) {
	h.mu.Lock()
	h.init = data
	h.mu.Unlock()
}

func (h *Hub) initMessage() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.init
}

// Stage queues a client command for the next simulation step
func (h *Hub) Stage(cmd protocol.Command) {
	h.commandsMu.Lock()
	h.pending = append(h.pending, cmd)
	h.commandsMu.Unlock()
}

// DrainCommands returns staged commands in arrival order and clears the
// queue
func (h *Hub) DrainCommands() []protocol.Command {
	h.commandsMu.Lock()
	defer h.commandsMu.Unlock()
	out := h.pending
	h.pending = nil
	return out
}

// ClientCount returns the number of admitted clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an encoded message to every admitted client. A
// client whose buffer is full is dropped rather than allowed to stall
// the frame loop.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("client", c.id).Warn("Dropping client: send buffer full")
			h.removeClient(c)
		}
	}
}

// HandleWS upgrades the connection and hands it to the handshake
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	h.activeConns.Add(1)
	go h.serveConn(conn)
}

// serveConn runs one connection end to end: handshake, admission, pumps,
// removal.
func (h *Hub) serveConn(conn *websocket.Conn) {
	defer h.activeConns.Done()

	client, err := h.handshake(conn)
	if err != nil {
		h.log.WithError(err).Debug("Handshake rejected")
		conn.Close()
		return
	}

	h.addClient(client)
	h.log.WithField("client", client.id).Info("Client connected")

	go client.writePump()
	client.readPump()

	h.removeClient(client)
	h.log.WithField("client", client.id).Info("Client disconnected")
}

// handshake performs the hello exchange: the client leads with its
// schema version, the hub answers with an ack and the current scene, or
// an error before closing. A hello may also carry the client's reduced
// motion preference, which is staged like any other command.
func (h *Hub) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(helloWait)); err != nil {
		return nil, err
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}

	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		h.reject(conn, protocol.ErrorCodeBadMessage, "malformed message")
		return nil, fmt.Errorf("failed to decode hello: %w", err)
	}
	if msg.Type != protocol.MessageTypeHello {
		h.reject(conn, protocol.ErrorCodeBadMessage, "expected hello")
		return nil, fmt.Errorf("expected %s, got %s", protocol.MessageTypeHello, msg.Type)
	}

	var hello protocol.Hello
	if err := msg.DecodePayload(&hello); err != nil {
		h.reject(conn, protocol.ErrorCodeBadMessage, "malformed hello payload")
		return nil, err
	}

	compatible, err := h.meta.IsCompatible(hello.SchemaVersion)
	if err != nil || !compatible {
		h.reject(conn, protocol.ErrorCodeIncompatible,
			fmt.Sprintf("schema %s unsupported, host speaks %s", hello.SchemaVersion, h.meta.Current()))
		return nil, fmt.Errorf("incompatible schema %q", hello.SchemaVersion)
	}

	client := newClient(conn, h)

	ack, err := protocol.NewAckMessage(protocol.HelloAck{
		SchemaVersion: h.meta.Current(),
		ClientID:      client.id,
	})
	if err != nil {
		return nil, err
	}
	if err := h.writeDirect(conn, ack); err != nil {
		return nil, fmt.Errorf("failed to send ack: %w", err)
	}

	if init := h.initMessage(); init != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, init); err != nil {
			return nil, fmt.Errorf("failed to send init: %w", err)
		}
	}

	if hello.ReducedMotion {
		h.Stage(protocol.Command{Name: protocol.CommandReducedMotion, Enabled: true})
	}

	return client, nil
}

// reject sends an error message and a close frame to a connection that
// failed the handshake. Write errors are ignored; the connection is
// closing anyway.
func (h *Hub) reject(conn *websocket.Conn, code, reason string) {
	msg, err := protocol.NewErrorMessage(code, reason)
	if err != nil {
		return
	}
	h.writeDirect(conn, msg)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code))
}

// writeDirect encodes and writes a message outside the pump, used only
// during the handshake.
func (h *Hub) writeDirect(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

// removeClient deregisters a client and closes its send channel exactly
// once, regardless of how many paths race to remove it.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects every client and waits for their pumps to finish
func (h *Hub) Close() {
	h.mu.Lock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()

	h.activeConns.Wait()
}
