package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the deadline for a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; change batches can be large.
	maxMessageSize = 512 * 1024

	// sendBufferSize is the per-client outbound queue length.
	sendBufferSize = 256
)

var errSendBufferFull = errors.New("client send buffer full")

// Client is one websocket connection and its session state.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	server *Server
	logger *zap.Logger

	mu            sync.Mutex
	userID        string
	username      string
	authenticated bool
	joined        map[string]struct{}
}

func newClient(id string, hub *Hub, conn *websocket.Conn, server *Server, logger *zap.Logger) *Client {
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		server: server,
		logger: logger,
		joined: make(map[string]struct{}),
	}
}

// UserID returns the authenticated user id, empty before authenticate.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Username returns the authenticated username.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// IsAuthenticated reports whether authenticate has succeeded.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *Client) setIdentity(userID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.username = username
	c.authenticated = true
}

func (c *Client) markJoined(diagramID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[diagramID] = struct{}{}
}

func (c *Client) markLeft(diagramID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joined, diagramID)
}

func (c *Client) hasJoined(diagramID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[diagramID]
	return ok
}

func (c *Client) joinedDiagrams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.joined))
	for id := range c.joined {
		ids = append(ids, id)
	}
	return ids
}

// readPump pulls frames off the connection and dispatches them. It owns
// the read side; on exit the client is torn down.
func (c *Client) readPump() {
	defer func() {
		c.server.handleDisconnect(c)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Unexpected close",
					zap.String("socketId", c.id),
					zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("Discarding malformed message",
				zap.String("socketId", c.id),
				zap.Error(err))
			c.server.sendError(c, "malformed message")
			continue
		}
		c.server.dispatch(c, msg)
	}
}

// writePump drains the send queue onto the connection and keeps the
// peer alive with pings. It owns the write side.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
