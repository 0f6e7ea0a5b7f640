// Package websocket is the realtime transport: a hub of diagram rooms
// over gorilla connections, relaying change batches, cursor moves and
// roster updates between participants.
package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"collabgraph-backend/pkg/observability"
)

const healthCheckInterval = 30 * time.Second

// Hub owns every connected client and the per-diagram rooms. Client
// lifecycle flows through the register/unregister channels; room
// membership and broadcasting use the lock directly.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	maxConnections int

	logger  *zap.Logger
	metrics *observability.Metrics

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHub creates the hub. maxConnections <= 0 means unlimited.
func NewHub(maxConnections int, metrics *observability.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]map[*Client]struct{}),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		maxConnections: maxConnections,
		logger:         logger,
		metrics:        metrics,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Run processes client registration until Stop is called.
func (h *Hub) Run() {
	defer close(h.doneCh)
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.logStats()
		case <-h.stopCh:
			h.closeAll()
			return
		}
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxConnections > 0 && len(h.clients) >= h.maxConnections {
		h.logger.Warn("Connection limit reached, rejecting client",
			zap.String("socketId", client.id),
			zap.Int("limit", h.maxConnections))
		close(client.send)
		return
	}
	h.clients[client] = struct{}{}
	h.metrics.ActiveConnections.Inc()
	h.logger.Debug("Client registered",
		zap.String("socketId", client.id),
		zap.Int("connections", len(h.clients)))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for diagramID, room := range h.rooms {
		if _, ok := room[client]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, diagramID)
			}
		}
	}
	close(client.send)
	h.metrics.ActiveConnections.Dec()
	h.logger.Debug("Client unregistered",
		zap.String("socketId", client.id),
		zap.Int("connections", len(h.clients)))
}

// JoinRoom adds the client to the diagram's room.
func (h *Hub) JoinRoom(client *Client, diagramID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[diagramID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[diagramID] = room
	}
	room[client] = struct{}{}
}

// LeaveRoom removes the client from the diagram's room.
func (h *Hub) LeaveRoom(client *Client, diagramID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[diagramID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, diagramID)
		}
	}
}

// RoomSize reports the number of clients in the diagram's room.
func (h *Hub) RoomSize(diagramID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[diagramID])
}

// BroadcastToDiagram sends the payload to every client in the diagram's
// room except the excluded user. Clients whose send buffer is full are
// evicted rather than allowed to stall the room.
func (h *Hub) BroadcastToDiagram(diagramID, excludeUserID, messageType string, payload interface{}) error {
	message, err := NewServerMessage(messageType, payload)
	if err != nil {
		return err
	}
	h.metrics.BroadcastsTotal.WithLabelValues(messageType).Inc()

	h.mu.RLock()
	var slow []*Client
	for client := range h.rooms[diagramID] {
		if excludeUserID != "" && client.UserID() == excludeUserID {
			continue
		}
		select {
		case client.send <- message:
			h.metrics.MessagesSent.Inc()
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.metrics.MessagesFailed.Inc()
		h.logger.Warn("Evicting slow client",
			zap.String("socketId", client.id),
			zap.String("diagramId", diagramID))
		h.removeClient(client)
	}
	return nil
}

// SendToClient queues a message on one client's connection.
func (h *Hub) SendToClient(client *Client, messageType string, payload interface{}) error {
	message, err := NewServerMessage(messageType, payload)
	if err != nil {
		return err
	}
	select {
	case client.send <- message:
		h.metrics.MessagesSent.Inc()
		return nil
	default:
		h.metrics.MessagesFailed.Inc()
		h.removeClient(client)
		return errSendBufferFull
	}
}

func (h *Hub) logStats() {
	h.mu.RLock()
	connections := len(h.clients)
	rooms := len(h.rooms)
	h.mu.RUnlock()
	h.logger.Debug("Hub health",
		zap.Int("connections", connections),
		zap.Int("rooms", rooms))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		h.metrics.ActiveConnections.Dec()
	}
	h.rooms = make(map[string]map[*Client]struct{})
}
