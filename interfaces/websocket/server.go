package websocket

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"collabgraph-backend/application/collab"
	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/entities"
	"collabgraph-backend/pkg/observability"
)

// Presence is the slice of the presence cache the transport needs.
type Presence interface {
	Bind(ctx context.Context, userID, socketID string)
	Touch(ctx context.Context, userID string)
	Unbind(ctx context.Context, userID string)
}

// Server upgrades HTTP requests and routes socket messages to the
// session coordinator.
type Server struct {
	hub         *Hub
	coordinator *collab.Coordinator
	presence    Presence
	users       ports.UserRepository
	diagrams    ports.DiagramRepository
	metrics     *observability.Metrics
	logger      *zap.Logger

	// jwtSecret enables token checks on authenticate when non-empty.
	jwtSecret string

	upgrader gorillaws.Upgrader
}

// NewServer creates the websocket server.
func NewServer(
	hub *Hub,
	coordinator *collab.Coordinator,
	presence Presence,
	users ports.UserRepository,
	diagrams ports.DiagramRepository,
	metrics *observability.Metrics,
	jwtSecret string,
	checkOrigin func(*http.Request) bool,
	logger *zap.Logger,
) *Server {
	return &Server{
		hub:         hub,
		coordinator: coordinator,
		presence:    presence,
		users:       users,
		diagrams:    diagrams,
		metrics:     metrics,
		jwtSecret:   jwtSecret,
		logger:      logger,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeWS is the HTTP handler that upgrades to a websocket connection.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.New().String(), s.hub, conn, s, s.logger)
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) dispatch(client *Client, msg ClientMessage) {
	switch msg.Type {
	case MsgAuthenticate:
		s.handleAuthenticate(client, msg)
	case MsgJoinDiagram:
		s.handleJoinDiagram(client, msg)
	case MsgLeaveDiagram:
		s.handleLeaveDiagram(client, msg)
	case MsgDiagramChange:
		s.handleDiagramChange(client, msg)
	case MsgCursorMove:
		s.handleCursorMove(client, msg)
	default:
		s.sendError(client, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (s *Server) handleAuthenticate(client *Client, msg ClientMessage) {
	ctx := context.Background()

	if msg.UserID == "" {
		s.sendAuthError(client, "userId is required")
		return
	}
	user, err := s.users.GetByID(ctx, msg.UserID)
	if err != nil {
		s.sendAuthError(client, "unknown user")
		return
	}
	if s.jwtSecret != "" {
		if err := s.verifyToken(msg.Token, msg.UserID); err != nil {
			s.logger.Warn("Token rejected",
				zap.String("userId", msg.UserID),
				zap.Error(err))
			s.sendAuthError(client, "invalid token")
			return
		}
	}

	client.setIdentity(user.ID, user.Username)
	s.presence.Bind(ctx, user.ID, client.id)

	s.hub.SendToClient(client, MsgAuthenticated, map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
		"socketId": client.id,
	})
	s.logger.Info("Client authenticated",
		zap.String("userId", user.ID),
		zap.String("socketId", client.id))
}

func (s *Server) handleJoinDiagram(client *Client, msg ClientMessage) {
	ctx := context.Background()

	if !client.IsAuthenticated() {
		s.sendError(client, "authenticate first")
		return
	}
	if msg.DiagramID == "" {
		s.sendError(client, "diagramId is required")
		return
	}
	diagram, err := s.diagrams.GetByID(ctx, msg.DiagramID)
	if err != nil {
		s.sendError(client, "diagram not found")
		return
	}
	if !diagram.CanAccess(client.UserID()) {
		s.sendError(client, "access denied")
		return
	}

	if _, err := s.coordinator.AddParticipant(ctx, msg.DiagramID, client.UserID(), client.id); err != nil {
		s.logger.Error("Join failed",
			zap.String("diagramId", msg.DiagramID),
			zap.String("userId", client.UserID()),
			zap.Error(err))
		s.sendError(client, "failed to join diagram")
		return
	}
	s.hub.JoinRoom(client, msg.DiagramID)
	client.markJoined(msg.DiagramID)

	s.hub.BroadcastToDiagram(msg.DiagramID, client.UserID(), MsgUserJoined, map[string]interface{}{
		"diagramId": msg.DiagramID,
		"userId":    client.UserID(),
		"username":  client.Username(),
	})
	s.broadcastParticipants(ctx, msg.DiagramID)
}

func (s *Server) handleLeaveDiagram(client *Client, msg ClientMessage) {
	ctx := context.Background()

	if !client.IsAuthenticated() || msg.DiagramID == "" {
		return
	}
	if err := s.coordinator.RemoveParticipant(ctx, msg.DiagramID, client.UserID()); err != nil {
		s.logger.Warn("Leave failed",
			zap.String("diagramId", msg.DiagramID),
			zap.Error(err))
	}
	s.hub.LeaveRoom(client, msg.DiagramID)
	client.markLeft(msg.DiagramID)

	s.hub.BroadcastToDiagram(msg.DiagramID, client.UserID(), MsgUserLeft, map[string]interface{}{
		"diagramId": msg.DiagramID,
		"userId":    client.UserID(),
		"username":  client.Username(),
	})
	s.broadcastParticipants(ctx, msg.DiagramID)
}

func (s *Server) handleDiagramChange(client *Client, msg ClientMessage) {
	ctx := context.Background()

	if !client.IsAuthenticated() {
		s.sendError(client, "authenticate first")
		return
	}
	if !client.hasJoined(msg.DiagramID) {
		s.sendError(client, "join the diagram first")
		return
	}
	if len(msg.Changes) == 0 {
		return
	}
	for i := range msg.Changes {
		if err := msg.Changes[i].Validate(); err != nil {
			s.sendError(client, fmt.Sprintf("invalid change: %v", err))
			return
		}
		msg.Changes[i].UserID = client.UserID()
	}

	if err := s.coordinator.BroadcastChanges(ctx, msg.DiagramID, client.UserID(), client.Username(), msg.Changes, msg.Version); err != nil {
		s.logger.Error("Change broadcast failed",
			zap.String("diagramId", msg.DiagramID),
			zap.Error(err))
		s.sendError(client, "failed to broadcast changes")
		return
	}
	s.metrics.ChangesRelayed.Add(float64(len(msg.Changes)))
	s.presence.Touch(ctx, client.UserID())
}

func (s *Server) handleCursorMove(client *Client, msg ClientMessage) {
	ctx := context.Background()

	if !client.IsAuthenticated() || !client.hasJoined(msg.DiagramID) {
		return
	}
	cursor := entities.Cursor{X: msg.X, Y: msg.Y}
	if err := s.coordinator.UpdateCursor(ctx, msg.DiagramID, client.UserID(), cursor); err != nil {
		s.logger.Debug("Cursor update skipped",
			zap.String("diagramId", msg.DiagramID),
			zap.Error(err))
		return
	}
	s.coordinator.BroadcastCursor(msg.DiagramID, client.UserID(), client.Username(), cursor)
	s.presence.Touch(ctx, client.UserID())
}

// handleDisconnect sweeps the user out of every session the connection
// had joined and notifies the affected rooms.
func (s *Server) handleDisconnect(client *Client) {
	ctx := context.Background()

	if !client.IsAuthenticated() {
		return
	}
	for _, diagramID := range client.joinedDiagrams() {
		s.hub.LeaveRoom(client, diagramID)
	}

	removed, err := s.coordinator.RemoveFromAllSessions(ctx, client.UserID())
	if err != nil {
		s.logger.Error("Disconnect sweep failed",
			zap.String("userId", client.UserID()),
			zap.Error(err))
	}
	for _, diagramID := range removed {
		s.hub.BroadcastToDiagram(diagramID, client.UserID(), MsgUserLeft, map[string]interface{}{
			"diagramId": diagramID,
			"userId":    client.UserID(),
			"username":  client.Username(),
		})
		s.broadcastParticipants(ctx, diagramID)
	}
	s.presence.Unbind(ctx, client.UserID())
	s.logger.Info("Client disconnected",
		zap.String("userId", client.UserID()),
		zap.String("socketId", client.id))
}

func (s *Server) broadcastParticipants(ctx context.Context, diagramID string) {
	participants, err := s.coordinator.GetParticipants(ctx, diagramID)
	if err != nil {
		s.logger.Warn("Failed to resolve participants",
			zap.String("diagramId", diagramID),
			zap.Error(err))
		return
	}
	s.hub.BroadcastToDiagram(diagramID, "", MsgParticipantsUpdated, map[string]interface{}{
		"diagramId":    diagramID,
		"participants": participants,
	})
}

func (s *Server) verifyToken(tokenString, userID string) error {
	if tokenString == "" {
		return fmt.Errorf("missing token")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return err
	}
	if subject != userID {
		return fmt.Errorf("token subject mismatch")
	}
	return nil
}

func (s *Server) sendError(client *Client, message string) {
	s.hub.SendToClient(client, MsgError, map[string]string{"message": message})
}

func (s *Server) sendAuthError(client *Client, message string) {
	s.hub.SendToClient(client, MsgAuthError, map[string]string{"message": message})
}
