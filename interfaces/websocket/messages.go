package websocket

import (
	"encoding/json"

	"collabgraph-backend/domain/events"
)

// Client → server message types.
const (
	MsgAuthenticate  = "authenticate"
	MsgJoinDiagram   = "join_diagram"
	MsgLeaveDiagram  = "leave_diagram"
	MsgDiagramChange = "diagram_change"
	MsgCursorMove    = "cursor_move"
)

// Server → client message types.
const (
	MsgAuthenticated       = "authenticated"
	MsgAuthError           = "auth_error"
	MsgUserJoined          = "user_joined"
	MsgUserLeft            = "user_left"
	MsgParticipantsUpdated = "participants_updated"
	MsgDiagramUpdated      = "diagram_updated"
	MsgCursorUpdated       = "cursor_updated"
	MsgError               = "error"
)

// ClientMessage is the envelope for every inbound socket message.
type ClientMessage struct {
	Type string `json:"type"`

	// authenticate
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`

	// join_diagram / leave_diagram / diagram_change / cursor_move
	DiagramID string `json:"diagramId,omitempty"`

	// diagram_change
	Changes []events.ChangeEvent `json:"changes,omitempty"`
	Version int                  `json:"version,omitempty"`

	// cursor_move
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

// ServerMessage is the envelope for every outbound socket message.
type ServerMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewServerMessage marshals a payload into the outbound envelope.
func NewServerMessage(messageType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ServerMessage{
		Type:      messageType,
		Data:      data,
		Timestamp: events.NewTimestamp(),
	})
}
