package ports

// Broadcaster fans a message out to the connected participants of a
// diagram room. An empty excludeUserID delivers to everyone in the room.
type Broadcaster interface {
	BroadcastToDiagram(diagramID, excludeUserID, messageType string, payload interface{}) error
}
