package entities

import (
	"time"
)

// Cursor is a participant's pointer position on the shared canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is one user's membership in a collaboration session.
type Participant struct {
	UserID   string    `json:"userId"`
	SocketID string    `json:"socketId"`
	JoinedAt time.Time `json:"joinedAt"`
	Cursor   *Cursor   `json:"cursor,omitempty"`
}

// CollaborationSession is the per-diagram room. A session goes inactive
// when its participant list drains; inactive sessions are purged after
// 24 hours.
type CollaborationSession struct {
	ID           string        `json:"id"`
	DiagramID    string        `json:"diagramId"`
	Participants []Participant `json:"participants"`
	IsActive     bool          `json:"isActive"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// NewCollaborationSession creates an active session with no participants.
func NewCollaborationSession(id, diagramID string) *CollaborationSession {
	now := time.Now()
	return &CollaborationSession{
		ID:           id,
		DiagramID:    diagramID,
		Participants: []Participant{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// FindParticipant returns the index of the user's participant record, or
// -1 when absent.
func (s *CollaborationSession) FindParticipant(userID string) int {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Join adds the user or refreshes an existing participant record's
// socket and join time.
func (s *CollaborationSession) Join(userID, socketID string, at time.Time) {
	if i := s.FindParticipant(userID); i >= 0 {
		s.Participants[i].SocketID = socketID
		s.Participants[i].JoinedAt = at
	} else {
		s.Participants = append(s.Participants, Participant{
			UserID:   userID,
			SocketID: socketID,
			JoinedAt: at,
		})
	}
	s.IsActive = true
	s.UpdatedAt = at
}

// Leave filters out the user; the session goes inactive when the last
// participant leaves. Returns whether the user was present.
func (s *CollaborationSession) Leave(userID string, at time.Time) bool {
	i := s.FindParticipant(userID)
	if i < 0 {
		return false
	}
	s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
	if len(s.Participants) == 0 {
		s.IsActive = false
	}
	s.UpdatedAt = at
	return true
}

// SetCursor writes the cursor onto the user's participant record.
func (s *CollaborationSession) SetCursor(userID string, cursor Cursor, at time.Time) bool {
	i := s.FindParticipant(userID)
	if i < 0 {
		return false
	}
	s.Participants[i].Cursor = &cursor
	s.UpdatedAt = at
	return true
}
