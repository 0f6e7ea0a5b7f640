// Package collab coordinates per-diagram collaboration rooms: the
// participant roster, cursor presence and the fan-out of change batches
// to every participant except the originator.
package collab

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/entities"
	"collabgraph-backend/domain/events"
	apperrors "collabgraph-backend/pkg/errors"
)

const (
	// inactiveSessionMaxAge is how long an inactive session survives
	// before the periodic sweep deletes it.
	inactiveSessionMaxAge = 24 * time.Hour

	sweepInterval = time.Hour
)

// ParticipantInfo is a participant with the resolved user profile.
type ParticipantInfo struct {
	entities.Participant
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
}

// ChangeBroadcast is the payload relayed to the other participants of a
// room on diagram_change.
type ChangeBroadcast struct {
	DiagramID string               `json:"diagramId"`
	Changes   []events.ChangeEvent `json:"changes"`
	Version   int                  `json:"version"`
	UserID    string               `json:"userId"`
	Username  string               `json:"username"`
	Timestamp int64                `json:"timestamp"`
}

// Coordinator owns the active sessions and their persistence.
type Coordinator struct {
	sessions    ports.SessionRepository
	users       ports.UserRepository
	diagrams    ports.DiagramRepository
	broadcaster ports.Broadcaster
	logger      *zap.Logger

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// NewCoordinator creates a session coordinator.
func NewCoordinator(
	sessions ports.SessionRepository,
	users ports.UserRepository,
	diagrams ports.DiagramRepository,
	broadcaster ports.Broadcaster,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		sessions:    sessions,
		users:       users,
		diagrams:    diagrams,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// AddParticipant joins a user to the diagram's session, creating the
// session when none is active. A rejoin refreshes the existing record's
// socket id and join time.
func (c *Coordinator) AddParticipant(ctx context.Context, diagramID, userID, socketID string) (*entities.CollaborationSession, error) {
	session, err := c.sessions.GetActiveByDiagram(ctx, diagramID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			return nil, err
		}
		session = entities.NewCollaborationSession(uuid.New().String(), diagramID)
	}

	session.Join(userID, socketID, time.Now())
	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	c.logger.Info("Participant joined",
		zap.String("diagramId", diagramID),
		zap.String("userId", userID),
		zap.Int("participants", len(session.Participants)))
	return session, nil
}

// RemoveParticipant removes the user from the diagram's session; the
// session goes inactive when the last participant leaves.
func (c *Coordinator) RemoveParticipant(ctx context.Context, diagramID, userID string) error {
	session, err := c.sessions.GetActiveByDiagram(ctx, diagramID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !session.Leave(userID, time.Now()) {
		return nil
	}
	if err := c.sessions.Save(ctx, session); err != nil {
		return err
	}

	c.logger.Info("Participant left",
		zap.String("diagramId", diagramID),
		zap.String("userId", userID),
		zap.Bool("sessionActive", session.IsActive))
	return nil
}

// RemoveFromAllSessions sweeps every active session containing the user,
// marking drained sessions inactive. Returns the diagram ids the user
// was removed from.
func (c *Coordinator) RemoveFromAllSessions(ctx context.Context, userID string) ([]string, error) {
	active, err := c.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	now := time.Now()
	for _, session := range active {
		if !session.Leave(userID, now) {
			continue
		}
		if err := c.sessions.Save(ctx, session); err != nil {
			c.logger.Error("Failed to persist session after disconnect sweep",
				zap.String("diagramId", session.DiagramID),
				zap.Error(err))
			continue
		}
		removed = append(removed, session.DiagramID)
	}
	return removed, nil
}

// UpdateCursor writes cursor coordinates onto the participant record.
func (c *Coordinator) UpdateCursor(ctx context.Context, diagramID, userID string, cursor entities.Cursor) error {
	session, err := c.sessions.GetActiveByDiagram(ctx, diagramID)
	if err != nil {
		return err
	}
	if !session.SetCursor(userID, cursor, time.Now()) {
		return apperrors.NewNotFoundError("participant")
	}
	return c.sessions.Save(ctx, session)
}

// GetParticipants lists the session participants with resolved profiles.
func (c *Coordinator) GetParticipants(ctx context.Context, diagramID string) ([]ParticipantInfo, error) {
	session, err := c.sessions.GetActiveByDiagram(ctx, diagramID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return []ParticipantInfo{}, nil
		}
		return nil, err
	}

	infos := make([]ParticipantInfo, 0, len(session.Participants))
	for _, participant := range session.Participants {
		info := ParticipantInfo{Participant: participant}
		if user, err := c.users.GetByID(ctx, participant.UserID); err == nil {
			info.Username = user.Username
			info.Email = user.Email
			info.Avatar = user.Avatar
		} else {
			c.logger.Warn("Failed to resolve participant profile",
				zap.String("userId", participant.UserID),
				zap.Error(err))
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// BroadcastChanges persists the carried version and relays the batch to
// every participant of the diagram except the originator.
func (c *Coordinator) BroadcastChanges(ctx context.Context, diagramID, userID, username string, changes []events.ChangeEvent, version int) error {
	// The version is bookkeeping only: persisted, never validated.
	if diagram, err := c.diagrams.GetByID(ctx, diagramID); err == nil {
		if version > diagram.Version {
			diagram.Version = version
			diagram.LastModified = time.Now()
			if err := c.diagrams.Update(ctx, diagram); err != nil {
				c.logger.Warn("Failed to persist diagram version",
					zap.String("diagramId", diagramID),
					zap.Error(err))
			}
		}
	}

	payload := ChangeBroadcast{
		DiagramID: diagramID,
		Changes:   changes,
		Version:   version,
		UserID:    userID,
		Username:  username,
		Timestamp: events.NewTimestamp(),
	}
	return c.broadcaster.BroadcastToDiagram(diagramID, userID, "diagram_updated", payload)
}

// BroadcastCursor relays a cursor move to the other participants.
func (c *Coordinator) BroadcastCursor(diagramID, userID, username string, cursor entities.Cursor) error {
	return c.broadcaster.BroadcastToDiagram(diagramID, userID, "cursor_updated", map[string]interface{}{
		"userId":    userID,
		"username":  username,
		"x":         cursor.X,
		"y":         cursor.Y,
		"timestamp": events.NewTimestamp(),
	})
}

// StartSweep begins the periodic purge of stale inactive sessions.
func (c *Coordinator) StartSweep(ctx context.Context) {
	c.stopSweep = make(chan struct{})
	c.sweepDone = make(chan struct{})
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		defer close(c.sweepDone)
		for {
			select {
			case <-c.stopSweep:
				return
			case <-ticker.C:
				c.purgeStaleSessions(ctx)
			}
		}
	}()
}

// StopSweep halts the periodic purge.
func (c *Coordinator) StopSweep() {
	if c.stopSweep != nil {
		close(c.stopSweep)
		<-c.sweepDone
		c.stopSweep = nil
	}
}

func (c *Coordinator) purgeStaleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-inactiveSessionMaxAge)
	purged, err := c.sessions.PurgeInactiveBefore(ctx, cutoff)
	if err != nil {
		c.logger.Error("Session purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		c.logger.Info("Purged inactive sessions", zap.Int("count", purged))
	}
}
