package ports

import (
	"context"
	"time"

	"collabgraph-backend/domain/entities"
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	List(ctx context.Context) ([]*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	Delete(ctx context.Context, id string) error

	// SetOnline flips the online flag and refreshes lastSeen.
	SetOnline(ctx context.Context, id string, online bool, lastSeen time.Time) error

	// FindStaleOnline returns users flagged online whose lastSeen is
	// older than the cutoff.
	FindStaleOnline(ctx context.Context, before time.Time) ([]*entities.User, error)
}

// DiagramRepository persists diagrams.
type DiagramRepository interface {
	Create(ctx context.Context, diagram *entities.Diagram) error
	GetByID(ctx context.Context, id string) (*entities.Diagram, error)
	ListForUser(ctx context.Context, userID string) ([]*entities.Diagram, error)
	Update(ctx context.Context, diagram *entities.Diagram) error
	Delete(ctx context.Context, id string) error
}

// SessionRepository persists collaboration sessions.
type SessionRepository interface {
	Save(ctx context.Context, session *entities.CollaborationSession) error
	GetActiveByDiagram(ctx context.Context, diagramID string) (*entities.CollaborationSession, error)
	ListActive(ctx context.Context) ([]*entities.CollaborationSession, error)

	// PurgeInactiveBefore deletes inactive sessions not updated since
	// the cutoff and returns how many were removed.
	PurgeInactiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}
