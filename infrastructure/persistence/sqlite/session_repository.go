package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"collabgraph-backend/domain/entities"
	apperrors "collabgraph-backend/pkg/errors"
)

// SessionRepository implements ports.SessionRepository on SQLite.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save upserts a session.
func (r *SessionRepository) Save(ctx context.Context, session *entities.CollaborationSession) error {
	participants, err := json.Marshal(session.Participants)
	if err != nil {
		return apperrors.NewInternalError("failed to encode participants").WithCause(err)
	}
	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO collab_sessions (id, diagram_id, participants, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			participants = excluded.participants,
			is_active    = excluded.is_active,
			updated_at   = excluded.updated_at`,
		session.ID, session.DiagramID, string(participants),
		session.IsActive, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return apperrors.NewDatabaseError("save session", err)
	}
	return nil
}

// GetActiveByDiagram returns the active session for a diagram.
func (r *SessionRepository) GetActiveByDiagram(ctx context.Context, diagramID string) (*entities.CollaborationSession, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, diagram_id, participants, is_active, created_at, updated_at
		FROM collab_sessions
		WHERE diagram_id = ? AND is_active = 1
		ORDER BY updated_at DESC LIMIT 1`, diagramID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("collaboration session")
	}
	return session, err
}

// ListActive returns all active sessions.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*entities.CollaborationSession, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, diagram_id, participants, is_active, created_at, updated_at
		FROM collab_sessions WHERE is_active = 1`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list active sessions", err)
	}
	defer rows.Close()

	var sessions []*entities.CollaborationSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// PurgeInactiveBefore deletes inactive sessions not updated since the
// cutoff.
func (r *SessionRepository) PurgeInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM collab_sessions WHERE is_active = 0 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.NewDatabaseError("purge sessions", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func scanSession(scanner rowScanner) (*entities.CollaborationSession, error) {
	var session entities.CollaborationSession
	var participants string
	err := scanner.Scan(&session.ID, &session.DiagramID, &participants,
		&session.IsActive, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.NewDatabaseError("scan session", err)
	}
	if err := json.Unmarshal([]byte(participants), &session.Participants); err != nil {
		return nil, apperrors.NewInternalError("failed to decode participants").WithCause(err)
	}
	return &session, nil
}
