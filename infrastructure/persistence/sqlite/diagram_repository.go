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

// DiagramRepository implements ports.DiagramRepository on SQLite.
// Collaborator lists are stored as a JSON column; lookups are by id or
// owner so no join is needed.
type DiagramRepository struct {
	db *DB
}

// NewDiagramRepository creates a diagram repository.
func NewDiagramRepository(db *DB) *DiagramRepository {
	return &DiagramRepository{db: db}
}

// Create inserts a diagram.
func (r *DiagramRepository) Create(ctx context.Context, diagram *entities.Diagram) error {
	collaborators, err := json.Marshal(diagram.Collaborators)
	if err != nil {
		return apperrors.NewInternalError("failed to encode collaborators").WithCause(err)
	}
	_, err = r.db.conn.ExecContext(ctx, `
		INSERT INTO diagrams (id, title, description, bpmn_xml, owner_id, collaborators,
			is_public, version, last_modified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		diagram.ID, diagram.Title, diagram.Description, diagram.BpmnXML, diagram.OwnerID,
		string(collaborators), diagram.IsPublic, diagram.Version,
		diagram.LastModified, diagram.CreatedAt, diagram.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("diagram already exists")
		}
		return apperrors.NewDatabaseError("create diagram", err)
	}
	return nil
}

// GetByID retrieves a diagram by id.
func (r *DiagramRepository) GetByID(ctx context.Context, id string) (*entities.Diagram, error) {
	return scanDiagram(r.db.conn.QueryRowContext(ctx, `
		SELECT id, title, description, bpmn_xml, owner_id, collaborators,
			is_public, version, last_modified, created_at, updated_at
		FROM diagrams WHERE id = ?`, id))
}

// ListForUser returns the diagrams a user owns or collaborates on.
func (r *DiagramRepository) ListForUser(ctx context.Context, userID string) ([]*entities.Diagram, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, title, description, bpmn_xml, owner_id, collaborators,
			is_public, version, last_modified, created_at, updated_at
		FROM diagrams
		WHERE owner_id = ? OR collaborators LIKE '%' || ? || '%'
		ORDER BY last_modified DESC`, userID, `"`+userID+`"`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list diagrams", err)
	}
	defer rows.Close()

	var diagrams []*entities.Diagram
	for rows.Next() {
		diagram, err := scanDiagramRows(rows)
		if err != nil {
			return nil, err
		}
		// The LIKE filter is a prefilter over the JSON column;
		// confirm real membership before returning.
		if diagram.OwnerID == userID || diagram.HasCollaborator(userID) {
			diagrams = append(diagrams, diagram)
		}
	}
	return diagrams, rows.Err()
}

// Update persists mutable diagram fields.
func (r *DiagramRepository) Update(ctx context.Context, diagram *entities.Diagram) error {
	collaborators, err := json.Marshal(diagram.Collaborators)
	if err != nil {
		return apperrors.NewInternalError("failed to encode collaborators").WithCause(err)
	}
	diagram.UpdatedAt = time.Now()
	result, err := r.db.conn.ExecContext(ctx, `
		UPDATE diagrams SET title = ?, description = ?, bpmn_xml = ?, collaborators = ?,
			is_public = ?, version = ?, last_modified = ?, updated_at = ?
		WHERE id = ?`,
		diagram.Title, diagram.Description, diagram.BpmnXML, string(collaborators),
		diagram.IsPublic, diagram.Version, diagram.LastModified, diagram.UpdatedAt, diagram.ID)
	if err != nil {
		return apperrors.NewDatabaseError("update diagram", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperrors.NewNotFoundError("diagram")
	}
	return nil
}

// Delete removes a diagram.
func (r *DiagramRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete diagram", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperrors.NewNotFoundError("diagram")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDiagram(row *sql.Row) (*entities.Diagram, error) {
	diagram, err := scanDiagramFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("diagram")
	}
	return diagram, err
}

func scanDiagramRows(rows *sql.Rows) (*entities.Diagram, error) {
	return scanDiagramFrom(rows)
}

func scanDiagramFrom(scanner rowScanner) (*entities.Diagram, error) {
	var diagram entities.Diagram
	var collaborators string
	err := scanner.Scan(&diagram.ID, &diagram.Title, &diagram.Description, &diagram.BpmnXML,
		&diagram.OwnerID, &collaborators, &diagram.IsPublic, &diagram.Version,
		&diagram.LastModified, &diagram.CreatedAt, &diagram.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperrors.NewDatabaseError("scan diagram", err)
	}
	if err := json.Unmarshal([]byte(collaborators), &diagram.Collaborators); err != nil {
		return nil, apperrors.NewInternalError("failed to decode collaborators").WithCause(err)
	}
	return &diagram, nil
}
