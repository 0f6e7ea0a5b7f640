package entities

import (
	"fmt"
	"time"
)

// Diagram is a persisted BPMN diagram owned by a user and optionally
// shared with collaborators. Version increments monotonically on every
// bpmnXml update.
type Diagram struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	BpmnXML       string    `json:"bpmnXml"`
	OwnerID       string    `json:"owner"`
	Collaborators []string  `json:"collaborators"`
	IsPublic      bool      `json:"isPublic"`
	Version       int       `json:"version"`
	LastModified  time.Time `json:"lastModified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
)

// NewDiagram creates a diagram with version 1.
func NewDiagram(id, title, description, ownerID string) (*Diagram, error) {
	if title == "" || len(title) > maxTitleLength {
		return nil, fmt.Errorf("title must be 1-%d characters", maxTitleLength)
	}
	if len(description) > maxDescriptionLength {
		return nil, fmt.Errorf("description must be at most %d characters", maxDescriptionLength)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner is required")
	}
	now := time.Now()
	return &Diagram{
		ID:            id,
		Title:         title,
		Description:   description,
		OwnerID:       ownerID,
		Collaborators: []string{},
		Version:       1,
		LastModified:  now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// UpdateXML replaces the diagram content and bumps the version.
func (d *Diagram) UpdateXML(bpmnXML string) {
	d.BpmnXML = bpmnXML
	d.Version++
	d.LastModified = time.Now()
	d.UpdatedAt = d.LastModified
}

// HasCollaborator reports whether the user already collaborates on the
// diagram.
func (d *Diagram) HasCollaborator(userID string) bool {
	for _, id := range d.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}

// AddCollaborator appends a collaborator if not already present.
func (d *Diagram) AddCollaborator(userID string) bool {
	if userID == d.OwnerID || d.HasCollaborator(userID) {
		return false
	}
	d.Collaborators = append(d.Collaborators, userID)
	d.UpdatedAt = time.Now()
	return true
}

// RemoveCollaborator filters out a collaborator.
func (d *Diagram) RemoveCollaborator(userID string) bool {
	for i, id := range d.Collaborators {
		if id == userID {
			d.Collaborators = append(d.Collaborators[:i], d.Collaborators[i+1:]...)
			d.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// CanAccess reports whether the user may read the diagram.
func (d *Diagram) CanAccess(userID string) bool {
	return d.IsPublic || d.OwnerID == userID || d.HasCollaborator(userID)
}
