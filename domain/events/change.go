package events

import (
	"encoding/json"
	"fmt"
	"time"

	"collabgraph-backend/domain/model"
)

// ChangeKind classifies a diagram change on the wire.
type ChangeKind string

const (
	ChangeProperty   ChangeKind = "property"
	ChangePosition   ChangeKind = "position"
	ChangeCreate     ChangeKind = "create"
	ChangeRemove     ChangeKind = "remove"
	ChangeConnection ChangeKind = "connection"
)

// ElementData is the creation payload for a change of kind create or
// connection.
type ElementData struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	X          int                    `json:"x"`
	Y          int                    `json:"y"`
	Width      int                    `json:"width"`
	Height     int                    `json:"height"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// ChangeEvent is the canonical wire representation of one diagram change.
type ChangeEvent struct {
	Kind        ChangeKind             `json:"kind"`
	ElementID   string                 `json:"elementId"`
	ElementType string                 `json:"elementType,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	X           *int                   `json:"x,omitempty"`
	Y           *int                   `json:"y,omitempty"`
	Width       *int                   `json:"width,omitempty"`
	Height      *int                   `json:"height,omitempty"`
	ElementData *ElementData           `json:"elementData,omitempty"`
	SourceID    string                 `json:"sourceId,omitempty"`
	TargetID    string                 `json:"targetId,omitempty"`

	// Timestamp is milliseconds since epoch.
	Timestamp int64  `json:"timestamp"`
	UserID    string `json:"userId,omitempty"`
	IsRemote  bool   `json:"isRemote,omitempty"`
}

// Validate checks the fields a change of its kind must carry.
func (c *ChangeEvent) Validate() error {
	if c.ElementID == "" {
		return fmt.Errorf("change of kind %q: elementId is required", c.Kind)
	}
	switch c.Kind {
	case ChangeProperty, ChangePosition, ChangeCreate, ChangeRemove:
		return nil
	case ChangeConnection:
		if c.SourceID == "" || c.TargetID == "" {
			return fmt.Errorf("connection change %q: sourceId and targetId are required", c.ElementID)
		}
		return nil
	default:
		return fmt.Errorf("unknown change kind %q", c.Kind)
	}
}

// NewTimestamp returns the current wire timestamp.
func NewTimestamp() int64 {
	return time.Now().UnixMilli()
}

// Encode serializes a batch of changes for the transport.
func Encode(changes []ChangeEvent) ([]byte, error) {
	return json.Marshal(changes)
}

// Decode parses a batch of changes from the transport.
func Decode(data []byte) ([]ChangeEvent, error) {
	var changes []ChangeEvent
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("failed to decode changes: %w", err)
	}
	return changes, nil
}

// trackedProperties are the business properties carried on the wire.
var trackedProperties = []string{
	"name",
	"documentation",
	"assignee",
	"candidateUsers",
	"candidateGroups",
	"formKey",
	"priority",
	"dueDate",
}

// ExtractProperties copies the tracked business properties that are
// present on the business object.
func ExtractProperties(bo *model.BusinessObject) map[string]interface{} {
	if bo == nil {
		return nil
	}
	props := make(map[string]interface{})
	for _, key := range trackedProperties {
		if value, ok := bo.GetPath(key); ok {
			props[key] = value
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}

// ExtractElementData builds the creation payload for an element,
// applying the default shape geometry when unset.
func ExtractElementData(el *model.Element) *ElementData {
	if el == nil {
		return nil
	}
	data := &ElementData{
		ID:         el.ID,
		Type:       el.Type,
		X:          el.X,
		Y:          el.Y,
		Width:      el.Width,
		Height:     el.Height,
		Properties: ExtractProperties(el.Business),
	}
	if data.Width == 0 {
		data.Width = model.DefaultShapeWidth
	}
	if data.Height == 0 {
		data.Height = model.DefaultShapeHeight
	}
	return data
}

// FromElement builds the outbound change for a locally observed event on
// an element.
func FromElement(kind ChangeKind, el *model.Element, userID string) ChangeEvent {
	change := ChangeEvent{
		Kind:        kind,
		ElementID:   el.ID,
		ElementType: el.Type,
		Timestamp:   NewTimestamp(),
		UserID:      userID,
	}
	switch kind {
	case ChangeProperty:
		change.Properties = ExtractProperties(el.Business)
	case ChangePosition:
		x, y := el.X, el.Y
		change.X, change.Y = &x, &y
	case ChangeCreate:
		change.ElementData = ExtractElementData(el)
	case ChangeConnection:
		change.ElementData = ExtractElementData(el)
		change.SourceID = el.SourceID
		change.TargetID = el.TargetID
	}
	return change
}
