// Package mutation applies structural and property changes to the model
// without touching the editor's event bus or command stack. It is the
// only writer remote changes go through, and it drives the render gate
// around every batch.
package mutation

import (
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/events"
	"collabgraph-backend/domain/model"
)

// Layer exposes the silent mutation operations over a low-level editor.
type Layer struct {
	editor ports.LowLevelEditor
	logger *zap.Logger
}

// NewLayer creates a mutation layer over the given editor.
func NewLayer(editor ports.LowLevelEditor, logger *zap.Logger) *Layer {
	return &Layer{
		editor: editor,
		logger: logger,
	}
}

// UpdateBusinessObjectDirectly merges the patch into the element's
// business object and refreshes its graphics. Returns nil when the id
// is unknown.
func (l *Layer) UpdateBusinessObjectDirectly(id string, patch map[string]interface{}) *model.Element {
	store := l.editor.Model()
	if !store.SetBusiness(id, patch) {
		return nil
	}
	l.RefreshElementGraphics(id)
	el, _ := store.Get(id)
	return el
}

// SetBusinessObjectProperty assigns a dotted-path property, creating
// intermediate maps as needed.
func (l *Layer) SetBusinessObjectProperty(id, path string, value interface{}) bool {
	if !l.editor.Model().SetBusinessPath(id, path, value) {
		return false
	}
	l.RefreshElementGraphics(id)
	return true
}

// SetBusinessObjectParent reparents the child under the parent. Both ids
// must exist.
func (l *Layer) SetBusinessObjectParent(childID, parentID string) bool {
	return l.editor.Model().Reparent(childID, parentID)
}

// AddElementSilently constructs a shape from the creation payload and
// inserts it without emitting events. A supplied id is kept; otherwise
// one is generated. Geometry defaults to 100x80 at (0,0).
func (l *Layer) AddElementSilently(data *events.ElementData, parentID string) (*model.Element, error) {
	if data == nil || data.Type == "" {
		return nil, fmt.Errorf("element data with a type is required")
	}
	id := data.ID
	if id == "" {
		id = ulid.Make().String()
	}

	shape := model.NewShape(id, data.Type)
	shape.Business.Merge(data.Properties)
	shape.X, shape.Y = data.X, data.Y
	if data.Width > 0 {
		shape.Width = data.Width
	}
	if data.Height > 0 {
		shape.Height = data.Height
	}

	store := l.editor.Model()
	if err := store.InsertShape(shape); err != nil {
		return nil, err
	}
	if parentID != "" {
		store.Reparent(id, parentID)
	}
	l.editor.RegisterGraphics(id)
	l.RefreshElementGraphics(id)
	return shape, nil
}

// AddConnectionSilently constructs a connection between two existing
// shapes. Waypoints default to the endpoint centers when none are
// supplied.
func (l *Layer) AddConnectionSilently(data *events.ElementData, sourceID, targetID string) (*model.Element, error) {
	if data == nil || data.Type == "" {
		return nil, fmt.Errorf("connection data with a type is required")
	}
	store := l.editor.Model()
	source, ok := store.Get(sourceID)
	if !ok {
		return nil, fmt.Errorf("connection source %q not found", sourceID)
	}
	target, ok := store.Get(targetID)
	if !ok {
		return nil, fmt.Errorf("connection target %q not found", targetID)
	}

	id := data.ID
	if id == "" {
		id = ulid.Make().String()
	}
	conn := model.NewConnection(id, data.Type, sourceID, targetID)
	conn.Business.Merge(data.Properties)
	conn.Business.SourceRef = sourceID
	conn.Business.TargetRef = targetID
	conn.Waypoints = []model.Point{source.Center(), target.Center()}

	if err := store.InsertConnection(conn); err != nil {
		return nil, err
	}
	l.editor.RegisterGraphics(id)
	l.RefreshElementGraphics(id)
	return conn, nil
}

// RemoveElementSilently removes an element without emitting events,
// cascading to incident connections for shapes. Unknown ids return
// false.
func (l *Layer) RemoveElementSilently(id string) bool {
	store := l.editor.Model()
	el, ok := store.Get(id)
	if !ok {
		return false
	}
	if el.IsShape() {
		for connID := range el.Incoming {
			l.editor.UnregisterGraphics(connID)
		}
		for connID := range el.Outgoing {
			l.editor.UnregisterGraphics(connID)
		}
	}
	store.RemoveByID(id)
	l.editor.UnregisterGraphics(id)
	return true
}

// UpdateVisualPropertiesDirectly patches the present geometry fields and
// refreshes graphics.
func (l *Layer) UpdateVisualPropertiesDirectly(id string, patch model.GeometryPatch) bool {
	if !l.editor.Model().SetGeometry(id, patch) {
		return false
	}
	l.RefreshElementGraphics(id)
	return true
}

// SetElementPosition moves an element to an absolute position.
func (l *Layer) SetElementPosition(id string, x, y int) bool {
	return l.UpdateVisualPropertiesDirectly(id, model.GeometryPatch{X: &x, Y: &y})
}

// SetElementSize resizes an element.
func (l *Layer) SetElementSize(id string, width, height int) bool {
	return l.UpdateVisualPropertiesDirectly(id, model.GeometryPatch{Width: &width, Height: &height})
}

// RefreshElementGraphics re-renders one element. Refresh failures are
// logged and ignored.
func (l *Layer) RefreshElementGraphics(id string) {
	if err := l.editor.RefreshGraphics(id); err != nil {
		l.logger.Debug("Graphics refresh skipped",
			zap.String("elementId", id),
			zap.Error(err))
	}
}

// RefreshAllGraphics re-renders every registered element.
func (l *Layer) RefreshAllGraphics() {
	l.editor.RefreshAllGraphics()
}
