package mutation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"collabgraph-backend/domain/events"
	"collabgraph-backend/domain/model"
)

const (
	// DefaultChunkSize is the chunk size for BatchUpdateLarge.
	DefaultChunkSize = 50

	// interChunkYield is how long BatchUpdateLarge yields to the host
	// scheduler between chunks.
	interChunkYield = time.Millisecond
)

// BatchUpdate suspends rendering, applies the changes in the order
// given, and resumes rendering. Malformed changes are logged and
// skipped; the batch never aborts and the gate is always released.
func (l *Layer) BatchUpdate(changes []events.ChangeEvent) {
	gate := l.editor.Gate()
	gate.Suspend()
	defer gate.Resume()

	for i := range changes {
		if err := l.applyChange(&changes[i]); err != nil {
			l.logger.Warn("Skipping failed change",
				zap.String("kind", string(changes[i].Kind)),
				zap.String("elementId", changes[i].ElementID),
				zap.Error(err))
		}
	}
}

// BatchUpdateOptimized partitions the changes by kind and applies them
// in the fixed order create, property, position, remove. Creations must
// precede references to them and removals must follow any last edits;
// property and position edits commute within their phases, where the
// original order is preserved.
func (l *Layer) BatchUpdateOptimized(changes []events.ChangeEvent) {
	var creates, properties, positions, removes []*events.ChangeEvent
	for i := range changes {
		change := &changes[i]
		switch change.Kind {
		case events.ChangeCreate, events.ChangeConnection:
			creates = append(creates, change)
		case events.ChangeProperty:
			properties = append(properties, change)
		case events.ChangePosition:
			positions = append(positions, change)
		case events.ChangeRemove:
			removes = append(removes, change)
		default:
			l.logger.Warn("Dropping change of unknown kind",
				zap.String("kind", string(change.Kind)),
				zap.String("elementId", change.ElementID))
		}
	}

	gate := l.editor.Gate()
	gate.Suspend()
	defer gate.Resume()

	for _, phase := range [][]*events.ChangeEvent{creates, properties, positions, removes} {
		for _, change := range phase {
			if err := l.applyChange(change); err != nil {
				l.logger.Warn("Skipping failed change",
					zap.String("kind", string(change.Kind)),
					zap.String("elementId", change.ElementID),
					zap.Error(err))
			}
		}
	}
}

// BatchUpdateLarge splits the changes into fixed-size chunks, applies
// each chunk via BatchUpdateOptimized and yields briefly to the host
// scheduler between chunks. Order across chunks follows the original
// sequence.
func (l *Layer) BatchUpdateLarge(changes []events.ChangeEvent, chunkSize int) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	for start := 0; start < len(changes); start += chunkSize {
		end := start + chunkSize
		if end > len(changes) {
			end = len(changes)
		}
		l.BatchUpdateOptimized(changes[start:end])
		if end < len(changes) {
			time.Sleep(interChunkYield)
		}
	}
}

// applyChange dispatches one change to the matching silent operation.
func (l *Layer) applyChange(change *events.ChangeEvent) error {
	if err := change.Validate(); err != nil {
		return err
	}

	switch change.Kind {
	case events.ChangeCreate:
		data := change.ElementData
		if data == nil {
			data = &events.ElementData{
				ID:         change.ElementID,
				Type:       change.ElementType,
				Properties: change.Properties,
			}
		}
		if data.ID == "" {
			data.ID = change.ElementID
		}
		// An inbound create for an existing id overwrites it.
		l.RemoveElementSilently(data.ID)
		_, err := l.AddElementSilently(data, parentOf(data))
		return err

	case events.ChangeConnection:
		data := change.ElementData
		if data == nil {
			data = &events.ElementData{
				ID:         change.ElementID,
				Type:       change.ElementType,
				Properties: change.Properties,
			}
		}
		if data.ID == "" {
			data.ID = change.ElementID
		}
		l.RemoveElementSilently(data.ID)
		_, err := l.AddConnectionSilently(data, change.SourceID, change.TargetID)
		return err

	case events.ChangeProperty:
		if len(change.Properties) == 0 {
			return fmt.Errorf("property change %q carries no properties", change.ElementID)
		}
		if l.UpdateBusinessObjectDirectly(change.ElementID, change.Properties) == nil {
			return fmt.Errorf("element %q not found", change.ElementID)
		}
		return nil

	case events.ChangePosition:
		patch := model.GeometryPatch{
			X:      change.X,
			Y:      change.Y,
			Width:  change.Width,
			Height: change.Height,
		}
		if !l.UpdateVisualPropertiesDirectly(change.ElementID, patch) {
			return fmt.Errorf("element %q not found", change.ElementID)
		}
		return nil

	case events.ChangeRemove:
		l.RemoveElementSilently(change.ElementID)
		return nil

	default:
		return fmt.Errorf("unknown change kind %q", change.Kind)
	}
}

// parentOf reads the owning parent id out of a creation payload.
func parentOf(data *events.ElementData) string {
	if data.Properties == nil {
		return ""
	}
	parent, _ := data.Properties["parent"].(string)
	return parent
}
