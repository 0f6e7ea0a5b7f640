package ports

import (
	"collabgraph-backend/domain/model"
)

// Event bus topics emitted by the hosting editor's public mutation path.
const (
	TopicElementChanged    = "element.changed"
	TopicCommandStack      = "commandStack.changed"
	TopicShapeAdded        = "shape.added"
	TopicConnectionAdded   = "connection.added"
	TopicShapeRemoved      = "shape.removed"
	TopicConnectionRemoved = "connection.removed"
	TopicShapeMoved        = "shape.moved"
	TopicConnectionMoved   = "connection.moved"
)

// BusEvent is one editor event as observed on the event bus.
type BusEvent struct {
	Topic   string
	Element *model.Element

	// Command is the command name for commandStack.changed events.
	Command string
}

// EventBus is the editor's change-event bus. Subscribe returns an
// unsubscribe func; Publish delivers synchronously on the caller's
// goroutine, matching the editor's cooperative scheduling.
type EventBus interface {
	Subscribe(topic string, handler func(BusEvent)) (unsubscribe func())
	Publish(event BusEvent)
}

// RenderGate suspends and resumes the repaint pipeline around a batch.
// Suspend while suspended and Resume while running are no-ops.
type RenderGate interface {
	Suspend()
	Resume()
	IsSuspended() bool
}

// LowLevelEditor is the narrow capability the mutation layer needs from
// the hosting editor: raw model access and the graphics pipeline, with
// no path through the event bus or the command stack.
type LowLevelEditor interface {
	Model() *model.Store
	Gate() RenderGate

	RegisterGraphics(id string)
	UnregisterGraphics(id string)

	// RefreshGraphics re-renders one element; while the gate is
	// suspended the element is only marked dirty.
	RefreshGraphics(id string) error

	// RefreshAllGraphics re-renders every registered element.
	RefreshAllGraphics()
}
