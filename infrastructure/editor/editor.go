// Package editor hosts the in-process diagram editor adapter: the model
// store, the change-event bus, the command stack, the graphics registry
// and the render gate, wired the way the mutation layer and the mediator
// expect to find them in the hosting widget.
package editor

import (
	"fmt"

	"go.uber.org/zap"

	"collabgraph-backend/application/commandstack"
	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/model"
)

// Command names used by the editor's public mutation path.
const (
	CommandUpdateProperties = "element.updateProperties"
	CommandMoveElements     = "elements.move"
	CommandCreateShape      = "shape.create"
	CommandCreateConnection = "connection.create"
	CommandDeleteElement    = "element.delete"
)

// Editor implements ports.LowLevelEditor and offers the public,
// event-emitting mutation path local user edits go through.
type Editor struct {
	store    *model.Store
	bus      *Bus
	gate     *Gate
	stack    *commandstack.Stack
	graphics map[string]int // element id -> repaint count
	logger   *zap.Logger
}

// New creates an editor with an empty model.
func New(logger *zap.Logger) *Editor {
	e := &Editor{
		store:    model.NewStore(),
		bus:      NewBus(),
		graphics: make(map[string]int),
		logger:   logger,
	}
	e.gate = newGate(e.repaintAll)
	e.stack = commandstack.NewStack(e.bus, logger)
	e.registerDefaultCommands()
	return e
}

// Model returns the editor's element store.
func (e *Editor) Model() *model.Store { return e.store }

// Bus returns the editor's event bus.
func (e *Editor) Bus() ports.EventBus { return e.bus }

// Gate returns the render gate.
func (e *Editor) Gate() ports.RenderGate { return e.gate }

// CommandStack returns the silent-capable command executor.
func (e *Editor) CommandStack() *commandstack.Stack { return e.stack }

// RegisterGraphics adds an element to the graphics registry.
func (e *Editor) RegisterGraphics(id string) {
	if _, exists := e.graphics[id]; !exists {
		e.graphics[id] = 0
	}
}

// UnregisterGraphics drops an element from the graphics registry.
func (e *Editor) UnregisterGraphics(id string) {
	delete(e.graphics, id)
}

// RefreshGraphics re-renders one element, or marks it dirty while the
// gate is suspended.
func (e *Editor) RefreshGraphics(id string) error {
	if _, registered := e.graphics[id]; !registered {
		return fmt.Errorf("no graphics registered for element %q", id)
	}
	if e.gate.IsSuspended() {
		e.gate.markDirty(id)
		return nil
	}
	e.graphics[id]++
	return nil
}

// RefreshAllGraphics re-renders every registered element.
func (e *Editor) RefreshAllGraphics() {
	if e.gate.IsSuspended() {
		for id := range e.graphics {
			e.gate.markDirty(id)
		}
		return
	}
	e.repaintAll()
}

// RepaintCount returns how often an element's graphics were repainted.
// Used by tests to observe coalescing.
func (e *Editor) RepaintCount(id string) int {
	return e.graphics[id]
}

func (e *Editor) repaintAll() {
	for id := range e.graphics {
		e.graphics[id]++
	}
}

// registerDefaultCommands installs the handlers behind the editor's
// public mutation path. Each handler mutates the store and publishes the
// matching bus events; commandStack.changed is emitted by the stack
// itself unless silent.
func (e *Editor) registerDefaultCommands() {
	e.stack.RegisterHandler(CommandUpdateProperties, func(ctx commandstack.Context) (interface{}, error) {
		id, _ := ctx["elementId"].(string)
		props, _ := ctx["properties"].(map[string]interface{})
		if !e.store.SetBusiness(id, props) {
			return nil, fmt.Errorf("element %q not found", id)
		}
		el, _ := e.store.Get(id)
		e.bus.Publish(ports.BusEvent{Topic: ports.TopicElementChanged, Element: el})
		return el, nil
	})

	e.stack.RegisterHandler(CommandMoveElements, func(ctx commandstack.Context) (interface{}, error) {
		ids, _ := ctx["elementIds"].([]string)
		dx, _ := ctx["dx"].(int)
		dy, _ := ctx["dy"].(int)
		moved := make([]*model.Element, 0, len(ids))
		for _, id := range ids {
			if !e.store.MoveBy(id, dx, dy) {
				continue
			}
			el, _ := e.store.Get(id)
			moved = append(moved, el)
			topic := ports.TopicShapeMoved
			if el.IsConnection() {
				topic = ports.TopicConnectionMoved
			}
			e.bus.Publish(ports.BusEvent{Topic: topic, Element: el})
		}
		return moved, nil
	})

	e.stack.RegisterHandler(CommandCreateShape, func(ctx commandstack.Context) (interface{}, error) {
		shape, _ := ctx["shape"].(*model.Element)
		if shape == nil {
			return nil, fmt.Errorf("shape is required")
		}
		if err := e.store.InsertShape(shape); err != nil {
			return nil, err
		}
		e.RegisterGraphics(shape.ID)
		e.bus.Publish(ports.BusEvent{Topic: ports.TopicShapeAdded, Element: shape})
		return shape, nil
	})

	e.stack.RegisterHandler(CommandCreateConnection, func(ctx commandstack.Context) (interface{}, error) {
		conn, _ := ctx["connection"].(*model.Element)
		if conn == nil {
			return nil, fmt.Errorf("connection is required")
		}
		if err := e.store.InsertConnection(conn); err != nil {
			return nil, err
		}
		e.RegisterGraphics(conn.ID)
		e.bus.Publish(ports.BusEvent{Topic: ports.TopicConnectionAdded, Element: conn})
		return conn, nil
	})

	e.stack.RegisterHandler(CommandDeleteElement, func(ctx commandstack.Context) (interface{}, error) {
		id, _ := ctx["elementId"].(string)
		el, ok := e.store.Get(id)
		if !ok {
			return nil, fmt.Errorf("element %q not found", id)
		}
		topic := ports.TopicShapeRemoved
		if el.IsConnection() {
			topic = ports.TopicConnectionRemoved
		}
		e.store.RemoveByID(id)
		e.UnregisterGraphics(id)
		e.bus.Publish(ports.BusEvent{Topic: topic, Element: el})
		return el, nil
	})
}

// UpdateProperties is the public path for a local property edit.
func (e *Editor) UpdateProperties(id string, properties map[string]interface{}) error {
	_, err := e.stack.Execute(CommandUpdateProperties, commandstack.Context{
		"elementId":  id,
		"properties": properties,
	})
	return err
}

// MoveElements is the public path for a local move.
func (e *Editor) MoveElements(ids []string, dx, dy int) error {
	_, err := e.stack.Execute(CommandMoveElements, commandstack.Context{
		"elementIds": ids,
		"dx":         dx,
		"dy":         dy,
	})
	return err
}

// CreateShape is the public path for a local shape creation.
func (e *Editor) CreateShape(shape *model.Element) error {
	_, err := e.stack.Execute(CommandCreateShape, commandstack.Context{"shape": shape})
	return err
}

// CreateConnection is the public path for a local connection creation.
func (e *Editor) CreateConnection(conn *model.Element) error {
	_, err := e.stack.Execute(CommandCreateConnection, commandstack.Context{"connection": conn})
	return err
}

// DeleteElement is the public path for a local removal.
func (e *Editor) DeleteElement(id string) error {
	_, err := e.stack.Execute(CommandDeleteElement, commandstack.Context{"elementId": id})
	return err
}
