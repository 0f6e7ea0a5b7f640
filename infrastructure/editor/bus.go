package editor

import (
	"collabgraph-backend/application/ports"
)

// Bus is the editor's in-process event bus. Handlers run synchronously
// on the publishing goroutine, matching the editor's cooperative
// single-threaded scheduling.
type Bus struct {
	nextID   int
	handlers map[string]map[int]func(ports.BusEvent)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]map[int]func(ports.BusEvent)),
	}
}

// Subscribe registers a handler for a topic and returns its
// unsubscribe func.
func (b *Bus) Subscribe(topic string, handler func(ports.BusEvent)) func() {
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]func(ports.BusEvent))
	}
	id := b.nextID
	b.nextID++
	b.handlers[topic][id] = handler
	return func() {
		delete(b.handlers[topic], id)
	}
}

// Publish delivers the event to every handler subscribed to its topic.
func (b *Bus) Publish(event ports.BusEvent) {
	for _, handler := range b.handlers[event.Topic] {
		handler(event)
	}
}
