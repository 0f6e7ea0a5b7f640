// Package commandstack provides the editor's command executor: a named
// handler registry with an undo history and a reentrant silent mode that
// suppresses both history recording and commandStack.changed emissions.
package commandstack

import (
	"fmt"

	"go.uber.org/zap"

	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/model"
)

// Context carries a command's parameters and results.
type Context map[string]interface{}

// Handler executes one named command against the model.
type Handler func(ctx Context) (interface{}, error)

// Command pairs a handler name with its context for batch execution.
type Command struct {
	Name string
	Ctx  Context
}

// historyEntry records one applied command for undo.
type historyEntry struct {
	name string
	ctx  Context
}

// Stack is the silent-capable command executor. It is not safe for
// concurrent use; like the model store it assumes the editor's single
// logical thread of control.
type Stack struct {
	handlers map[string]Handler
	history  []historyEntry
	silent   bool
	bus      ports.EventBus
	logger   *zap.Logger
}

// NewStack creates a command stack that emits commandStack.changed on
// the given bus after every non-silent execution.
func NewStack(bus ports.EventBus, logger *zap.Logger) *Stack {
	return &Stack{
		handlers: make(map[string]Handler),
		bus:      bus,
		logger:   logger,
	}
}

// RegisterHandler registers a named command handler.
func (s *Stack) RegisterHandler(name string, handler Handler) error {
	if _, exists := s.handlers[name]; exists {
		return fmt.Errorf("handler already registered for command %q", name)
	}
	s.handlers[name] = handler
	return nil
}

// Execute runs a named command. On success the command is recorded in
// the history and commandStack.changed is emitted, unless silent mode is
// active.
func (s *Stack) Execute(name string, ctx Context) (interface{}, error) {
	handler, exists := s.handlers[name]
	if !exists {
		return nil, fmt.Errorf("no handler registered for command %q", name)
	}

	result, err := handler(ctx)
	if err != nil {
		s.logger.Warn("Command failed",
			zap.String("command", name),
			zap.Error(err))
		return nil, fmt.Errorf("command %q failed: %w", name, err)
	}

	if !s.silent {
		s.history = append(s.history, historyEntry{name: name, ctx: ctx})
		event := ports.BusEvent{
			Topic:   ports.TopicCommandStack,
			Command: name,
		}
		if el, ok := result.(*model.Element); ok {
			event.Element = el
		}
		s.bus.Publish(event)
	}
	return result, nil
}

// SetSilentMode toggles suppression of history recording and
// commandStack.changed emissions.
func (s *Stack) SetSilentMode(silent bool) {
	s.silent = silent
}

// IsSilent reports whether silent mode is active.
func (s *Stack) IsSilent() bool {
	return s.silent
}

// HistoryLen returns the number of undoable entries.
func (s *Stack) HistoryLen() int {
	return len(s.history)
}

// ExecuteSilently runs one command under silent mode, restoring the
// previous silent flag on every exit path. Nested calls keep the outer
// flag intact.
func (s *Stack) ExecuteSilently(name string, ctx Context) (interface{}, error) {
	previous := s.silent
	s.silent = true
	defer func() {
		s.silent = previous
	}()
	return s.Execute(name, ctx)
}

// ExecuteBatchSilently runs the commands in order under a single silent
// span. The first failure stops the batch and propagates after the
// silent flag is restored; results for the commands that ran are
// returned alongside the error.
func (s *Stack) ExecuteBatchSilently(cmds []Command) ([]interface{}, error) {
	previous := s.silent
	s.silent = true
	defer func() {
		s.silent = previous
	}()

	results := make([]interface{}, 0, len(cmds))
	for _, cmd := range cmds {
		result, err := s.Execute(cmd.Name, cmd.Ctx)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
