package model

import (
	"fmt"
)

// Store is the authoritative in-process replica of one diagram graph.
// Elements live in an arena keyed by id; connections reference their
// endpoints by id and the endpoint shapes mirror that incidence in their
// Incoming/Outgoing sets.
//
// The store follows a single-writer discipline: it is owned by the
// hosting editor and mutated from one logical thread of control.
type Store struct {
	elements map[string]*Element
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		elements: make(map[string]*Element),
	}
}

// Get returns the element with the given id.
func (s *Store) Get(id string) (*Element, bool) {
	el, ok := s.elements[id]
	return el, ok
}

// Len returns the number of elements in the arena.
func (s *Store) Len() int {
	return len(s.elements)
}

// IDs returns the ids of all elements in the arena.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.elements))
	for id := range s.elements {
		ids = append(ids, id)
	}
	return ids
}

// InsertShape adds a shape to the arena. The id must be unused.
func (s *Store) InsertShape(shape *Element) error {
	if shape.ID == "" {
		return fmt.Errorf("shape id is required")
	}
	if _, exists := s.elements[shape.ID]; exists {
		return fmt.Errorf("element %q already exists", shape.ID)
	}
	shape.Kind = KindShape
	if shape.Incoming == nil {
		shape.Incoming = make(map[string]struct{})
	}
	if shape.Outgoing == nil {
		shape.Outgoing = make(map[string]struct{})
	}
	s.elements[shape.ID] = shape
	return nil
}

// InsertConnection adds a connection to the arena and records it in the
// adjacency sets of both endpoints. Both endpoints must already exist
// and be shapes; a connection cannot terminate on another connection.
func (s *Store) InsertConnection(conn *Element) error {
	if conn.ID == "" {
		return fmt.Errorf("connection id is required")
	}
	if _, exists := s.elements[conn.ID]; exists {
		return fmt.Errorf("element %q already exists", conn.ID)
	}
	source, ok := s.elements[conn.SourceID]
	if !ok {
		return fmt.Errorf("connection %q: source %q not found", conn.ID, conn.SourceID)
	}
	if !source.IsShape() {
		return fmt.Errorf("connection %q: source %q is not a shape", conn.ID, conn.SourceID)
	}
	target, ok := s.elements[conn.TargetID]
	if !ok {
		return fmt.Errorf("connection %q: target %q not found", conn.ID, conn.TargetID)
	}
	if !target.IsShape() {
		return fmt.Errorf("connection %q: target %q is not a shape", conn.ID, conn.TargetID)
	}
	conn.Kind = KindConnection
	s.elements[conn.ID] = conn
	source.Outgoing[conn.ID] = struct{}{}
	target.Incoming[conn.ID] = struct{}{}
	return nil
}

// RemoveByID removes an element from the arena. Removing a shape
// cascades to every incident connection; removing a connection detaches
// it from its endpoints. Unknown ids are a no-op returning false.
func (s *Store) RemoveByID(id string) bool {
	el, ok := s.elements[id]
	if !ok {
		return false
	}

	if el.IsShape() {
		for connID := range el.Incoming {
			s.detachConnection(connID)
		}
		for connID := range el.Outgoing {
			s.detachConnection(connID)
		}
	} else {
		s.detachEndpoints(el)
	}

	delete(s.elements, id)
	return true
}

// detachConnection removes a connection and its endpoint adjacency.
func (s *Store) detachConnection(connID string) {
	conn, ok := s.elements[connID]
	if !ok {
		return
	}
	s.detachEndpoints(conn)
	delete(s.elements, connID)
}

func (s *Store) detachEndpoints(conn *Element) {
	if source, ok := s.elements[conn.SourceID]; ok && source.Outgoing != nil {
		delete(source.Outgoing, conn.ID)
	}
	if target, ok := s.elements[conn.TargetID]; ok && target.Incoming != nil {
		delete(target.Incoming, conn.ID)
	}
}

// SetBusiness shallow-merges the patch into the element's business object.
func (s *Store) SetBusiness(id string, patch map[string]interface{}) bool {
	el, ok := s.elements[id]
	if !ok {
		return false
	}
	el.Business.Merge(patch)
	return true
}

// SetBusinessPath assigns a dotted-path property on the business object,
// creating intermediate maps as needed.
func (s *Store) SetBusinessPath(id, path string, value interface{}) bool {
	el, ok := s.elements[id]
	if !ok {
		return false
	}
	el.Business.SetPath(path, value)
	return true
}

// GeometryPatch updates only the fields that are set.
type GeometryPatch struct {
	X      *int
	Y      *int
	Width  *int
	Height *int
}

// SetGeometry applies the present fields of the patch, leaving the rest
// untouched.
func (s *Store) SetGeometry(id string, patch GeometryPatch) bool {
	el, ok := s.elements[id]
	if !ok {
		return false
	}
	if patch.X != nil {
		el.X = *patch.X
	}
	if patch.Y != nil {
		el.Y = *patch.Y
	}
	if patch.Width != nil {
		el.Width = *patch.Width
	}
	if patch.Height != nil {
		el.Height = *patch.Height
	}
	return true
}

// MoveBy shifts a shape by the given delta.
func (s *Store) MoveBy(id string, dx, dy int) bool {
	el, ok := s.elements[id]
	if !ok {
		return false
	}
	el.X += dx
	el.Y += dy
	return true
}

// Reparent sets the child's parent reference and, when the parent's
// business object is a container, appends the child to its flowElements
// list if not already present.
func (s *Store) Reparent(childID, parentID string) bool {
	child, ok := s.elements[childID]
	if !ok {
		return false
	}
	parent, ok := s.elements[parentID]
	if !ok {
		return false
	}
	child.Business.Parent = parentID
	if parent.Business.FlowElements != nil && !parent.Business.ContainsFlowElement(childID) {
		parent.Business.FlowElements = append(parent.Business.FlowElements, childID)
	}
	return true
}

// CountByType tallies elements by their domain type string.
func (s *Store) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, el := range s.elements {
		counts[el.Type]++
	}
	return counts
}
