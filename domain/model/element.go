package model

// Kind discriminates the two structural element categories of a diagram.
type Kind string

const (
	KindShape      Kind = "shape"
	KindConnection Kind = "connection"
)

// Default shape geometry applied when a creation payload carries none.
const (
	DefaultShapeWidth  = 100
	DefaultShapeHeight = 80
)

// Point is a waypoint or cursor coordinate on the canvas.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BusinessObject carries the domain-facing properties of an element.
// The frequently used properties are typed fields; anything else lands
// in Extras so unknown keys survive a round trip.
type BusinessObject struct {
	ID              string
	Type            string
	Name            string
	Documentation   string
	Assignee        string
	CandidateUsers  string
	CandidateGroups string
	FormKey         string
	Priority        string
	DueDate         string

	// Parent is the owning element id; parent references form a forest.
	Parent string

	// SourceRef/TargetRef are set on connection business objects.
	SourceRef string
	TargetRef string

	// FlowElements lists the ids of contained children. A nil slice means
	// the element is not a container; an empty non-nil slice is a
	// container with no children yet.
	FlowElements []string

	Extras map[string]interface{}
}

// NewBusinessObject creates a business object of the given type and
// merges the provided properties into it.
func NewBusinessObject(id, elementType string, properties map[string]interface{}) *BusinessObject {
	bo := &BusinessObject{
		ID:   id,
		Type: elementType,
	}
	bo.Merge(properties)
	return bo
}

// knownField returns a pointer to the typed field backing a property
// name, or nil when the property is not one of the known fields.
func (bo *BusinessObject) knownField(key string) *string {
	switch key {
	case "name":
		return &bo.Name
	case "documentation":
		return &bo.Documentation
	case "assignee":
		return &bo.Assignee
	case "candidateUsers":
		return &bo.CandidateUsers
	case "candidateGroups":
		return &bo.CandidateGroups
	case "formKey":
		return &bo.FormKey
	case "priority":
		return &bo.Priority
	case "dueDate":
		return &bo.DueDate
	default:
		return nil
	}
}

// Merge shallow-merges the patch into the business object. String values
// for known property names go into their typed fields; everything else
// goes into Extras.
func (bo *BusinessObject) Merge(patch map[string]interface{}) {
	for key, value := range patch {
		if field := bo.knownField(key); field != nil {
			if s, ok := value.(string); ok {
				*field = s
				continue
			}
		}
		if bo.Extras == nil {
			bo.Extras = make(map[string]interface{})
		}
		bo.Extras[key] = value
	}
}

// SetPath assigns a value at a dotted path, creating intermediate maps
// lazily. A single-segment path that names a known field with a string
// value writes the typed field; all other paths write into Extras.
func (bo *BusinessObject) SetPath(path string, value interface{}) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}
	if len(segments) == 1 {
		bo.Merge(map[string]interface{}{segments[0]: value})
		return
	}

	if bo.Extras == nil {
		bo.Extras = make(map[string]interface{})
	}
	current := bo.Extras
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// GetPath reads a value at a dotted path. Known typed fields are only
// addressable by their single-segment name.
func (bo *BusinessObject) GetPath(path string) (interface{}, bool) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}
	if len(segments) == 1 {
		if field := bo.knownField(segments[0]); field != nil && *field != "" {
			return *field, true
		}
	}
	var current interface{} = bo.Extras
	for _, segment := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ContainsFlowElement reports whether the id is already listed as a child.
func (bo *BusinessObject) ContainsFlowElement(id string) bool {
	for _, existing := range bo.FlowElements {
		if existing == id {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segments = append(segments, path[start:])
	}
	return segments
}

// Element is one entry in the diagram arena: either a shape or a
// connection, identified by its id. Incidence is tracked by id, never by
// pointer, so removals stay O(degree) lookups in the arena.
type Element struct {
	ID       string
	Kind     Kind
	Type     string
	Business *BusinessObject

	// Shape geometry. Width/Height are meaningless for connections.
	X      int
	Y      int
	Width  int
	Height int

	// Connection endpoints and routing.
	SourceID  string
	TargetID  string
	Waypoints []Point

	// Adjacency for shapes: ids of incident connections.
	Incoming map[string]struct{}
	Outgoing map[string]struct{}
}

// NewShape creates a shape element with default geometry.
func NewShape(id, elementType string) *Element {
	return &Element{
		ID:       id,
		Kind:     KindShape,
		Type:     elementType,
		Business: NewBusinessObject(id, elementType, nil),
		Width:    DefaultShapeWidth,
		Height:   DefaultShapeHeight,
		Incoming: make(map[string]struct{}),
		Outgoing: make(map[string]struct{}),
	}
}

// NewConnection creates a connection element between two shape ids.
func NewConnection(id, elementType, sourceID, targetID string) *Element {
	return &Element{
		ID:       id,
		Kind:     KindConnection,
		Type:     elementType,
		Business: NewBusinessObject(id, elementType, nil),
		SourceID: sourceID,
		TargetID: targetID,
	}
}

// Center returns the midpoint of a shape's bounding box.
func (e *Element) Center() Point {
	return Point{X: e.X + e.Width/2, Y: e.Y + e.Height/2}
}

// IsShape reports whether the element is a shape.
func (e *Element) IsShape() bool { return e.Kind == KindShape }

// IsConnection reports whether the element is a connection.
func (e *Element) IsConnection() bool { return e.Kind == KindConnection }
