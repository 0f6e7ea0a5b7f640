package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/events"
	"collabgraph-backend/infrastructure/editor"
)

func newTestLayer(t *testing.T) (*Layer, *editor.Editor) {
	t.Helper()
	e := editor.New(zap.NewNop())
	return NewLayer(e, zap.NewNop()), e
}

func TestAddElementSilentlyEmitsNoEvents(t *testing.T) {
	layer, e := newTestLayer(t)

	var published []string
	for _, topic := range []string{
		ports.TopicShapeAdded,
		ports.TopicElementChanged,
		ports.TopicCommandStack,
	} {
		topic := topic
		e.Bus().Subscribe(topic, func(ports.BusEvent) {
			published = append(published, topic)
		})
	}

	el, err := layer.AddElementSilently(&events.ElementData{ID: "task_1", Type: "task"}, "")
	require.NoError(t, err)
	assert.Equal(t, "task_1", el.ID)
	assert.Empty(t, published)

	stored, ok := e.Model().Get("task_1")
	require.True(t, ok)
	assert.Equal(t, "task", stored.Type)
}

func TestAddElementSilentlyGeneratesIDWhenMissing(t *testing.T) {
	layer, e := newTestLayer(t)

	el, err := layer.AddElementSilently(&events.ElementData{Type: "task"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, el.ID)

	_, ok := e.Model().Get(el.ID)
	assert.True(t, ok)
}

func TestAddElementSilentlyAppliesGeometryDefaults(t *testing.T) {
	layer, _ := newTestLayer(t)

	el, err := layer.AddElementSilently(&events.ElementData{ID: "task_1", Type: "task", X: 30, Y: 40}, "")
	require.NoError(t, err)
	assert.Equal(t, 30, el.X)
	assert.Equal(t, 40, el.Y)
	assert.Equal(t, 100, el.Width)
	assert.Equal(t, 80, el.Height)
}

func TestAddElementSilentlyReparents(t *testing.T) {
	layer, e := newTestLayer(t)
	parent, err := layer.AddElementSilently(&events.ElementData{ID: "pool_1", Type: "participant"}, "")
	require.NoError(t, err)
	parent.Business.FlowElements = []string{}

	_, err = layer.AddElementSilently(&events.ElementData{ID: "task_1", Type: "task"}, "pool_1")
	require.NoError(t, err)

	child, _ := e.Model().Get("task_1")
	assert.Equal(t, "pool_1", child.Business.Parent)
	assert.Equal(t, []string{"task_1"}, parent.Business.FlowElements)
}

func TestAddConnectionSilentlyDefaultsWaypointsToCenters(t *testing.T) {
	layer, _ := newTestLayer(t)
	_, err := layer.AddElementSilently(&events.ElementData{ID: "a", Type: "task", X: 0, Y: 0}, "")
	require.NoError(t, err)
	_, err = layer.AddElementSilently(&events.ElementData{ID: "b", Type: "task", X: 200, Y: 100}, "")
	require.NoError(t, err)

	conn, err := layer.AddConnectionSilently(&events.ElementData{ID: "ab", Type: "sequenceFlow"}, "a", "b")
	require.NoError(t, err)

	require.Len(t, conn.Waypoints, 2)
	assert.Equal(t, 50, conn.Waypoints[0].X)
	assert.Equal(t, 40, conn.Waypoints[0].Y)
	assert.Equal(t, 250, conn.Waypoints[1].X)
	assert.Equal(t, 140, conn.Waypoints[1].Y)
	assert.Equal(t, "a", conn.Business.SourceRef)
	assert.Equal(t, "b", conn.Business.TargetRef)
}

func TestAddConnectionSilentlyRequiresEndpoints(t *testing.T) {
	layer, _ := newTestLayer(t)
	_, err := layer.AddConnectionSilently(&events.ElementData{ID: "ab", Type: "sequenceFlow"}, "a", "b")
	assert.Error(t, err)
}

func TestRemoveElementSilentlyCascades(t *testing.T) {
	layer, e := newTestLayer(t)
	_, err := layer.AddElementSilently(&events.ElementData{ID: "a", Type: "task"}, "")
	require.NoError(t, err)
	_, err = layer.AddElementSilently(&events.ElementData{ID: "b", Type: "task"}, "")
	require.NoError(t, err)
	_, err = layer.AddConnectionSilently(&events.ElementData{ID: "ab", Type: "sequenceFlow"}, "a", "b")
	require.NoError(t, err)

	var removals int
	e.Bus().Subscribe(ports.TopicShapeRemoved, func(ports.BusEvent) { removals++ })
	e.Bus().Subscribe(ports.TopicConnectionRemoved, func(ports.BusEvent) { removals++ })

	assert.True(t, layer.RemoveElementSilently("a"))
	assert.Zero(t, removals)

	_, ok := e.Model().Get("a")
	assert.False(t, ok)
	_, ok = e.Model().Get("ab")
	assert.False(t, ok)
	_, ok = e.Model().Get("b")
	assert.True(t, ok)
}

func TestRemoveElementSilentlyUnknownID(t *testing.T) {
	layer, _ := newTestLayer(t)
	assert.False(t, layer.RemoveElementSilently("ghost"))
}

func TestUpdateBusinessObjectDirectly(t *testing.T) {
	layer, e := newTestLayer(t)
	_, err := layer.AddElementSilently(&events.ElementData{ID: "task_1", Type: "userTask"}, "")
	require.NoError(t, err)

	el := layer.UpdateBusinessObjectDirectly("task_1", map[string]interface{}{
		"name":     "Review order",
		"assignee": "kate",
	})
	require.NotNil(t, el)
	assert.Equal(t, "Review order", el.Business.Name)

	stored, _ := e.Model().Get("task_1")
	assert.Equal(t, "kate", stored.Business.Assignee)

	assert.Nil(t, layer.UpdateBusinessObjectDirectly("ghost", map[string]interface{}{"name": "x"}))
}

func TestSetBusinessObjectPropertyDottedPath(t *testing.T) {
	layer, e := newTestLayer(t)
	_, err := layer.AddElementSilently(&events.ElementData{ID: "task_1", Type: "task"}, "")
	require.NoError(t, err)

	assert.True(t, layer.SetBusinessObjectProperty("task_1", "extension.priority", "high"))

	el, _ := e.Model().Get("task_1")
	value, ok := el.Business.GetPath("extension.priority")
	require.True(t, ok)
	assert.Equal(t, "high", value)
}

func TestSetElementPositionAndSize(t *testing.T) {
	layer, e := newTestLayer(t)
	_, err := layer.AddElementSilently(&events.ElementData{ID: "task_1", Type: "task"}, "")
	require.NoError(t, err)

	assert.True(t, layer.SetElementPosition("task_1", 300, 150))
	assert.True(t, layer.SetElementSize("task_1", 120, 60))

	el, _ := e.Model().Get("task_1")
	assert.Equal(t, 300, el.X)
	assert.Equal(t, 150, el.Y)
	assert.Equal(t, 120, el.Width)
	assert.Equal(t, 60, el.Height)

	assert.False(t, layer.SetElementPosition("ghost", 0, 0))
}
