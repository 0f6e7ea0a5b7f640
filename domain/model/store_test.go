package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertShapeRejectsDuplicateID(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("task_1", "task")))

	err := store.InsertShape(NewShape("task_1", "task"))
	assert.Error(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestInsertConnectionRequiresEndpoints(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("a", "task")))

	err := store.InsertConnection(NewConnection("flow_1", "sequenceFlow", "a", "missing"))
	assert.Error(t, err)

	require.NoError(t, store.InsertShape(NewShape("b", "task")))
	require.NoError(t, store.InsertConnection(NewConnection("flow_1", "sequenceFlow", "a", "b")))

	a, _ := store.Get("a")
	b, _ := store.Get("b")
	assert.Contains(t, a.Outgoing, "flow_1")
	assert.Contains(t, b.Incoming, "flow_1")
}

func TestInsertConnectionRejectsConnectionEndpoints(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("a", "task")))
	require.NoError(t, store.InsertShape(NewShape("b", "task")))
	require.NoError(t, store.InsertConnection(NewConnection("ab", "sequenceFlow", "a", "b")))

	// A connection terminating on another connection is malformed and
	// must come back as an error, not corrupt the arena.
	err := store.InsertConnection(NewConnection("bad_1", "sequenceFlow", "ab", "b"))
	assert.Error(t, err)
	err = store.InsertConnection(NewConnection("bad_2", "sequenceFlow", "a", "ab"))
	assert.Error(t, err)

	_, ok := store.Get("bad_1")
	assert.False(t, ok)
	assert.Equal(t, 3, store.Len())
}

func TestRemoveShapeCascadesToConnections(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("a", "task")))
	require.NoError(t, store.InsertShape(NewShape("b", "task")))
	require.NoError(t, store.InsertShape(NewShape("c", "task")))
	require.NoError(t, store.InsertConnection(NewConnection("ab", "sequenceFlow", "a", "b")))
	require.NoError(t, store.InsertConnection(NewConnection("bc", "sequenceFlow", "b", "c")))

	assert.True(t, store.RemoveByID("b"))

	_, ok := store.Get("b")
	assert.False(t, ok)
	_, ok = store.Get("ab")
	assert.False(t, ok)
	_, ok = store.Get("bc")
	assert.False(t, ok)

	// The surviving endpoints no longer reference the dead connections.
	a, _ := store.Get("a")
	c, _ := store.Get("c")
	assert.Empty(t, a.Outgoing)
	assert.Empty(t, c.Incoming)
}

func TestRemoveConnectionDetachesEndpoints(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("a", "task")))
	require.NoError(t, store.InsertShape(NewShape("b", "task")))
	require.NoError(t, store.InsertConnection(NewConnection("ab", "sequenceFlow", "a", "b")))

	assert.True(t, store.RemoveByID("ab"))

	a, _ := store.Get("a")
	b, _ := store.Get("b")
	assert.Empty(t, a.Outgoing)
	assert.Empty(t, b.Incoming)
	assert.Equal(t, 2, store.Len())
}

func TestRemoveUnknownIDIsNoOp(t *testing.T) {
	store := NewStore()
	assert.False(t, store.RemoveByID("ghost"))
}

func TestSetBusinessPathCreatesIntermediateMaps(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("task_1", "userTask")))

	assert.True(t, store.SetBusinessPath("task_1", "extensionElements.properties.priority", "high"))

	el, _ := store.Get("task_1")
	value, ok := el.Business.GetPath("extensionElements.properties.priority")
	require.True(t, ok)
	assert.Equal(t, "high", value)
}

func TestSetBusinessPathKnownField(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("task_1", "userTask")))

	assert.True(t, store.SetBusinessPath("task_1", "name", "Review order"))

	el, _ := store.Get("task_1")
	assert.Equal(t, "Review order", el.Business.Name)
}

func TestReparentAppendsToContainer(t *testing.T) {
	store := NewStore()
	parent := NewShape("pool_1", "participant")
	parent.Business.FlowElements = []string{}
	require.NoError(t, store.InsertShape(parent))
	require.NoError(t, store.InsertShape(NewShape("task_1", "task")))

	assert.True(t, store.Reparent("task_1", "pool_1"))
	assert.True(t, store.Reparent("task_1", "pool_1"))

	child, _ := store.Get("task_1")
	assert.Equal(t, "pool_1", child.Business.Parent)
	assert.Equal(t, []string{"task_1"}, parent.Business.FlowElements)
}

func TestReparentNonContainerOnlySetsParent(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("lane_1", "lane")))
	require.NoError(t, store.InsertShape(NewShape("task_1", "task")))

	assert.True(t, store.Reparent("task_1", "lane_1"))

	parent, _ := store.Get("lane_1")
	child, _ := store.Get("task_1")
	assert.Nil(t, parent.Business.FlowElements)
	assert.Equal(t, "lane_1", child.Business.Parent)
}

func TestSetGeometryPatchesOnlyPresentFields(t *testing.T) {
	store := NewStore()
	shape := NewShape("task_1", "task")
	shape.X, shape.Y = 10, 20
	require.NoError(t, store.InsertShape(shape))

	x := 99
	assert.True(t, store.SetGeometry("task_1", GeometryPatch{X: &x}))

	el, _ := store.Get("task_1")
	assert.Equal(t, 99, el.X)
	assert.Equal(t, 20, el.Y)
	assert.Equal(t, DefaultShapeWidth, el.Width)
	assert.Equal(t, DefaultShapeHeight, el.Height)
}

func TestCountByType(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.InsertShape(NewShape("a", "task")))
	require.NoError(t, store.InsertShape(NewShape("b", "task")))
	require.NoError(t, store.InsertShape(NewShape("c", "gateway")))

	counts := store.CountByType()
	assert.Equal(t, 2, counts["task"])
	assert.Equal(t, 1, counts["gateway"])
}
