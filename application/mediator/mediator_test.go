package mediator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabgraph-backend/application/mutation"
	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/events"
	"collabgraph-backend/domain/model"
	"collabgraph-backend/infrastructure/editor"
)

type fixture struct {
	editor   *editor.Editor
	layer    *mutation.Layer
	mediator *Mediator

	mu      sync.Mutex
	batches [][]events.ChangeEvent
	remote  []events.ChangeEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	e := editor.New(zap.NewNop())
	layer := mutation.NewLayer(e, zap.NewNop())
	m := New(e.Bus(), layer, "u1", zap.NewNop())

	f := &fixture{editor: e, layer: layer, mediator: m}
	m.OnLocalChange(func(batch []events.ChangeEvent) {
		f.mu.Lock()
		f.batches = append(f.batches, batch)
		f.mu.Unlock()
	})
	m.OnRemoteChange(func(change events.ChangeEvent) {
		f.mu.Lock()
		f.remote = append(f.remote, change)
		f.mu.Unlock()
	})
	m.Start()
	t.Cleanup(m.Cleanup)
	return f
}

func (f *fixture) localBatches() [][]events.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]events.ChangeEvent, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fixture) remoteCallbacks() []events.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.ChangeEvent, len(f.remote))
	copy(out, f.remote)
	return out
}

// advance moves the mediator's clock without touching the wall clock
// driving the debounce timer.
func (f *fixture) advance(d time.Duration) {
	f.mediator.mu.Lock()
	base := f.mediator.now()
	f.mediator.now = func() time.Time { return base.Add(d) }
	f.mediator.mu.Unlock()
}

func waitForFlush() {
	time.Sleep(DebounceWindow + 100*time.Millisecond)
}

func TestLocalCreateEmitsImmediately(t *testing.T) {
	f := newFixture(t)

	shape := newShape(t, f, "task_1")

	batches := f.localBatches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, events.ChangeCreate, batches[0][0].Kind)
	assert.Equal(t, shape.ID, batches[0][0].ElementID)
	assert.Equal(t, "u1", batches[0][0].UserID)
}

func TestLocalRemoveEmitsImmediately(t *testing.T) {
	f := newFixture(t)
	newShape(t, f, "task_1")

	require.NoError(t, f.editor.DeleteElement("task_1"))

	batches := f.localBatches()
	require.Len(t, batches, 2)
	assert.Equal(t, events.ChangeRemove, batches[1][0].Kind)
}

func TestPropertyEditsAreDebouncedAndCoalesced(t *testing.T) {
	f := newFixture(t)
	newShape(t, f, "task_1")
	newShape(t, f, "task_2")

	require.NoError(t, f.editor.UpdateProperties("task_1", map[string]interface{}{"name": "First"}))
	f.advance(60 * time.Millisecond)
	require.NoError(t, f.editor.UpdateProperties("task_1", map[string]interface{}{"name": "Second"}))
	f.advance(120 * time.Millisecond)
	require.NoError(t, f.editor.UpdateProperties("task_2", map[string]interface{}{"name": "Other"}))

	waitForFlush()

	batches := f.localBatches()
	// Two immediate create batches plus one flushed property batch.
	require.Len(t, batches, 3)
	flushed := batches[2]
	require.Len(t, flushed, 2)

	// Last value wins for task_1; insertion order is preserved.
	assert.Equal(t, "task_1", flushed[0].ElementID)
	assert.Equal(t, "Second", flushed[0].Properties["name"])
	assert.Equal(t, "task_2", flushed[1].ElementID)
}

func TestSameKindBurstFlushesLastValue(t *testing.T) {
	f := newFixture(t)
	newShape(t, f, "task_1")

	// Back-to-back edits with no clock advance: every repeat lands
	// inside the duplicate window, but the flush must still carry the
	// final value, not the first.
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, f.editor.UpdateProperties("task_1", map[string]interface{}{"name": name}))
	}

	waitForFlush()

	batches := f.localBatches()
	// One immediate create batch plus one flushed property batch.
	require.Len(t, batches, 2)
	flushed := batches[1]
	require.Len(t, flushed, 1)
	assert.Equal(t, "task_1", flushed[0].ElementID)
	assert.Equal(t, "C", flushed[0].Properties["name"])
}

func TestRapidSameKindEventsAreFilteredAsDuplicates(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.mediator.isDuplicate("task_1", events.ChangeProperty))
	assert.True(t, f.mediator.isDuplicate("task_1", events.ChangeProperty))

	// A different kind on the same element is not a duplicate.
	assert.False(t, f.mediator.isDuplicate("task_1", events.ChangePosition))

	// After the window passes the same kind is accepted again.
	f.advance(duplicateWindow + time.Millisecond)
	assert.False(t, f.mediator.isDuplicate("task_1", events.ChangeProperty))
}

func TestShouldIgnoreDuringRemoteProcessing(t *testing.T) {
	f := newFixture(t)
	m := f.mediator

	m.mu.Lock()
	m.processingRemote = true
	ignored := m.shouldIgnore("anything")
	m.processingRemote = false
	m.mu.Unlock()

	assert.True(t, ignored)
}

func TestShouldIgnoreConsumesRemoteSourceMark(t *testing.T) {
	f := newFixture(t)
	m := f.mediator

	m.mu.Lock()
	m.remoteSources["task_1"] = m.now().Add(remoteSourceTTL)
	first := m.shouldIgnore("task_1")
	_, stillMarked := m.remoteSources["task_1"]
	m.mu.Unlock()

	assert.True(t, first)
	assert.False(t, stillMarked)
}

func TestShouldIgnoreUnprocessedRecentRemoteHistory(t *testing.T) {
	f := newFixture(t)
	m := f.mediator

	m.mu.Lock()
	m.history["task_1"] = sourceRecord{timestamp: m.now(), origin: originRemote, processed: false}
	m.history["task_2"] = sourceRecord{timestamp: m.now(), origin: originRemote, processed: true}
	m.history["task_3"] = sourceRecord{timestamp: m.now(), origin: originLocal, processed: false}
	unprocessedRemote := m.shouldIgnore("task_1")
	processedRemote := m.shouldIgnore("task_2")
	local := m.shouldIgnore("task_3")
	m.mu.Unlock()

	assert.True(t, unprocessedRemote)
	assert.False(t, processedRemote)
	assert.False(t, local)
}

func TestApplyRemoteChangesSuppressesEcho(t *testing.T) {
	f := newFixture(t)

	f.mediator.ApplyRemoteChanges([]events.ChangeEvent{{
		Kind:        events.ChangeCreate,
		ElementID:   "task_1",
		ElementType: "task",
		ElementData: &events.ElementData{ID: "task_1", Type: "task"},
	}})

	assert.False(t, f.mediator.IsProcessingRemote())
	_, ok := f.editor.Model().Get("task_1")
	require.True(t, ok)
	require.Len(t, f.remoteCallbacks(), 1)

	// The aftershock a graphics layer would raise for the applied
	// element is classified as remote-sourced and never broadcast.
	el, _ := f.editor.Model().Get("task_1")
	f.editor.Bus().Publish(ports.BusEvent{Topic: ports.TopicElementChanged, Element: el})
	waitForFlush()

	assert.Empty(t, f.localBatches())
}

func TestApplyRemoteRemoveCascades(t *testing.T) {
	f := newFixture(t)

	f.mediator.ApplyRemoteChanges([]events.ChangeEvent{
		{Kind: events.ChangeCreate, ElementID: "a", ElementType: "task",
			ElementData: &events.ElementData{ID: "a", Type: "task"}},
		{Kind: events.ChangeCreate, ElementID: "b", ElementType: "task",
			ElementData: &events.ElementData{ID: "b", Type: "task"}},
		{Kind: events.ChangeConnection, ElementID: "ab", ElementType: "sequenceFlow",
			SourceID: "a", TargetID: "b",
			ElementData: &events.ElementData{ID: "ab", Type: "sequenceFlow"}},
	})
	require.Equal(t, 3, f.editor.Model().Len())

	f.mediator.ApplyRemoteChanges([]events.ChangeEvent{
		{Kind: events.ChangeRemove, ElementID: "a"},
	})

	_, ok := f.editor.Model().Get("a")
	assert.False(t, ok)
	_, ok = f.editor.Model().Get("ab")
	assert.False(t, ok)
	_, ok = f.editor.Model().Get("b")
	assert.True(t, ok)
}

func TestSweepPrunesExpiredState(t *testing.T) {
	f := newFixture(t)
	m := f.mediator

	m.mu.Lock()
	m.remoteSources["old"] = m.now().Add(-time.Second)
	m.remoteSources["fresh"] = m.now().Add(remoteSourceTTL)
	m.history["old"] = sourceRecord{timestamp: m.now().Add(-6 * time.Second)}
	m.history["fresh"] = sourceRecord{timestamp: m.now()}
	m.tracker["old"] = trackRecord{lastTimestamp: m.now().Add(-11 * time.Second)}
	m.tracker["fresh"] = trackRecord{lastTimestamp: m.now()}
	m.mu.Unlock()

	m.sweep()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.remoteSources, "old")
	assert.Contains(t, m.remoteSources, "fresh")
	assert.NotContains(t, m.history, "old")
	assert.Contains(t, m.history, "fresh")
	assert.NotContains(t, m.tracker, "old")
	assert.Contains(t, m.tracker, "fresh")
}

func TestCleanupDropsPendingBufferAndSubscriptions(t *testing.T) {
	f := newFixture(t)
	newShape(t, f, "task_1")
	require.NoError(t, f.editor.UpdateProperties("task_1", map[string]interface{}{"name": "Pending"}))

	before := len(f.localBatches())
	f.mediator.Cleanup()
	waitForFlush()

	// The buffered property change was discarded and later editor events
	// no longer reach the mediator.
	assert.Len(t, f.localBatches(), before)
}

func newShape(t *testing.T, f *fixture, id string) *model.Element {
	t.Helper()
	shape := model.NewShape(id, "task")
	require.NoError(t, f.editor.CreateShape(shape))
	return shape
}
