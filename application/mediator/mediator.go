// Package mediator breaks the feedback loop between locally originated
// edits (broadcast outward) and remotely originated changes (applied
// inward). Every editor event is classified by origin; aftershocks of a
// remote application are dropped so they are never re-broadcast.
package mediator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"collabgraph-backend/application/mutation"
	"collabgraph-backend/application/ports"
	"collabgraph-backend/domain/events"
)

const (
	// DebounceWindow is the quiescence period before the outbound
	// change buffer is flushed.
	DebounceWindow = 100 * time.Millisecond

	// duplicateWindow collapses same-kind events on the same element.
	duplicateWindow = 50 * time.Millisecond

	// remoteSourceTTL is how long an element id stays marked as
	// recently touched by a remote change.
	remoteSourceTTL = 5 * time.Second

	// trackerTTL retains change-tracking records twice as long.
	trackerTTL = 10 * time.Second

	sweepInterval = 5 * time.Second
)

type origin string

const (
	originLocal  origin = "local"
	originRemote origin = "remote"
)

// sourceRecord is the last origin seen for an element id.
type sourceRecord struct {
	timestamp time.Time
	origin    origin
	processed bool
}

// trackRecord tracks change cadence per element for duplicate filtering.
type trackRecord struct {
	lastKind      events.ChangeKind
	changeCount   int
	lastTimestamp time.Time
}

// Mediator subscribes to the editor event bus, debounces and coalesces
// outbound local changes, and applies inbound remote batches through the
// silent mutation layer.
type Mediator struct {
	mu sync.Mutex

	bus    ports.EventBus
	layer  *mutation.Layer
	userID string
	logger *zap.Logger

	processingRemote bool
	remoteSources    map[string]time.Time // element id -> expiry
	history          map[string]sourceRecord
	tracker          map[string]trackRecord

	changeBuffer map[string]events.ChangeEvent
	bufferOrder  []string
	debounce     *time.Timer

	onLocalChange  func([]events.ChangeEvent)
	onRemoteChange func(events.ChangeEvent)

	unsubscribes []func()
	stopSweep    chan struct{}
	sweepDone    chan struct{}

	// now is swappable for TTL tests.
	now func() time.Time
}

// New creates a mediator for one user's editor.
func New(bus ports.EventBus, layer *mutation.Layer, userID string, logger *zap.Logger) *Mediator {
	return &Mediator{
		bus:           bus,
		layer:         layer,
		userID:        userID,
		logger:        logger,
		remoteSources: make(map[string]time.Time),
		history:       make(map[string]sourceRecord),
		tracker:       make(map[string]trackRecord),
		changeBuffer:  make(map[string]events.ChangeEvent),
		now:           time.Now,
	}
}

// OnLocalChange sets the callback receiving flushed outbound batches.
func (m *Mediator) OnLocalChange(fn func([]events.ChangeEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLocalChange = fn
}

// OnRemoteChange sets the callback invoked per applied remote change.
func (m *Mediator) OnRemoteChange(fn func(events.ChangeEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemoteChange = fn
}

// Start subscribes to the editor events and begins the TTL sweep.
func (m *Mediator) Start() {
	subscribe := func(topic string, handler func(ports.BusEvent)) {
		m.unsubscribes = append(m.unsubscribes, m.bus.Subscribe(topic, handler))
	}

	subscribe(ports.TopicElementChanged, m.handleElementChanged)
	subscribe(ports.TopicCommandStack, m.handleCommandStackChanged)
	subscribe(ports.TopicShapeMoved, m.handleMoved)
	subscribe(ports.TopicConnectionMoved, m.handleMoved)
	subscribe(ports.TopicShapeAdded, m.handleAdded)
	subscribe(ports.TopicConnectionAdded, m.handleAdded)
	subscribe(ports.TopicShapeRemoved, m.handleRemoved)
	subscribe(ports.TopicConnectionRemoved, m.handleRemoved)

	m.stopSweep = make(chan struct{})
	m.sweepDone = make(chan struct{})
	go m.sweepLoop()
}

// shouldIgnore decides whether a locally observed event is an aftershock
// of a remote application. Caller holds m.mu.
func (m *Mediator) shouldIgnore(elementID string) bool {
	if m.processingRemote {
		return true
	}
	if _, marked := m.remoteSources[elementID]; marked {
		delete(m.remoteSources, elementID)
		return true
	}
	if record, ok := m.history[elementID]; ok {
		if record.origin == originRemote &&
			m.now().Sub(record.timestamp) < remoteSourceTTL &&
			!record.processed {
			return true
		}
	}
	return false
}

// isDuplicate reports whether a change repeats the element's last kind
// within the 50 ms window. Caller holds m.mu. Accepted changes update
// the tracker; repeats leave its cadence record untouched.
func (m *Mediator) isDuplicate(elementID string, kind events.ChangeKind) bool {
	now := m.now()
	record, ok := m.tracker[elementID]
	if ok && record.lastKind == kind && now.Sub(record.lastTimestamp) < duplicateWindow {
		return true
	}
	m.tracker[elementID] = trackRecord{
		lastKind:      kind,
		changeCount:   record.changeCount + 1,
		lastTimestamp: now,
	}
	return false
}

func (m *Mediator) handleElementChanged(event ports.BusEvent) {
	if event.Element == nil {
		return
	}
	m.bufferLocalChange(events.FromElement(events.ChangeProperty, event.Element, m.userID))
}

// handleCommandStackChanged feeds the debounced buffer for the two
// model-mutating commands; any other command is history bookkeeping the
// peers do not care about.
func (m *Mediator) handleCommandStackChanged(event ports.BusEvent) {
	if event.Element == nil {
		return
	}
	switch event.Command {
	case "element.updateProperties":
		m.bufferLocalChange(events.FromElement(events.ChangeProperty, event.Element, m.userID))
	case "elements.move":
		m.bufferLocalChange(events.FromElement(events.ChangePosition, event.Element, m.userID))
	}
}

func (m *Mediator) handleMoved(event ports.BusEvent) {
	if event.Element == nil {
		return
	}
	m.bufferLocalChange(events.FromElement(events.ChangePosition, event.Element, m.userID))
}

// handleAdded is the immediate path: creations are emitted without
// debounce so peers can resolve references in later changes.
func (m *Mediator) handleAdded(event ports.BusEvent) {
	if event.Element == nil {
		return
	}
	kind := events.ChangeCreate
	if event.Element.IsConnection() {
		kind = events.ChangeConnection
	}
	m.emitImmediate(events.FromElement(kind, event.Element, m.userID))
}

func (m *Mediator) handleRemoved(event ports.BusEvent) {
	if event.Element == nil {
		return
	}
	m.emitImmediate(events.FromElement(events.ChangeRemove, event.Element, m.userID))
}

// bufferLocalChange coalesces a debounced-kind change into the outbound
// buffer, keyed by element id so the last value wins, and (re)arms the
// debounce timer.
func (m *Mediator) bufferLocalChange(change events.ChangeEvent) {
	m.mu.Lock()
	if m.shouldIgnore(change.ElementID) {
		m.mu.Unlock()
		return
	}
	// The duplicate filter only throttles the cadence tracker. A rapid
	// same-kind repeat still overwrites its buffer slot, so the flushed
	// batch carries the latest value.
	if m.isDuplicate(change.ElementID, change.Kind) {
		m.logger.Debug("Coalescing rapid repeat",
			zap.String("elementId", change.ElementID),
			zap.String("kind", string(change.Kind)))
	}

	if _, buffered := m.changeBuffer[change.ElementID]; !buffered {
		m.bufferOrder = append(m.bufferOrder, change.ElementID)
	}
	m.changeBuffer[change.ElementID] = change
	m.history[change.ElementID] = sourceRecord{
		timestamp: m.now(),
		origin:    originLocal,
		processed: false,
	}

	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(DebounceWindow, m.flush)
	m.mu.Unlock()
}

// emitImmediate bypasses the debounce buffer for structural changes.
func (m *Mediator) emitImmediate(change events.ChangeEvent) {
	m.mu.Lock()
	if m.shouldIgnore(change.ElementID) {
		m.mu.Unlock()
		return
	}
	m.history[change.ElementID] = sourceRecord{
		timestamp: m.now(),
		origin:    originLocal,
		processed: false,
	}
	callback := m.onLocalChange
	m.mu.Unlock()

	if callback != nil {
		callback([]events.ChangeEvent{change})
	}
}

// flush drains the debounce buffer in insertion order and hands the
// batch to the local-change callback.
func (m *Mediator) flush() {
	m.mu.Lock()
	if len(m.changeBuffer) == 0 {
		m.mu.Unlock()
		return
	}
	batch := make([]events.ChangeEvent, 0, len(m.changeBuffer))
	for _, id := range m.bufferOrder {
		if change, ok := m.changeBuffer[id]; ok {
			batch = append(batch, change)
		}
	}
	m.changeBuffer = make(map[string]events.ChangeEvent)
	m.bufferOrder = nil
	callback := m.onLocalChange
	m.mu.Unlock()

	if callback != nil {
		callback(batch)
	}
}

// ApplyRemoteChanges applies an inbound batch through the silent
// mutation layer under render-gate suspension, then marks every touched
// id as a recent remote source so its local aftershocks are dropped.
// The processing flag is cleared on every exit path.
func (m *Mediator) ApplyRemoteChanges(changes []events.ChangeEvent) {
	m.mu.Lock()
	m.processingRemote = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		now := m.now()
		for i := range changes {
			id := changes[i].ElementID
			m.remoteSources[id] = now.Add(remoteSourceTTL)
			m.history[id] = sourceRecord{
				timestamp: now,
				origin:    originRemote,
				processed: true,
			}
		}
		callback := m.onRemoteChange
		m.processingRemote = false
		m.mu.Unlock()

		if callback != nil {
			for i := range changes {
				callback(changes[i])
			}
		}
	}()

	m.layer.BatchUpdateOptimized(changes)
}

// IsProcessingRemote reports whether an inbound batch is being applied.
func (m *Mediator) IsProcessingRemote() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processingRemote
}

func (m *Mediator) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	defer close(m.sweepDone)
	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep prunes expired remote-source marks, history records older than
// 5 s and tracker records older than 10 s.
func (m *Mediator) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, expiry := range m.remoteSources {
		if now.After(expiry) {
			delete(m.remoteSources, id)
		}
	}
	for id, record := range m.history {
		if now.Sub(record.timestamp) > remoteSourceTTL {
			delete(m.history, id)
		}
	}
	for id, record := range m.tracker {
		if now.Sub(record.lastTimestamp) > trackerTTL {
			delete(m.tracker, id)
		}
	}
}

// Cleanup cancels timers, unsubscribes from the bus and clears all
// mediator state.
func (m *Mediator) Cleanup() {
	for _, unsubscribe := range m.unsubscribes {
		unsubscribe()
	}
	m.unsubscribes = nil

	if m.stopSweep != nil {
		close(m.stopSweep)
		<-m.sweepDone
		m.stopSweep = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	m.processingRemote = false
	m.remoteSources = make(map[string]time.Time)
	m.history = make(map[string]sourceRecord)
	m.tracker = make(map[string]trackRecord)
	m.changeBuffer = make(map[string]events.ChangeEvent)
	m.bufferOrder = nil
	m.onLocalChange = nil
	m.onRemoteChange = nil
}
