package editor

// Gate implements the render gate: a boolean flag in front of the
// repaint primitive. While suspended, refreshes only mark elements
// dirty; Resume performs one coalesced full repaint. Both transitions
// are idempotent.
type Gate struct {
	suspended bool
	dirty     map[string]struct{}
	repaint   func()
}

// newGate wires the gate to the editor's full-repaint primitive.
func newGate(repaint func()) *Gate {
	return &Gate{
		dirty:   make(map[string]struct{}),
		repaint: repaint,
	}
}

// Suspend defers repainting until Resume. A second Suspend is a no-op.
func (g *Gate) Suspend() {
	g.suspended = true
}

// Resume repaints once for everything deferred while suspended. Resume
// while not suspended is a no-op.
func (g *Gate) Resume() {
	if !g.suspended {
		return
	}
	g.suspended = false
	g.dirty = make(map[string]struct{})
	g.repaint()
}

// IsSuspended reports whether repainting is deferred.
func (g *Gate) IsSuspended() bool {
	return g.suspended
}

// markDirty records an element for the coalesced repaint on Resume.
func (g *Gate) markDirty(id string) {
	g.dirty[id] = struct{}{}
}
