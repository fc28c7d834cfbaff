package treemodel

import (
	"sync"

	"github.com/drpcorg/modelsync"
)

// Mirror is a minimal modelsync.Observer: it holds the last root it was
// handed, protected by a mutex, and records every delivered delta for
// callers (tests, the demo command) that want to assert on what arrived
// rather than reimplement an observer each time.
type Mirror struct {
	mu       sync.Mutex
	root     modelsync.Model
	hasRoot  bool
	deltas   []modelsync.Delta
	replaced int
}

// NewMirror seeds a Mirror with an initial root (possibly nil/absent).
func NewMirror(root modelsync.Model, hasRoot bool) *Mirror {
	return &Mirror{root: root, hasRoot: hasRoot}
}

func (m *Mirror) CurrentModel() (modelsync.Model, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root, m.hasRoot
}

func (m *Mirror) OnModelUpdated(newRoot modelsync.Model, hasRoot bool, delta modelsync.Delta, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root, m.hasRoot = newRoot, hasRoot
	m.deltas = append(m.deltas, delta)
}

// WillReplaceModel implements modelsync.WillReplaceModelDelegate so Mirror
// can double as a delegate in tests that want to observe both streams.
func (m *Mirror) WillReplaceModel(_, _ modelsync.Model, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced++
}

// Deltas returns every delta delivered so far, oldest first.
func (m *Mirror) Deltas() []modelsync.Delta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]modelsync.Delta, len(m.deltas))
	copy(out, m.deltas)
	return out
}

// ReplaceCount reports how many WillReplaceModel notifications arrived.
func (m *Mirror) ReplaceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced
}
