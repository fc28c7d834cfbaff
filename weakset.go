package modelsync

// weakObserverSet is an ordered, append-only collection of weakly held
// observer handles. It is the Go-idiomatic replacement for the teacher's
// ObjectListener trigger list (objlstn.go), generalized from a single
// id's []*FieldTrigger to a reusable container keyed by nothing — the
// ListenerIndex supplies the id dimension by holding one weakObserverSet
// per bucket.
//
// All reads may race with weak-handle expiry: "is this observer still
// alive" is a check performed at the moment of use, never cached.
type weakObserverSet struct {
	handles []ObserverHandle
}

// append adds o to the set unless an observer with the same identity is
// already present.
func (s *weakObserverSet) append(o ObserverHandle) {
	if s.containsIdentity(o) {
		return
	}
	s.handles = append(s.handles, o)
}

// containsIdentity reports whether o is already present, compared by
// pointer identity of the resolved Observer, not semantic equality.
func (s *weakObserverSet) containsIdentity(o ObserverHandle) bool {
	for _, existing := range s.handles {
		if existing.sameIdentity(o) {
			return true
		}
	}
	return false
}

// mapInPlace is C1's map(f): every live handle is replaced in place by
// f(handle); a dead handle is dropped without calling f (there is no
// live observer for f to act on), and f itself returning ok == false
// drops that slot too. It is the one primitive prune, removeByIdentity,
// and removeByValue are all built from below — the original's map(f)
// over Option<Observer> is load-bearing the same way here.
func (s *weakObserverSet) mapInPlace(f func(ObserverHandle) (ObserverHandle, bool)) []ObserverHandle {
	out := make([]ObserverHandle, 0, len(s.handles))
	for _, h := range s.handles {
		if _, ok := h.resolve(); !ok {
			continue
		}
		if replaced, ok := f(h); ok {
			out = append(out, replaced)
		}
	}
	s.handles = out
	return out
}

// prune drops dead slots in place and returns the handles that are still
// live, in insertion order. Returning handles rather than resolved
// Observers lets callers re-register the same weak reference elsewhere
// (e.g. against a newly introduced subtree) without needing the original
// concrete pointer type.
func (s *weakObserverSet) prune() []ObserverHandle {
	return s.mapInPlace(func(h ObserverHandle) (ObserverHandle, bool) { return h, true })
}

// removeByIdentity removes the handle resolving to the same object as
// target, if present. Reports whether anything was removed.
func (s *weakObserverSet) removeByIdentity(target ObserverHandle) bool {
	removed := false
	s.mapInPlace(func(h ObserverHandle) (ObserverHandle, bool) {
		if h.sameIdentity(target) {
			removed = true
			return h, false
		}
		return h, true
	})
	return removed
}

// removeByValue removes the handle resolving to obs itself (pointer
// identity of the resolved Observer), if present.
func (s *weakObserverSet) removeByValue(obs Observer) bool {
	removed := false
	s.mapInPlace(func(h ObserverHandle) (ObserverHandle, bool) {
		if resolved, ok := h.resolve(); ok && resolved == obs {
			removed = true
			return h, false
		}
		return h, true
	})
	return removed
}

// count returns the number of handles currently stored, live or dead —
// callers that need the live count should prune first.
func (s *weakObserverSet) count() int {
	return len(s.handles)
}

// empty reports whether the set has no handles at all.
func (s *weakObserverSet) empty() bool {
	return len(s.handles) == 0
}
