package modelsync

// Id identifies a node across publishes. Uniqueness across live nodes is
// required for correctness of the listener index; a duplicate id silently
// conflates the nodes under one subscription bucket.
type Id string

// Model is the read-only capability a domain node must implement. The
// engine treats Model values as immutable snapshots: a rewrite always
// yields a new value, it never mutates a Model in place.
type Model interface {
	// Identity returns the node's id, if it has one. Nodes without an
	// identity participate in the tree structure but can never be the
	// direct target of a patch.
	Identity() (Id, bool)

	// ForEachChild enumerates direct children in a stable, structurally
	// meaningful order. Implementations must not mutate the receiver.
	ForEachChild(visit func(Model))

	// Equals reports whether other is semantically identical to the
	// receiver: same payload, and recursively, same children.
	Equals(other Model) bool

	// Map produces a new node of the same dynamic type whose children are
	// f(child). f returns ok == false for a child that should be deleted.
	// The result carries the receiver's own identity and payload; only
	// children may differ. If the receiver requires a child that f
	// deletes, Map itself must return ok == false (cascading delete).
	Map(f func(Model) (Model, bool)) (Model, bool)
}

// Observer owns a current root Model and receives deltas against it.
// CurrentModel and OnModelUpdated are both invoked only on the Dispatcher's
// configured Scheduler (see Options.Scheduler) — never on the serial worker.
type Observer interface {
	// CurrentModel returns the observer's presently displayed root. ok is
	// false if the observer has detached and has nothing to show.
	CurrentModel() (root Model, ok bool)

	// OnModelUpdated delivers a freshly rewritten root plus the delta that
	// produced it. hasRoot is false when the root itself was deleted.
	OnModelUpdated(newRoot Model, hasRoot bool, delta Delta, context any)
}

// Delegate receives notice of model replacements and of contract
// violations by a Model implementation. Both methods are optional: a
// delegate may be embedded in a struct that only implements the one it
// cares about, so WrapDelegate type-asserts each interface individually.
type WillReplaceModelDelegate interface {
	WillReplaceModel(old, new Model, context any)
}

type CriticalErrorDelegate interface {
	FailedWithCriticalError(err *CriticalError)
}

// Delta describes, for one delivery, which ids changed value and which
// were removed entirely. The two sets are always disjoint: a deleted id
// wins over a changed one.
type Delta struct {
	Changed map[Id]struct{}
	Deleted map[Id]struct{}
}

// NewDelta returns an empty, non-nil Delta ready for mutation.
func NewDelta() Delta {
	return Delta{Changed: map[Id]struct{}{}, Deleted: map[Id]struct{}{}}
}

// IsEmpty reports whether the delta carries no changes at all.
func (d Delta) IsEmpty() bool {
	return len(d.Changed) == 0 && len(d.Deleted) == 0
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the receiver's backing maps.
func (d Delta) Clone() Delta {
	out := NewDelta()
	for id := range d.Changed {
		out.Changed[id] = struct{}{}
	}
	for id := range d.Deleted {
		out.Deleted[id] = struct{}{}
	}
	return out
}

// reconcile enforces the deleted-wins invariant: Changed ∩ Deleted = ∅.
func (d Delta) reconcile() {
	for id := range d.Deleted {
		delete(d.Changed, id)
	}
}

func (d Delta) mergeChanged(ids ...Id) {
	for _, id := range ids {
		d.Changed[id] = struct{}{}
	}
}

func (d Delta) mergeDeleted(ids ...Id) {
	for _, id := range ids {
		d.Deleted[id] = struct{}{}
	}
}

// unionDelta returns a new Delta whose sets are the union of a and b, with the
// deleted-wins invariant re-established.
func unionDelta(a, b Delta) Delta {
	out := a.Clone()
	for id := range b.Changed {
		out.Changed[id] = struct{}{}
	}
	for id := range b.Deleted {
		out.Deleted[id] = struct{}{}
	}
	out.reconcile()
	return out
}

// patchEntry is one entry of a patch map: either a replacement model or a
// tombstone meaning "delete this id".
type patchEntry struct {
	replacement Model
	tombstone   bool
}

type patch map[Id]patchEntry
