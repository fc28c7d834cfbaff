package modelsync

// pausedEntry buffers everything a paused observer would otherwise have
// received: the latest rewritten root, the delta accumulated across every
// publish seen while paused, and the most recent context.
type pausedEntry struct {
	bufferedRoot Model
	hasRoot      bool
	delta        Delta
	context      any
}

// pauseTable holds pausedEntry state keyed by the observer itself. Unlike
// the listener index, entries here are strongly referenced: pausing an
// observer is a main-thread-driven, typically short-lived state the
// caller's own object graph already keeps alive (a paused view is still
// on screen, just not being redrawn), so there is no weak-reference
// hazard to guard against the way there is for index buckets. Access is
// confined to Options.Scheduler's thread.
type pauseTable struct {
	entries map[Observer]*pausedEntry
}

func newPauseTable() *pauseTable {
	return &pauseTable{entries: make(map[Observer]*pausedEntry)}
}

// pause inserts a fresh entry for o if it isn't already paused. Returns
// false if o was already paused (a no-op per the state machine).
func (t *pauseTable) pause(o Observer) bool {
	if _, already := t.entries[o]; already {
		return false
	}
	root, ok := o.CurrentModel()
	t.entries[o] = &pausedEntry{bufferedRoot: root, hasRoot: ok, delta: NewDelta()}
	return true
}

// isPaused reports whether o currently has a pause entry.
func (t *pauseTable) isPaused(o Observer) bool {
	_, ok := t.entries[o]
	return ok
}

// entryFor returns o's pause entry, if any.
func (t *pauseTable) entryFor(o Observer) (*pausedEntry, bool) {
	e, ok := t.entries[o]
	return e, ok
}

// mergeUpdate folds a fresh (newRoot, delta) pair from a publish-hit into
// o's buffered entry, per the §4.5 merge rule: changed is the union minus
// anything now deleted, deleted only grows.
func (t *pauseTable) mergeUpdate(o Observer, newRoot Model, hasRoot bool, delta Delta, context any) {
	e, ok := t.entries[o]
	if !ok {
		return
	}
	e.bufferedRoot, e.hasRoot = newRoot, hasRoot
	e.delta = unionDelta(e.delta, delta)
	e.context = context
}

// remove deletes o's pause entry, returning it if one existed.
func (t *pauseTable) remove(o Observer) (*pausedEntry, bool) {
	e, ok := t.entries[o]
	if ok {
		delete(t.entries, o)
	}
	return e, ok
}

// count reports the number of currently paused observers, for metrics.
func (t *pauseTable) count() int {
	return len(t.entries)
}

// reconcilePausedDelta implements §4.5's resume-time reconciliation: the
// delta accumulated while paused may no longer match reality, because the
// observer's outdated view and the engine's buffered root can each have
// drifted independently (deletes that were reintroduced, changes that
// net out equal). It walks both trees by id and trims the delta down to
// what is still true.
func reconcilePausedDelta(buffered Model, hasBuffered bool, outdated Model, delta Delta) Delta {
	out := delta.Clone()

	if hasBuffered {
		bufferedIDs := flattenByID(buffered)
		for id := range bufferedIDs {
			// Still present in the buffered root: it survived, whatever
			// the accumulated delta claimed.
			delete(out.Deleted, id)
		}
		outdatedIDs := flattenByID(outdated)
		for id := range out.Changed {
			oldNode, hadOld := outdatedIDs[id]
			newNode, hasNew := bufferedIDs[id]
			if hadOld && hasNew && newNode.Equals(oldNode) {
				delete(out.Changed, id)
			}
		}
	} else {
		// The buffered tree is gone entirely; nothing "changed" within a
		// tree that no longer exists.
		out.Changed = map[Id]struct{}{}
	}

	out.reconcile()
	return out
}
