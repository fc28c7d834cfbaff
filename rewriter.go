package modelsync

import "reflect"

// willReplaceEvent records one Model.Equals-failing replacement observed
// during a rewrite, queued for delivery through the configured
// WillReplaceModelDelegate once the rewrite completes.
type willReplaceEvent struct {
	old, new Model
	context  any
}

// rewriteAccumulator is the mutable state threaded by reference through
// the Rewriter's recursion, replacing the "dictionary/array holder"
// workarounds the original needed for by-value copies.
type rewriteAccumulator struct {
	delta           Delta
	newlyIntroduced []Model
	willReplace     []willReplaceEvent
	typeViolations  []*CriticalError
}

// rewriteResult is the Rewriter's public output: a rewritten root (if any
// survived), the delta that produced it, any newly introduced subtrees
// the caller must now index, and any contract violations observed along
// the way.
type rewriteResult struct {
	NewRoot         Model
	HasRoot         bool
	Delta           Delta
	NewlyIntroduced []Model
	WillReplace     []willReplaceEvent
	TypeViolations  []*CriticalError
}

// rewrite runs the Rewriter: it propagates patch through current,
// producing a new tree plus the delta describing everything that changed
// or disappeared. current is never mutated; a rewrite always yields a new
// value (or none, if the root itself was removed).
func rewrite(current Model, p patch, context any) rewriteResult {
	acc := &rewriteAccumulator{delta: NewDelta()}
	newRoot, hasRoot, _ := rewriteNode(current, p, acc, context)
	acc.delta.reconcile()
	return rewriteResult{
		NewRoot:         newRoot,
		HasRoot:         hasRoot,
		Delta:           acc.delta,
		NewlyIntroduced: acc.newlyIntroduced,
		WillReplace:     acc.willReplace,
		TypeViolations:  acc.typeViolations,
	}
}

// rewriteNode is the recursive descent at the heart of the Rewriter.
// touched reports whether this call (directly, or via any descendant)
// added anything to acc.delta — the parent uses it to decide whether it,
// too, counts as changed.
func rewriteNode(current Model, p patch, acc *rewriteAccumulator, context any) (newRoot Model, hasRoot bool, touched bool) {
	id, hasID := current.Identity()

	if hasID {
		if entry, found := p[id]; found {
			if entry.tombstone {
				acc.delta.mergeDeleted(id)
				return nil, false, true
			}

			replacement := entry.replacement
			if replacement.Equals(current) {
				// Nothing observable changed; short-circuit without
				// touching the delta or re-indexing anything.
				return current, true, false
			}

			acc.willReplace = append(acc.willReplace, willReplaceEvent{old: current, new: replacement, context: context})

			// The subtree was replaced wholesale, but patches aimed at
			// nodes inside it must still surface as changed.
			acc.delta.mergeChanged(changedSubmodelIDs(current, p)...)
			acc.delta.mergeChanged(id)
			acc.newlyIntroduced = append(acc.newlyIntroduced, replacement)
			return replacement, true, true
		}
	}

	childTouched := false
	mapped, mappedOK := current.Map(func(child Model) (Model, bool) {
		childRoot, childHasRoot, touchedByChild := rewriteNode(child, p, acc, context)
		if touchedByChild {
			childTouched = true
		}
		return childRoot, childHasRoot
	})

	if !mappedOK {
		// Cascading delete: current requires a child that was removed.
		if hasID {
			acc.delta.mergeDeleted(id)
		}
		return nil, false, true
	}

	if mismatch, got, want := mapTypeMismatch(mapped, current); mismatch {
		acc.typeViolations = append(acc.typeViolations, newCriticalError(
			WrongMapType, "Map returned %s for a %s node", got, want,
		))
	}

	if hasID && childTouched {
		acc.delta.mergeChanged(id)
	}
	return mapped, true, childTouched
}

// changedSubmodelIDs walks oldRoot's children only (never oldRoot itself,
// which the caller has already accounted for) looking for ids that patch
// replaces with a differing value. It recurses into every child
// regardless of whether that child itself matched, because a replacement
// several levels down from a wholesale subtree swap must still surface.
func changedSubmodelIDs(oldRoot Model, p patch) []Id {
	var ids []Id
	oldRoot.ForEachChild(func(child Model) {
		if id, ok := child.Identity(); ok {
			if entry, found := p[id]; found && !entry.tombstone && !entry.replacement.Equals(child) {
				ids = append(ids, id)
			}
		}
		ids = append(ids, changedSubmodelIDs(child, p)...)
	})
	return ids
}

// mapTypeMismatch reports whether mapped's dynamic type differs from
// original's, violating Model.Map's contract that only children may
// differ, never the receiver's own dynamic type.
func mapTypeMismatch(mapped, original Model) (mismatch bool, got, want reflect.Type) {
	got, want = reflect.TypeOf(mapped), reflect.TypeOf(original)
	return got != want, got, want
}
