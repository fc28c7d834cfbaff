package modelsync

// listenerIndex is the authoritative id → weakObserverSet subscription
// table. It generalizes the teacher's ObjectListener (objlstn.go), which
// mapped one id to a slice of *FieldTrigger closures, into a map of ids to
// weakly-held Observer sets — triggers became deltas, and the triggers
// slice became a prunable weak set.
//
// Access is confined to the serial worker queue; nothing here takes a
// lock, because the queue is the only caller.
type listenerIndex struct {
	buckets map[Id]*weakObserverSet
}

func newListenerIndex() *listenerIndex {
	return &listenerIndex{buckets: make(map[Id]*weakObserverSet)}
}

// add registers observer against id, unless already present by identity.
func (idx *listenerIndex) add(id Id, observer ObserverHandle) {
	b, ok := idx.buckets[id]
	if !ok {
		b = &weakObserverSet{}
		idx.buckets[id] = b
	}
	b.append(observer)
}

// addAll registers observer against every id in ids.
func (idx *listenerIndex) addAll(ids []Id, observer ObserverHandle) {
	for _, id := range ids {
		idx.add(id, observer)
	}
}

// remove removes observer from every bucket it appears in, dropping any
// bucket left empty. Used by explicit Unsubscribe.
func (idx *listenerIndex) remove(observer ObserverHandle) {
	for id, b := range idx.buckets {
		if b.removeByIdentity(observer) && b.empty() {
			delete(idx.buckets, id)
		}
	}
}

// observersFor returns the live observer handles registered against id,
// pruning dead handles and writing the compacted set back.
func (idx *listenerIndex) observersFor(id Id) []ObserverHandle {
	b, ok := idx.buckets[id]
	if !ok {
		return nil
	}
	live := b.prune()
	if b.empty() {
		delete(idx.buckets, id)
	}
	return live
}

// pruneAll prunes every bucket and drops any left empty. Invoked on GC
// ticks and memory pressure.
func (idx *listenerIndex) pruneAll() {
	for id, b := range idx.buckets {
		b.prune()
		if b.empty() {
			delete(idx.buckets, id)
		}
	}
}

// bucketCount reports the number of live buckets, for metrics.
func (idx *listenerIndex) bucketCount() int {
	return len(idx.buckets)
}
