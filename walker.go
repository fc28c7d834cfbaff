package modelsync

// visitAll performs a pre-order traversal of root: root first, then each
// child recursively. Pure and read-only — it never calls Map.
func visitAll(root Model, f func(Model)) {
	if root == nil {
		return
	}
	f(root)
	root.ForEachChild(func(child Model) {
		visitAll(child, f)
	})
}

// flattenByID collects every identified node reachable from root into a
// map keyed by id. When the same id occurs more than once, the later
// occurrence in tree order wins — the engine relies on this when
// comparing "old model by id" against "new model by id" across a
// publish.
func flattenByID(root Model) map[Id]Model {
	out := make(map[Id]Model)
	visitAll(root, func(m Model) {
		if id, ok := m.Identity(); ok {
			out[id] = m
		}
	})
	return out
}

// identifiedIDs returns every id reachable from root, in pre-order, for
// callers (Subscribe, and updateObservers re-registering newly introduced
// subtrees) that only need the id set rather than the full node map.
func identifiedIDs(root Model) []Id {
	var ids []Id
	visitAll(root, func(m Model) {
		if id, ok := m.Identity(); ok {
			ids = append(ids, id)
		}
	})
	return ids
}
