package modelsync

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/modelsync/treemodel"
)

func TestListenerIndexAddAndObserversFor(t *testing.T) {
	idx := newListenerIndex()
	m := treemodel.NewMirror(nil, false)
	h := Wrap(m)

	idx.add("1", h)
	idx.add("2", h)

	handles := idx.observersFor("1")
	require.Len(t, handles, 1)
	obs, ok := handles[0].resolve()
	require.True(t, ok)
	assert.Same(t, m, obs)
}

func TestListenerIndexAddIsIdempotentPerObserver(t *testing.T) {
	idx := newListenerIndex()
	m := treemodel.NewMirror(nil, false)
	h := Wrap(m)

	idx.add("1", h)
	idx.add("1", h)

	assert.Equal(t, 1, idx.buckets["1"].count())
}

func TestListenerIndexRemoveDropsEmptyBuckets(t *testing.T) {
	idx := newListenerIndex()
	m := treemodel.NewMirror(nil, false)
	h := Wrap(m)

	idx.add("1", h)
	idx.remove(h)

	assert.Equal(t, 0, idx.bucketCount())
}

func TestListenerIndexObserversForDropsEmptyBucket(t *testing.T) {
	idx := newListenerIndex()

	func() {
		m := treemodel.NewMirror(nil, false)
		idx.add("1", Wrap(m))
	}()
	runtime.GC()
	runtime.GC()

	handles := idx.observersFor("1")
	assert.Empty(t, handles)
	assert.Equal(t, 0, idx.bucketCount())
}

func TestListenerIndexPruneAllRemovesDeadHandles(t *testing.T) {
	idx := newListenerIndex()
	alive := treemodel.NewMirror(nil, false)
	idx.add("1", Wrap(alive))

	func() {
		m := treemodel.NewMirror(nil, false)
		idx.add("1", Wrap(m))
	}()
	runtime.GC()
	runtime.GC()

	idx.pruneAll()
	assert.Equal(t, 1, idx.buckets["1"].count())
	runtime.KeepAlive(alive)
}
