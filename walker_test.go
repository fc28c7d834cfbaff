package modelsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/modelsync/treemodel"
)

func TestFlattenByIDCollectsEveryIdentifiedNode(t *testing.T) {
	root := treemodel.New("1", "a", []*treemodel.Node{
		treemodel.New("2", "b", nil),
		treemodel.New("3", "c", nil),
	})

	flat := flattenByID(root)
	assert.Len(t, flat, 3)
	assert.Contains(t, flat, Id("1"))
	assert.Contains(t, flat, Id("2"))
	assert.Contains(t, flat, Id("3"))
}

func TestIdentifiedIDsSkipsAnonymousNodes(t *testing.T) {
	root := treemodel.New("1", "a", nil)
	anon := treemodel.NewAnonymous("wrapper", []*treemodel.Node{root})

	ids := identifiedIDs(anon)
	assert.Equal(t, []Id{"1"}, ids)
}

func TestVisitAllIsNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		visitAll(nil, func(Model) { t.Fatal("should never be called") })
	})
}
