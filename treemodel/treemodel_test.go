package treemodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/modelsync"
)

func TestEqualsComparesPayloadAndChildren(t *testing.T) {
	a := New("root", 1, []*Node{New("child", "x", nil)})
	b := New("root", 1, []*Node{New("child", "x", nil)})
	c := New("root", 2, []*Node{New("child", "x", nil)})

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestMapDropsOptionalChild(t *testing.T) {
	root := New("root", nil, []*Node{
		New("a", "keep", nil),
		New("b", "drop", nil),
	})

	mapped, ok := root.Map(func(child modelsync.Model) (modelsync.Model, bool) {
		id, _ := child.Identity()
		if id == "b" {
			return nil, false
		}
		return child, true
	})
	require.True(t, ok)

	var ids []modelsync.Id
	mapped.ForEachChild(func(m modelsync.Model) {
		id, _ := m.Identity()
		ids = append(ids, id)
	})
	assert.Equal(t, []modelsync.Id{"a"}, ids)
}

func TestMapCascadesWhenRequiredChildDeleted(t *testing.T) {
	root := New("root", nil, []*Node{
		New("required-child", "v", nil),
	}, "required-child")

	_, ok := root.Map(func(child modelsync.Model) (modelsync.Model, bool) {
		return nil, false
	})
	assert.False(t, ok, "parent must cascade-delete when a required child disappears")
}

func TestMapSurvivesWithoutOptionalChild(t *testing.T) {
	root := New("root", nil, []*Node{
		New("optional-child", "v", nil),
	})

	mapped, ok := root.Map(func(child modelsync.Model) (modelsync.Model, bool) {
		return nil, false
	})
	require.True(t, ok)
	assert.Equal(t, 0, countChildren(mapped))
}

func countChildren(m modelsync.Model) int {
	n := 0
	m.ForEachChild(func(modelsync.Model) { n++ })
	return n
}
