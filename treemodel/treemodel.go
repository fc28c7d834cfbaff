// Package treemodel is a small reference implementation of modelsync.Model,
// grounded on the field-offset struct style the teacher uses for its own
// example domain objects (examples/plain_object.go, examples/object_example.go).
// It exists for tests and the demo command: real integrations are expected
// to implement modelsync.Model directly over their own domain types.
package treemodel

import (
	"reflect"

	"github.com/drpcorg/modelsync"
)

// Node is an immutable tree node carrying an id, an opaque payload compared
// by reflect.DeepEqual, and an ordered list of children. Required marks a
// child whose disappearance must cascade: if Map deletes a required child,
// the parent itself reports ok == false rather than surviving childless.
//
// Children are stored as modelsync.Model, not *Node, because a patch may
// legitimately replace a child with a value of a different concrete type
// (modelsync.Model.Map's contract only constrains the receiver's own
// dynamic type, never its children's).
type Node struct {
	id       modelsync.Id
	hasID    bool
	payload  any
	children []modelsync.Model
	required map[modelsync.Id]bool
}

// New builds an identified node with the given payload and children. Pass
// required to mark which of children's ids must survive for this node to
// survive a rewrite; children not named are optional.
func New(id modelsync.Id, payload any, children []*Node, required ...modelsync.Id) *Node {
	n := &Node{id: id, hasID: true, payload: payload, children: asModels(children)}
	if len(required) > 0 {
		n.required = make(map[modelsync.Id]bool, len(required))
		for _, r := range required {
			n.required[r] = true
		}
	}
	return n
}

// NewAnonymous builds a node with no identity of its own. It can never be
// the direct target of a patch, but still participates in tree structure
// and equality.
func NewAnonymous(payload any, children []*Node) *Node {
	return &Node{payload: payload, children: asModels(children)}
}

func asModels(children []*Node) []modelsync.Model {
	if children == nil {
		return nil
	}
	out := make([]modelsync.Model, len(children))
	for i, c := range children {
		out[i] = c
	}
	return out
}

func (n *Node) Identity() (modelsync.Id, bool) {
	if n == nil {
		return "", false
	}
	return n.id, n.hasID
}

// Payload returns the node's opaque value, for callers that know the
// concrete type they stored.
func (n *Node) Payload() any {
	if n == nil {
		return nil
	}
	return n.payload
}

func (n *Node) ForEachChild(visit func(modelsync.Model)) {
	if n == nil {
		return
	}
	for _, c := range n.children {
		visit(c)
	}
}

func (n *Node) Equals(other modelsync.Model) bool {
	if n == nil {
		return other == nil || isNilNode(other)
	}
	o, ok := other.(*Node)
	if !ok || o == nil {
		return false
	}
	if n.hasID != o.hasID || n.id != o.id {
		return false
	}
	if !reflect.DeepEqual(n.payload, o.payload) {
		return false
	}
	if len(n.children) != len(o.children) {
		return false
	}
	for i, c := range n.children {
		if !c.Equals(o.children[i]) {
			return false
		}
	}
	return true
}

func isNilNode(m modelsync.Model) bool {
	n, ok := m.(*Node)
	return ok && n == nil
}

// Map rebuilds the node with each child replaced by f(child). A child for
// which f returns ok == false is dropped; if that child's id is marked
// Required, the whole node is dropped in turn (ok == false), per the
// cascading-delete contract Model.Map documents.
func (n *Node) Map(f func(modelsync.Model) (modelsync.Model, bool)) (modelsync.Model, bool) {
	if n == nil {
		return nil, false
	}

	newChildren := make([]modelsync.Model, 0, len(n.children))
	for _, c := range n.children {
		mapped, ok := f(c)
		if !ok {
			if id, hasID := c.Identity(); hasID && n.required[id] {
				return nil, false
			}
			continue
		}
		newChildren = append(newChildren, mapped)
	}

	out := &Node{id: n.id, hasID: n.hasID, payload: n.payload, children: newChildren, required: n.required}
	return out, true
}
