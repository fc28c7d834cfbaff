// Package weakref provides a single generic weak-reference container,
// replacing the duplicated weak-array types the original implementation
// needed per protocol. It wraps the standard library's weak.Pointer so
// that holders elsewhere in the program decide an object's lifetime; the
// container only ever observes whether that object is still alive at the
// moment of use.
package weakref

import "weak"

// Ref holds a weak reference to a *T. The referent is never kept alive by
// Ref itself — Value reports whether it is still alive at the moment of
// the call, nothing more.
type Ref[T any] struct {
	ptr weak.Pointer[T]
}

// Make wraps v in a Ref. v must be kept alive elsewhere for the reference
// to resolve; Make does not retain it.
func Make[T any](v *T) Ref[T] {
	return Ref[T]{ptr: weak.Make(v)}
}

// Value resolves the reference. ok is false once the referent has been
// garbage collected.
func (r Ref[T]) Value() (v *T, ok bool) {
	v = r.ptr.Value()
	return v, v != nil
}

// Resolver erases the concrete pointer type behind a Ref so heterogeneous
// weak handles (observers backed by different concrete types) can share a
// single slice or map. Build one with Wrap.
type Resolver[I any] struct {
	resolve func() (I, bool)
}

// Wrap captures a weak reference to v and a cast back to interface I,
// performed lazily each time Resolve is called so it always reflects
// whether v is still alive.
func Wrap[T any, I any](v *T) Resolver[I] {
	ref := Make(v)
	return Resolver[I]{
		resolve: func() (I, bool) {
			var zero I
			p, ok := ref.Value()
			if !ok {
				return zero, false
			}
			iface, ok := any(p).(I)
			return iface, ok
		},
	}
}

// Resolve returns the live value, or ok == false if it has been collected,
// no longer satisfies I, or the Resolver is its zero value (never Wrapped).
func (r Resolver[I]) Resolve() (I, bool) {
	if r.resolve == nil {
		var zero I
		return zero, false
	}
	return r.resolve()
}

// SameIdentity reports whether two resolvers currently refer to the same
// live object, by pointer identity of the resolved interface value. Used
// to detect duplicate registrations (modelsync's
// weakObserverSet.containsIdentity).
func SameIdentity[I comparable](a, b Resolver[I]) bool {
	av, aok := a.Resolve()
	bv, bok := b.Resolve()
	if !aok || !bok {
		return false
	}
	return av == bv
}
