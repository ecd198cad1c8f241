package tree

import "sync/atomic"

// refKey is an interned, reference-counted holder of a key value (spec.md
// §3, "Key reference (RefedKey)"). The counter is inlined with the payload
// rather than boxed separately, per spec.md §9's design note on cache
// locality; Go's garbage collector ultimately owns the memory, but the
// refcount still governs the documented lifetime contract (a node slot
// never holds a dangling key reference) and lets the deferred reclaimer
// assert that a key has no remaining observers before it is dropped.
type refKey[K comparable] struct {
	refs atomic.Int32
	val  K
}

func newRefKey[K comparable](val K, initial int32) *refKey[K] {
	rk := &refKey[K]{val: val}
	rk.refs.Store(initial)
	return rk
}

// retain bumps the reference count, e.g. when the key is stored in an
// additional slot.
func (rk *refKey[K]) retain(n int32) {
	if rk == nil {
		return
	}
	rk.refs.Add(n)
}

// release drops the reference count by n. It never frees anything itself —
// in Go that's the collector's job — but a count that goes negative
// indicates a bookkeeping bug in the caller, so it is reported via panic in
// the same spirit as the source's debug-build assertions.
func (rk *refKey[K]) release(n int32) {
	if rk == nil {
		return
	}
	if v := rk.refs.Add(-n); v < 0 {
		panic("tree: refKey released more times than retained")
	}
}
