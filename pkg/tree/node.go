package tree

import (
	"sync"

	"github.com/netcache-project/netcache/pkg/types"
)

const leafLevel = 1

// slot is one entry of a node: a key, a lifecycle status, and either a
// child pointer (internal nodes) or a value (leaf nodes).
//
// spec.md models every slot's key as an interned RefedKey; in a garbage
// collected language the manual refcount buys nothing for an ordinary slot
// (the Go runtime already tracks the key's liveness through the slice that
// holds it), so slots store K by value. The one place the refcount
// contract is load-bearing — a node's max_key, which by invariant 2 must
// outlive every slot in the node and must specifically survive the node's
// own unlink (spec.md §4.A "Node deletion" step 1) — keeps the refKey
// wrapper; see maxKey below.
type slot[K comparable, V any] struct {
	key    K
	status types.Status
	child  *node[K, V]
	value  V
}

// node is a fixed-capacity tree node (spec.md §3, "Tree node"). Every
// structural field is protected by mu; readers take it in read mode and
// release it before moving to the next node, so no single latch is ever
// held across a blocking operation.
type node[K comparable, V any] struct {
	mu     sync.RWMutex
	level  uint8
	maxKey *refKey[K] // nil means +infinity: the rightmost node at this level
	right  *node[K, V]
	slots  []slot[K, V]
	filled int
}

func newNode[K comparable, V any](level uint8, capacity int) *node[K, V] {
	return &node[K, V]{
		level: level,
		slots: make([]slot[K, V], 0, capacity),
	}
}

// isTombstone reports whether n is awaiting unlink from its parent
// (spec.md §3 invariant 3): empty but still carrying a finite upper bound.
func (n *node[K, V]) isTombstone() bool {
	return n.filled == 0 && n.maxKey != nil
}

func (n *node[K, V]) isLeaf() bool {
	return n.level == leafLevel
}

// full reports whether n has no room for one more slot without splitting.
func (n *node[K, V]) full(capacity int) bool {
	return len(n.slots) >= capacity
}

// countLive returns the number of non-Deleted entries in slots, i.e. what
// filled must equal: slots are never compacted, so a split's half may carry
// stale Deleted entries that must not be counted as live.
func countLive[K comparable, V any](slots []slot[K, V]) int {
	n := 0
	for _, s := range slots {
		if s.status != types.StatusDeleted {
			n++
		}
	}
	return n
}
