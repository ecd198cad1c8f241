// Package tree implements CConcurrentMap, NetCache's concurrent, latched
// B+ tree index (spec.md §4.A): a key -> value map supporting get, put,
// erase, passive/active status transitions, and an atomic upsert-or-read,
// all safe for many concurrent readers and writers.
//
// Concurrency model: every node carries its own sync.RWMutex latch;
// traversals take and release latches hand-over-hand (the latch on a
// child is acquired before the latch on its parent is released), so a
// reader never blocks a writer working on an unrelated key, and a writer
// never holds more than the nodes on its own root-to-leaf path. Splits are
// propagated by holding write latches on the full chain of "unsafe"
// ancestors (nodes that are themselves full and may need to split in
// turn) down to the leaf being modified; a node verified to have spare
// capacity lets every latch above it in the path be released immediately,
// which is the same "safe node" optimization used by classic latch-
// coupling B-tree implementations. Unlinked nodes are handed to
// pkg/reclaim rather than freed immediately, since a reader that glimpsed
// them before the unlink may still be dereferencing them for up to
// DeletionDelay heartbeats.
//
// The (root, height) pair is protected as one atomic unit by a dedicated
// RWMutex: Get, Passivate and Activate only hold it for the instant
// needed to snapshot the root pointer, so they never contend with each
// other. Put, PutOrGet and Erase, by contrast, hold it exclusively for
// their entire structural operation, since a split or a root-shrink
// reassigns the root pointer itself and that reassignment must never
// race a concurrent snapshot. This is a deliberate simplification of the
// source's fully lock-free root recovery (a descent that observes a
// stale root keeps making progress via right_node rather than retrying):
// here, all structural writers are simply serialized against one
// another, trading away concurrent root splits/shrinks for a much
// smaller amount of code.
package tree
