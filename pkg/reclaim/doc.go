// Package reclaim implements NetCache's deferred reclamation scheme
// (spec.md §4.B): unlinked tree nodes are not freed the instant they are
// detached, since a reader that latched one just before the unlink may
// still be dereferencing it. Instead they sit in a generation bucket and
// are only handed to a finalizer once enough heartbeats have passed that
// no in-flight traversal can still hold a reference to them.
package reclaim
