// Package types defines NetCache's domain model: interned key references,
// blob coordinates and identity, the persisted metadata record, and the
// three-state status enum that drives the tree's lifecycle transitions.
//
// Values here carry no behavior beyond small predicates (IsZero, IsExpired);
// concurrency and persistence live in pkg/tree and pkg/storage respectively.
package types
