/*
Package storage implements NetCache's blob storage engine (spec.md §4.C):
sharded, rotating "parts" of bbolt-backed databases holding blob metadata
and chunked blob data, fronted by the concurrent B+ tree of pkg/tree as a
coordinate cache, a pooled per-blob lock, a background GC loop, and a
guard file used to detect an unclean shutdown.

# Architecture

Each part is a pair of bbolt files, matching spec.md §6's part-file
layout:

	┌─────────────────────── STORAGE ───────────────────────────┐
	│                                                             │
	│  ┌───────────────── index.db ─────────────────┐           │
	│  │  bucket NCN: part_id -> {meta,data,created}  │           │
	│  └──────────────────────┬───────────────────────┘           │
	│                         │                                    │
	│  ┌──────────────────────▼───────────────────────┐           │
	│  │  part N (oldest) .. part 0 (current, writable) │           │
	│  │  meta.db: bucket NCB (identity), NCI (lifecycle)│          │
	│  │  data.db: bucket NCC (chunk index), NCD (bytes) │          │
	│  └──────────────────────┬───────────────────────┘           │
	│                         │                                    │
	│  ┌──────────────────────▼───────────────────────┐           │
	│  │         pkg/tree.ConcurrentMap (cache)         │           │
	│  │         identity string -> Coordinates         │           │
	│  └────────────────────────────────────────────────┘           │
	│                                                             │
	│  blob lock pool · guard file · GC loop · rotation check    │
	└─────────────────────────────────────────────────────────────┘

Every table in spec.md §6 maps to a bbolt bucket: NCB/NCI live in the
meta file, NCC/NCD in the data file. Chunk ids and blob ids are bbolt
auto-incrementing sequence numbers scoped per part.

# Lifecycle

Open validates the guard file, loads the index, and (per spec.md §4.C
"Initial caching") starts a background scan of parts newest-to-oldest
that populates the coordinate cache; reads that race this scan fall back
to an on-disk lookup in whichever parts are not yet cached. A background
goroutine runs the GC loop (spec.md §4.C "Garbage collection") and the
rotation check on every pass.
*/
package storage
