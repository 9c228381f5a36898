// Package ttd is the heap snapshot and inflation engine of the time-travel
// debugger.
//
// A live heap is walked by an Extractor into Snapshot records, one per object.
// Records name each other only through ObjectIDs, so a cyclic heap becomes a
// flat table. Emit and Parse move a Snapshot through the wire grammar.
// An InflateMap rebuilds a live heap from a Snapshot in two phases. Phase one
// creates (or reuses) a shell for every record and registers it under its id.
// Phase two restores properties and kind-specific links. Because every shell is
// registered before anything is populated, references resolve in any order.
//
// Compare checks two snapshots for structural equivalence under a consistent
// id remapping. It is used to validate that a replayed heap matches the
// recorded one.
//
// The live object model is not part of this package. It is reached through
// the Heap interface, which the vm package implements.
package ttd
