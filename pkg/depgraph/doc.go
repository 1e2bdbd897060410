// Package depgraph provides the dependency graph shared by per-file
// recordings and the merged scan result.
//
// # Overview
//
// A [Graph] is an arena: nodes live in a slice and are addressed by index,
// with one identity-to-index map for lookup. Edges are parent sets of
// indices. This keeps cyclic dependency declarations (which real lock files
// do contain) representable without pointer cycles.
//
// # Observations
//
// A [Node] never stores a resolved flag directly. It accumulates what
// observations claimed:
//
//   - Explicit is ORed.
//   - DevelopmentSeen and ProductionSeen are ORed independently, and
//     [Node.Development] derives the result: development only if nothing
//     claimed production.
//   - Locations and detectors are set unions.
//
// Because every update is a union or an OR, [Graph.Merge] is commutative and
// associative, which is what lets the scan fold per-file graphs in whatever
// order detectors finish.
package depgraph
