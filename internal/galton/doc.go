// Package galton provides the core types shared by the Galton board engine.
//
// The package defines the data model every other engine package works on:
//
//   - [Config]: board geometry/physics ([BoardConfig]) plus run pacing ([RunConfig])
//   - [Ball]: one ball's mutable physical state and committed slot path
//   - [Landing]: the frozen record left behind by a settled ball
//   - [Snapshot]: the read-only per-frame view handed to renderers
//   - [Metric], [Observer]: per-tick hooks attached to a simulation clock
//
// # Coordinates
//
// The board centre is x = 0 and y grows downward. Peg row 0 sits at y = 0,
// row r at y = r*spacing, and the bottom boundary at y = rows*spacing.
//
// # Thread Safety
//
// None of the types here are safe for concurrent mutation. A [Ball] may be
// advanced on any goroutine as long as no other goroutine touches it; see
// [ParallelFor].
package galton
