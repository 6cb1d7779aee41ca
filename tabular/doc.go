// Package tabular implements a lazy, declarative query engine over in-memory
// tabular data.
//
// A Source holds immutable rows of named fields. Calling Select with a
// selection descriptor (and optional row constraints) produces a Query: a
// deferred, composable plan. Chaining operations (Map, Filter, Sum, Distinct,
// ...) returns new Query values without touching data; Execute runs the plan
// synchronously and materializes the container shape the descriptor declares.
//
// Selection descriptors are a sealed tagged variant (Field, Cols, List, Set,
// Group) validated at Select time. Data-dependent failures (non-numeric sum
// input, callback errors) surface from Execute only.
package tabular
