// Package record models the clinical records a query runs against.
//
// Records are exposed to the engine as ir.Object trees in canonical openEHR
// JSON shape (_type, archetype_node_id, {"value": ...} wrappers), plus thin
// typed views (EHR, Composition) carrying the identity fields the planner
// filters on.
//
// Source is the read interface the engine consumes. Snapshot implements it
// in memory over a Dataset decoded from YAML or JSON; package store
// implements it over SQLite.
package record
