// Package engine evaluates AQL queries against a read-only record source.
//
// ARCHITECTURE:
//
// Evaluation pipeline (Engine.Execute):
// 1. aql.Parse turns query text into a queryir.Query
// 2. Bind resolves $name parameters and pre-builds MATCHES value sets
// 3. LimitPolicy.Window reconciles LIMIT/OFFSET with request offset/fetch
// 4. NewPlan turns the FROM/CONTAINS chain into nested scans
// 5. One errgroup task per EHR walks the scans, evaluates WHERE per binding
// and projects rows into the EHR's slot
// 6. Slots are concatenated in EHR order, sorted by ORDER BY, and paginated
//
// Steps 1-4 finish before any record is read, so syntax, parameter and
// pagination errors never depend on data.
//
// Nested scans:
// Each plan level binds candidates beneath the node bound by the level
// above it. Steps compose on containment, never as a cross product: an
// OBSERVATION step only sees observations inside the bound composition.
//
// Missing data:
// Unresolvable paths are Null, kind mismatches are false, and unknown
// archetypes are empty branches. None of these are errors.
//
// Determinism:
// Results never depend on worker count or scheduling. Rows are produced in
// EHR order, then composition order, then pre-order within each
// composition, and ORDER BY is a stable sort over that order.
package engine
