// Package queryir defines the parsed form of an AQL query.
//
// The parser (package aql) produces a *Query; the engine plans, binds and
// evaluates it. queryir sits between the two so neither depends on the
// other's internals:
//
//	[AQL text] → aql.Parse → [queryir.Query] → engine.Plan → rows
//
// SEALED INTERFACES:
//
// Predicate, Operand and StepFilter are sealed interfaces using the marker
// method pattern. Only pointer types in this package implement them, so a
// type switch over *Comparison, *Matches, *Not, *And and *Or is exhaustive.
// Node identity is meaningful: the parameter binder keys pre-compiled match
// sets by *Matches.
//
// IMMUTABILITY:
//
// A Query is never modified after parsing. Parameters are not substituted
// into the tree; they stay *Param operands and are resolved through a
// binding environment at evaluation time.
//
// VALIDATION:
//
// Validate checks a query against an archetype Schema and returns warnings,
// never errors. Data-shape mismatches degrade to null cells or empty
// branches during evaluation.
package queryir
