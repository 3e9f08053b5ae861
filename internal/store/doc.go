// Package store provides a SQLite-backed record.Source.
//
// The store holds an immutable-by-convention snapshot of EHRs and their
// compositions, loaded with Import and read by the query engine:
//   - ehrs: one row per EHR, body is the navigable EHR object
//   - compositions: one row per composition, indexed by (ehr_id, archetype_node_id)
//
// # Critical Patterns
//
// Idempotent import
//   - INSERT ... ON CONFLICT DO NOTHING on ehr_id and uid
//   - Importing the same dataset twice changes nothing
//
// Deterministic reads
//   - All reads are compiled by querysql and ORDER BY seq COLLATE BINARY
//   - seq is assigned in declaration order, so reads return declared order
//
// Exact values
//   - Bodies are stored as key-sorted JSON with numbers in their written
//     form and decoded with exact decimals, so a round trip never changes a
//     number's scale
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
