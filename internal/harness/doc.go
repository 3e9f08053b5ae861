// Package harness runs AQL query suites against record fixtures.
//
// A suite names one dataset, optionally an archetype directory, and a list
// of cases. Each case is a query with parameters, pagination overrides and
// assertions on its outcome. Outcomes can also be compared against golden
// snapshots.
//
// # Suite Format
//
// Suites are defined in YAML files with the following structure:
//
//	name: minimal
//	description: "Queries over the minimal dataset"
//	dataset: ../datasets/minimal.yaml
//	archetypes: ../archetypes
//	cases:
//	  - name: observation_by_value
//	    query: >
//	      SELECT o/data[at0001]/events[at0002]/data[at0003]/items[at0004]/value/value AS v
//	      FROM EHR e CONTAINS OBSERVATION o WHERE v = $value
//	    params: { value: first value }
//	    fetch: 10
//	    assertions:
//	      - type: total
//	        count: 1
//	      - type: contains_row
//	        row: { v: first value }
//
// Paths are relative to the suite file.
//
// # Assertion Types
//
//   - total: Total row count before pagination
//   - row_count: Number of returned rows
//   - columns: Column names in SELECT order
//   - contains_row: Some row matches the listed columns
//   - column_values: A column holds exactly the listed values, in order
//   - error: Execution failed with the given code (E_SYNTAX, E_UNBOUND_PARAM, E_LIMIT, E_QUOTA)
//   - warning: Some archetype warning carries the given code
//
// # Golden Snapshots
//
// Snapshot renders an outcome as indented JSON with sorted keys and exact
// numbers. Golden files are named {suite}.{case}.golden. Tests compare with
// AssertGolden (goldie, regenerate with -update); the CLI compares with
// Golden (regenerate with --update).
//
// # Determinism
//
// Each suite runs on its own engine over an in-memory snapshot of its
// dataset, with fixed execution ids. Cases run in file order. Running the
// same suite twice yields byte-identical snapshots.
package harness
