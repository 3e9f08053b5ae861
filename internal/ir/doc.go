// Package ir provides the value model shared by every other package.
//
// Records, query literals, parameters, and result cells are all Values: a
// sealed tagged variant over Null, String, Number, Bool, List, and Object.
// ir imports nothing internal, so it stays the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Numbers are exact decimals (apd), never float64
//   - A missing value is Null, never a nil interface, once it leaves this package
//   - Object iteration goes through SortedKeys for deterministic order
//   - Equal and Compare never fail: incompatible kinds report ok=false
//   - Canonical JSON (MarshalCanonical) is the only form used for hashes and golden files
package ir
