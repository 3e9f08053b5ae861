package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Equal reports whether a and b hold the same value.
// ok is false when the operands are of incompatible kinds, which callers
// treat as "no match" rather than an error.
//
// Data value objects are reduced to their leaf (see Leaf) when compared
// against a scalar. Two objects or two lists compare structurally.
func Equal(a, b Value) (eq bool, ok bool) {
	a, b = OrNull(a), OrNull(b)
	if KindOf(a) != KindOf(b) {
		a, b = Leaf(a), Leaf(b)
	}

	switch x := a.(type) {
	case Null:
		_, isNull := b.(Null)
		return isNull, isNull
	case Bool:
		y, same := b.(Bool)
		return same && x == y, same
	case List:
		y, same := b.(List)
		if !same {
			return false, false
		}
		return structuralEqual(x, y), true
	case Object:
		y, same := b.(Object)
		if !same {
			return false, false
		}
		return structuralEqual(x, y), true
	}

	c, ok := Compare(a, b)
	if !ok {
		return false, false
	}
	return c == 0, true
}

// Compare orders two scalar values and returns -1, 0 or +1.
// ok is false when the pair has no defined order: different kinds, booleans,
// nulls, lists, and objects.
//
// Numbers compare exactly. Strings compare as ISO 8601 durations when both
// parse as durations, chronologically when both parse as dates or times,
// and otherwise lexicographically after NFC normalization.
func Compare(a, b Value) (int, bool) {
	a, b = Leaf(a), Leaf(b)

	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		if !ok {
			return 0, false
		}
		return x.Cmp(y), true
	case String:
		y, ok := b.(String)
		if !ok {
			return 0, false
		}
		return compareStrings(string(x), string(y)), true
	default:
		return 0, false
	}
}

func compareStrings(a, b string) int {
	if da, ok := ParseDuration(a); ok {
		if db, ok := ParseDuration(b); ok {
			return da.Cmp(db)
		}
	}
	if ta, ok := ParseTemporal(a); ok {
		if tb, ok := ParseTemporal(b); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(norm.NFC.String(a), norm.NFC.String(b))
}

func structuralEqual(a, b Value) bool {
	switch x := a.(type) {
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !structuralEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, present := y[k]
			if !present || !structuralEqual(xv, yv) {
				return false
			}
		}
		return true
	default:
		eq, ok := Equal(a, b)
		return ok && eq
	}
}
