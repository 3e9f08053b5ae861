package engine

import (
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// scope is the binding of one row: the node bound at each plan level, in
// plan order. scope[0] is the EHR body.
//
// A scope is never modified after it is created; extend copies, so sibling
// branches of the nested loop never observe each other's bindings.
type scope []ir.Object

// extend returns a new scope with node bound at the next level.
func (s scope) extend(node ir.Object) scope {
	out := make(scope, len(s)+1)
	copy(out, s)
	out[len(s)] = node
	return out
}

// path resolves a query path against the scope. A variable the scope has
// not bound yet resolves to Null.
func (s scope) path(plan *Plan, p queryir.Path) ir.Value {
	slot, ok := plan.Slot(p.Var)
	if !ok || slot >= len(s) {
		return ir.Null{}
	}
	if len(p.Segments) == 0 {
		return s[slot]
	}
	return Resolve(s[slot], p.Segments)
}
