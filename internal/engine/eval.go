package engine

import (
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// evaluator evaluates WHERE trees against row scopes. It holds no mutable
// state and is shared by all workers of an evaluation.
type evaluator struct {
	plan *Plan
	bind *Bindings
}

// eval reports whether p holds for s. A nil predicate holds.
//
// Evaluation never fails: unresolvable paths are Null and kind mismatches
// are false, so a predicate over missing data simply filters the row out.
func (ev *evaluator) eval(p queryir.Predicate, s scope) bool {
	switch n := p.(type) {
	case nil:
		return true
	case *queryir.Comparison:
		return compare(ev.operand(n.Left, s), n.Op, ev.operand(n.Right, s))
	case *queryir.Matches:
		return ev.bind.set(n).contains(ev.operand(n.Left, s))
	case *queryir.Not:
		return !ev.eval(n.Inner, s)
	case *queryir.And:
		return ev.eval(n.Left, s) && ev.eval(n.Right, s)
	case *queryir.Or:
		return ev.eval(n.Left, s) || ev.eval(n.Right, s)
	default:
		return false
	}
}

func (ev *evaluator) operand(o queryir.Operand, s scope) ir.Value {
	if ref, ok := o.(*queryir.PathRef); ok {
		return s.path(ev.plan, ref.Path)
	}
	return ev.bind.operand(o)
}

// compare applies a comparison operator.
//
// = and != need operands of comparable kinds; a mismatch is false for both,
// so != is not the negation of = across kinds. Ordering operators need an
// ordered pair (see ir.Compare).
func compare(left ir.Value, op queryir.CompareOp, right ir.Value) bool {
	switch op {
	case queryir.OpEq, queryir.OpNe:
		eq, ok := ir.Equal(left, right)
		if !ok {
			return false
		}
		return eq == (op == queryir.OpEq)
	}

	c, ok := ir.Compare(left, right)
	if !ok {
		return false
	}
	switch op {
	case queryir.OpGt:
		return c > 0
	case queryir.OpGe:
		return c >= 0
	case queryir.OpLt:
		return c < 0
	case queryir.OpLe:
		return c <= 0
	default:
		return false
	}
}
