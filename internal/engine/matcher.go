package engine

import (
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// archetypeID returns the archetype id a step filter pushes down to the
// record source.
//
// Returns:
//   - ("", true) when the step has no archetype filter
//   - (id, true) when the filter is a literal, or a parameter bound to a string
//   - ("", false) when the filter can match nothing (a parameter bound to a
//     non-string, or an empty id)
func archetypeID(f queryir.StepFilter, b *Bindings) (string, bool) {
	af, ok := f.(*queryir.ArchetypeFilter)
	if !ok {
		return "", true
	}
	id, ok := b.operand(af.ID).(ir.String)
	if !ok || id == "" {
		return "", false
	}
	return string(id), true
}

// matchFilter checks a candidate node against a step filter.
//
// An archetype filter matches archetype_node_id exactly. A node filter
// resolves its path relative to the candidate and applies the comparison.
// A nil filter matches everything.
func matchFilter(f queryir.StepFilter, node ir.Object, b *Bindings) bool {
	switch n := f.(type) {
	case nil:
		return true
	case *queryir.ArchetypeFilter:
		id, ok := archetypeID(n, b)
		return ok && node.Text("archetype_node_id") == id
	case *queryir.NodeFilter:
		left := nodeOperand(n.Condition.Left, node, b)
		right := nodeOperand(n.Condition.Right, node, b)
		return compare(left, n.Condition.Op, right)
	default:
		return false
	}
}

// nodeOperand evaluates an operand of a node filter, where paths are
// relative to the candidate itself.
func nodeOperand(o queryir.Operand, node ir.Object, b *Bindings) ir.Value {
	if ref, ok := o.(*queryir.PathRef); ok {
		if len(ref.Path.Segments) == 0 {
			return node
		}
		return Resolve(node, ref.Path.Segments)
	}
	return b.operand(o)
}
