package record

import (
	"github.com/roach88/aqlengine/internal/ir"
)

// Descendants returns the nodes beneath root whose _type equals rmType and,
// when archetypeID is non-empty, whose archetype_node_id equals it.
//
// The walk is pre-order. Object keys are visited in canonical order and list
// elements in declared order, so the result is deterministic. root itself is
// never returned. Matching nodes are descended into as well, so a CLUSTER
// nested in another CLUSTER is found after its parent.
func Descendants(root ir.Object, rmType, archetypeID string) []ir.Object {
	var out []ir.Object
	for _, k := range root.SortedKeys() {
		out = collect(root[k], rmType, archetypeID, out)
	}
	return out
}

func collect(v ir.Value, rmType, archetypeID string, out []ir.Object) []ir.Object {
	switch n := v.(type) {
	case ir.Object:
		if n.Text("_type") == rmType && (archetypeID == "" || n.Text("archetype_node_id") == archetypeID) {
			out = append(out, n)
		}
		for _, k := range n.SortedKeys() {
			out = collect(n[k], rmType, archetypeID, out)
		}
	case ir.List:
		for _, item := range n {
			out = collect(item, rmType, archetypeID, out)
		}
	}
	return out
}
