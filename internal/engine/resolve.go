package engine

import (
	"regexp"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// atCodeLabel matches segment labels that are node ids rather than
// attribute names.
var atCodeLabel = regexp.MustCompile(`^at\d+(\.\d+)*$`)

// Resolve navigates node through segments.
//
// Rules, per segment:
//   - The label selects the attribute of that name. An at-code label that is
//     not an attribute selects the first child node carrying that
//     archetype_node_id.
//   - A node-id predicate on an object requires its archetype_node_id to
//     match; on a list it selects the first element that matches.
//   - A list without a predicate is returned whole as the final segment and
//     contributes its first element otherwise.
//
// Anything unresolvable makes the whole path Null. Resolve never fails.
func Resolve(node ir.Value, segments []queryir.Segment) ir.Value {
	cur := ir.OrNull(node)
	for i, seg := range segments {
		obj, ok := cur.(ir.Object)
		if !ok {
			return ir.Null{}
		}

		child, present := obj[seg.Label]
		if !present {
			if !atCodeLabel.MatchString(seg.Label) {
				return ir.Null{}
			}
			found := findChild(obj, seg.Label)
			if found == nil {
				return ir.Null{}
			}
			child = found
		}

		last := i == len(segments)-1
		switch c := child.(type) {
		case ir.Object:
			if seg.NodeID != "" && c.Text("archetype_node_id") != seg.NodeID {
				return ir.Null{}
			}
			cur = c
		case ir.List:
			switch {
			case seg.NodeID != "":
				found := firstWithNodeID(c, seg.NodeID)
				if found == nil {
					return ir.Null{}
				}
				cur = found
			case last:
				cur = c
			case len(c) == 0:
				return ir.Null{}
			default:
				cur = c[0]
			}
		default:
			if seg.NodeID != "" {
				return ir.Null{}
			}
			cur = ir.OrNull(child)
		}
	}
	return cur
}

// findChild searches obj's attributes, in canonical key order, for the first
// object (directly or as a list element) with the given archetype_node_id.
func findChild(obj ir.Object, nodeID string) ir.Object {
	for _, k := range obj.SortedKeys() {
		switch c := obj[k].(type) {
		case ir.Object:
			if c.Text("archetype_node_id") == nodeID {
				return c
			}
		case ir.List:
			if found := firstWithNodeID(c, nodeID); found != nil {
				return found
			}
		}
	}
	return nil
}

func firstWithNodeID(list ir.List, nodeID string) ir.Object {
	for _, item := range list {
		if obj, ok := item.(ir.Object); ok && obj.Text("archetype_node_id") == nodeID {
			return obj
		}
	}
	return nil
}
