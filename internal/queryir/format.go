package queryir

import (
	"strings"

	"github.com/roach88/aqlengine/internal/ir"
)

// FormatPredicate renders a predicate tree as AQL text. Binary combinators
// are parenthesized so the rendering is unambiguous without precedence rules.
func FormatPredicate(p Predicate) string {
	var b strings.Builder
	writePredicate(&b, p)
	return b.String()
}

func writePredicate(b *strings.Builder, p Predicate) {
	switch n := p.(type) {
	case *Comparison:
		writeOperand(b, n.Left)
		b.WriteString(" " + n.Op.String() + " ")
		writeOperand(b, n.Right)
	case *Matches:
		writeOperand(b, n.Left)
		b.WriteString(" matches ")
		writeOperand(b, n.Set)
	case *Not:
		b.WriteString("NOT ")
		writePredicate(b, n.Inner)
	case *And:
		b.WriteByte('(')
		writePredicate(b, n.Left)
		b.WriteString(" AND ")
		writePredicate(b, n.Right)
		b.WriteByte(')')
	case *Or:
		b.WriteByte('(')
		writePredicate(b, n.Left)
		b.WriteString(" OR ")
		writePredicate(b, n.Right)
		b.WriteByte(')')
	case nil:
		b.WriteString("true")
	}
}

// FormatOperand renders an operand as AQL text.
func FormatOperand(o Operand) string {
	var b strings.Builder
	writeOperand(&b, o)
	return b.String()
}

func writeOperand(b *strings.Builder, o Operand) {
	switch n := o.(type) {
	case *PathRef:
		b.WriteString(n.Path.String())
	case *Literal:
		b.WriteString(FormatLiteral(n.Value))
	case *Param:
		b.WriteString("$" + n.Name)
	case *SetLiteral:
		b.WriteByte('{')
		for i, v := range n.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(FormatLiteral(v))
		}
		b.WriteByte('}')
	}
}

// FormatLiteral renders a constant the way the lexer reads it back.
func FormatLiteral(v ir.Value) string {
	switch val := v.(type) {
	case ir.String:
		return "'" + strings.ReplaceAll(strings.ReplaceAll(string(val), `\`, `\\`), "'", `\'`) + "'"
	case ir.Number:
		return val.String()
	case ir.Bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return "null"
	}
}

// FormatFilter renders a step filter as it appears between brackets.
func FormatFilter(f StepFilter) string {
	switch n := f.(type) {
	case *ArchetypeFilter:
		if lit, ok := n.ID.(*Literal); ok {
			if s, ok := lit.Value.(ir.String); ok {
				return "[" + string(s) + "]"
			}
		}
		return "[" + FormatOperand(n.ID) + "]"
	case *NodeFilter:
		rel := Path{Segments: pathSegments(n.Condition.Left)}
		return "[" + rel.String() + n.Condition.Op.String() + FormatOperand(n.Condition.Right) + "]"
	default:
		return ""
	}
}

func pathSegments(o Operand) []Segment {
	if ref, ok := o.(*PathRef); ok {
		return ref.Path.Segments
	}
	return nil
}

// WalkPredicate calls fn for p and every predicate beneath it, parents first.
func WalkPredicate(p Predicate, fn func(Predicate)) {
	if p == nil {
		return
	}
	fn(p)
	switch n := p.(type) {
	case *Not:
		WalkPredicate(n.Inner, fn)
	case *And:
		WalkPredicate(n.Left, fn)
		WalkPredicate(n.Right, fn)
	case *Or:
		WalkPredicate(n.Left, fn)
		WalkPredicate(n.Right, fn)
	}
}

// Paths returns every path the query reads: SELECT items, WHERE operands,
// ORDER BY keys, and node filters, in that order.
func (q *Query) Paths() []Path {
	var paths []Path
	for _, item := range q.Select {
		paths = append(paths, item.Path)
	}
	WalkPredicate(q.Where, func(p Predicate) {
		switch n := p.(type) {
		case *Comparison:
			paths = appendOperandPath(paths, n.Left)
			paths = appendOperandPath(paths, n.Right)
		case *Matches:
			paths = appendOperandPath(paths, n.Left)
		}
	})
	for _, item := range q.OrderBy {
		paths = append(paths, item.Path)
	}
	for _, step := range q.From {
		if nf, ok := step.Filter.(*NodeFilter); ok {
			paths = appendOperandPath(paths, nf.Condition.Left)
		}
	}
	return paths
}

func appendOperandPath(paths []Path, o Operand) []Path {
	if ref, ok := o.(*PathRef); ok {
		return append(paths, ref.Path)
	}
	return paths
}

// Step returns the step binding name, or nil.
func (q *Query) Step(name string) *Step {
	for i := range q.From {
		if q.From[i].Var == name && name != "" {
			return &q.From[i]
		}
	}
	return nil
}
