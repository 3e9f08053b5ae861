package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/aqlengine/internal/ir"
)

// Pos locates a token in query text. Line and Column are 1-based; Offset is
// the 0-based byte offset.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Query is the parsed form of one AQL statement.
//
// Semantics:
//
//	SELECT <Select> FROM <From[0]> CONTAINS <From[1]> ... WHERE <Where>
//	ORDER BY <OrderBy> LIMIT <Limit> OFFSET <Offset>
//
// A Query is built once by the parser and never mutated afterwards; the
// engine may evaluate the same Query concurrently.
//
// INVARIANTS (enforced by the parser):
//   - every Path.Var names a Step.Var declared in From
//   - Step variables and SELECT aliases are unique
//   - references to SELECT aliases in WHERE and ORDER BY are already
//     rewritten to the aliased path
//   - Params lists each referenced parameter once, in order of appearance
type Query struct {
	Text    string       // Original query text
	Select  []SelectItem // Projection, in output column order
	From    []Step       // Containment chain, root first
	Where   Predicate    // Filter (nil = no filter)
	OrderBy []OrderItem  // Sort keys (empty = planner order)
	Limit   *int         // Query-level LIMIT (nil = absent)
	Offset  *int         // Query-level OFFSET (nil = absent)
	Params  []string     // Referenced $names in order of first appearance
}

// Step is one element of the FROM/CONTAINS chain.
//
// Example:
//
//	CONTAINS OBSERVATION o [openEHR-EHR-OBSERVATION.minimal.v1]
//
// is Step{Type: "OBSERVATION", Var: "o", Filter: &ArchetypeFilter{...}}.
// Var may be empty for anonymous steps ("CONTAINS COMPOSITION [x]").
type Step struct {
	Type   string     // RM type name: EHR, COMPOSITION, OBSERVATION, ...
	Var    string     // Bound variable ("" = anonymous)
	Filter StepFilter // Bracketed predicate (nil = none)
	Pos    Pos
}

// StepFilter is the bracketed predicate attached to a Step.
//
// This is a sealed interface - only ArchetypeFilter and NodeFilter
// implement it.
type StepFilter interface {
	stepFilter() // Marker method - seals interface to this package
}

// ArchetypeFilter keeps candidates whose archetype_node_id equals ID exactly.
// ID is a *Literal holding an ir.String or a *Param.
type ArchetypeFilter struct {
	ID Operand
}

func (*ArchetypeFilter) stepFilter() {}

// NodeFilter keeps candidates satisfying a comparison on a path relative to
// the step's own node, as in "FROM EHR e [ehr_id/value=$uid]". The
// comparison's left path has Var set to the step variable.
type NodeFilter struct {
	Condition *Comparison
}

func (*NodeFilter) stepFilter() {}

// SelectItem is one projected column.
type SelectItem struct {
	Path  Path
	Alias string // "" = derive a column name from the path
	Pos   Pos
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Path       Path
	Descending bool
}

// Path addresses a value beneath a bound variable.
//
// Example:
//
//	o/data[at0001]/events[at0002]/time/value
//
// is Path{Var: "o", Segments: [{data at0001} {events at0002} {time} {value}]}.
// A Path with no segments denotes the bound node itself ("SELECT c").
type Path struct {
	Var      string
	Segments []Segment
	Pos      Pos
}

// Segment is one labelled step of a Path with an optional node predicate.
// NodeID holds an at-code or an archetype id; both are opaque strings.
type Segment struct {
	Label  string
	NodeID string
}

func (s Segment) String() string {
	if s.NodeID == "" {
		return s.Label
	}
	return s.Label + "[" + s.NodeID + "]"
}

// String renders the path the way it is written in AQL.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Var)
	for _, s := range p.Segments {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Predicate is a node of the WHERE tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Comparison: operand <op> operand
//   - Matches: operand matches {set} | operand matches $param
//   - Not, And, Or: boolean combinators
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// CompareOp is a binary comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota // =
	OpNe                  // !=
	OpGt                  // >
	OpGe                  // >=
	OpLt                  // <
	OpLe                  // <=
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	default:
		return fmt.Sprintf("CompareOp(%d)", int(op))
	}
}

// Comparison compares two operands.
//
// Semantics:
//
//	<Left> <Op> <Right>
//
// A kind mismatch between the operands makes the comparison false for
// every operator, including !=.
type Comparison struct {
	Left  Operand
	Op    CompareOp
	Right Operand
}

func (*Comparison) predicateNode() {}

// Matches tests membership of Left in a value set.
//
// Semantics:
//
//	<Left> matches {'a', 'b'}
//	<Left> matches $param      (parameter value is itself set syntax)
//
// A set holding a single pattern-shaped string (leading ^, trailing .* and
// the like) is evaluated as a full-string regular expression instead.
// Set is a *SetLiteral or a *Param.
type Matches struct {
	Left Operand
	Set  Operand
}

func (*Matches) predicateNode() {}

// Not negates its operand.
type Not struct {
	Inner Predicate
}

func (*Not) predicateNode() {}

// And is true when both sides are true.
type And struct {
	Left, Right Predicate
}

func (*And) predicateNode() {}

// Or is true when either side is true.
type Or struct {
	Left, Right Predicate
}

func (*Or) predicateNode() {}

// Operand is a value source inside a predicate.
//
// This is a sealed interface - only PathRef, Literal, Param, and SetLiteral
// implement it.
type Operand interface {
	operandNode() // Marker method - seals interface to this package
}

// PathRef reads a value through a Path.
type PathRef struct {
	Path Path
}

func (*PathRef) operandNode() {}

// Literal is a constant written in the query text.
type Literal struct {
	Value ir.Value
}

func (*Literal) operandNode() {}

// Param is a $name placeholder resolved by the parameter binder.
type Param struct {
	Name string
	Pos  Pos
}

func (*Param) operandNode() {}

// SetLiteral is a braced list of constants: {'a', 'b'}.
type SetLiteral struct {
	Values []ir.Value
}

func (*SetLiteral) operandNode() {}
