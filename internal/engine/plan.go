package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/aqlengine/internal/queryir"
)

// ScanKind identifies how a plan level produces candidates.
type ScanKind int

const (
	// ScanEHRs iterates every EHR in the source.
	ScanEHRs ScanKind = iota
	// ScanStatus binds the EHR_STATUS of the enclosing EHR.
	ScanStatus
	// ScanCompositions iterates the compositions of the enclosing EHR.
	ScanCompositions
	// ScanDescendants walks the enclosing binding for nodes of one RM type.
	ScanDescendants
)

func (k ScanKind) String() string {
	switch k {
	case ScanEHRs:
		return "ehrs"
	case ScanStatus:
		return "status"
	case ScanCompositions:
		return "compositions"
	case ScanDescendants:
		return "descendants"
	default:
		return fmt.Sprintf("ScanKind(%d)", int(k))
	}
}

// Scan is one level of the nested-loop plan. Level i+1 runs once per
// candidate of level i, scoped to that candidate.
type Scan struct {
	Kind     ScanKind
	Type     string             // RM type bound at this level
	Var      string             // Query variable ("" = anonymous)
	Filter   queryir.StepFilter // Step filter (nil = none)
	Implicit bool               // Inserted by the planner, not written in the query
}

// Plan is the nested scan plan for one query.
//
// INVARIANTS:
//   - Scans[0] is always ScanEHRs
//   - Scans[1], when present, is ScanCompositions or ScanStatus
//   - every query step appears exactly once, in query order
type Plan struct {
	Query *queryir.Query
	Scans []Scan

	slots map[string]int // variable -> scan index
}

// NewPlan builds the scan plan for a parsed query.
//
// A chain that does not start at EHR is given an implicit EHR scan, and a
// chain that reaches a non-composition type directly under EHR is given an
// implicit composition scan. Steps compose on the containment relation: each
// scan only sees nodes beneath the binding of the scan before it.
func NewPlan(q *queryir.Query) (*Plan, error) {
	if q == nil || len(q.From) == 0 {
		return nil, fmt.Errorf("plan: query has no FROM clause")
	}

	p := &Plan{Query: q, slots: make(map[string]int)}
	steps := q.From
	if steps[0].Type == "EHR" {
		p.add(Scan{Kind: ScanEHRs, Type: "EHR", Var: steps[0].Var, Filter: steps[0].Filter})
		steps = steps[1:]
	} else {
		p.add(Scan{Kind: ScanEHRs, Type: "EHR", Implicit: true})
	}

	for i, step := range steps {
		scan := Scan{Type: step.Type, Var: step.Var, Filter: step.Filter}
		switch {
		case step.Type == "EHR":
			return nil, fmt.Errorf("plan: EHR must be the root of the containment chain")
		case step.Type == "COMPOSITION":
			scan.Kind = ScanCompositions
		case step.Type == "EHR_STATUS":
			scan.Kind = ScanStatus
		default:
			if i == 0 {
				p.add(Scan{Kind: ScanCompositions, Type: "COMPOSITION", Implicit: true})
			}
			scan.Kind = ScanDescendants
		}
		if (scan.Kind == ScanCompositions || scan.Kind == ScanStatus) && len(p.Scans) != 1 {
			return nil, fmt.Errorf("plan: %s must be directly contained in EHR", step.Type)
		}
		p.add(scan)
	}
	return p, nil
}

func (p *Plan) add(s Scan) {
	if s.Var != "" {
		p.slots[s.Var] = len(p.Scans)
	}
	p.Scans = append(p.Scans, s)
}

// Slot returns the scan index that binds a variable.
func (p *Plan) Slot(name string) (int, bool) {
	i, ok := p.slots[name]
	return i, ok
}

// String renders the plan as an indented tree, one scan per line.
//
// Example:
//
//	scan ehrs EHR e
//	  scan compositions COMPOSITION c [openEHR-EHR-COMPOSITION.minimal.v1]
//	    scan descendants OBSERVATION o [$archetype]
//	filter o/name/value = 'x'
//	project o/name/value
func (p *Plan) String() string {
	var b strings.Builder
	for i, s := range p.Scans {
		b.WriteString(strings.Repeat("  ", i))
		b.WriteString("scan " + s.Kind.String() + " " + s.Type)
		if s.Var != "" {
			b.WriteString(" " + s.Var)
		}
		if s.Filter != nil {
			b.WriteString(" " + queryir.FormatFilter(s.Filter))
		}
		if s.Implicit {
			b.WriteString(" (implicit)")
		}
		b.WriteByte('\n')
	}
	if p.Query.Where != nil {
		b.WriteString("filter " + queryir.FormatPredicate(p.Query.Where) + "\n")
	}
	for _, o := range p.Query.OrderBy {
		dir := "asc"
		if o.Descending {
			dir = "desc"
		}
		b.WriteString("order " + o.Path.String() + " " + dir + "\n")
	}
	items := make([]string, len(p.Query.Select))
	for i, s := range p.Query.Select {
		items[i] = s.Path.String()
		if s.Alias != "" {
			items[i] += " as " + s.Alias
		}
	}
	b.WriteString("project " + strings.Join(items, ", ") + "\n")
	return b.String()
}
