package queryir

import (
	"fmt"
	"regexp"

	"github.com/roach88/aqlengine/internal/ir"
)

// Schema answers the questions validation asks of an archetype repository.
// Implemented by archetype.Repository.
type Schema interface {
	// RMType returns the reference model type an archetype constrains.
	// ok is false when the archetype is unknown.
	RMType(archetypeID string) (rmType string, ok bool)

	// HasNode reports whether the archetype defines the at-code.
	HasNode(archetypeID, nodeID string) bool
}

// Warning codes.
const (
	WarnUnknownArchetype = "W_UNKNOWN_ARCHETYPE"
	WarnRMTypeMismatch   = "W_RM_TYPE_MISMATCH"
	WarnUnknownNode      = "W_UNKNOWN_NODE"
)

// Warning describes a query that is legal but cannot match any data the
// archetype repository describes. Warnings never stop evaluation: an unknown
// archetype is an empty branch, and an unknown node is a null cell.
type Warning struct {
	Code    string
	Message string
	Pos     Pos
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Pos, w.Code, w.Message)
}

// ValidationResult contains the findings of Validate.
type ValidationResult struct {
	// Valid is true when no warning was raised.
	Valid bool

	// Warnings in query order: containment steps first, then paths.
	Warnings []Warning
}

// Validate checks a parsed query against an archetype repository.
//
// Checks:
//  1. Every literal archetype filter names a known archetype
//  2. That archetype constrains the step's RM type
//  3. At-codes used in paths under an archetyped variable exist in it
//
// Parameterized filters are skipped: their value is unknown until binding.
// A nil schema validates everything.
//
// Validate is a pure function with no side effects.
func Validate(q *Query, schema Schema) ValidationResult {
	v := &validator{schema: schema, warnings: []Warning{}}
	if schema != nil && q != nil {
		v.validateSteps(q)
		for _, p := range q.Paths() {
			v.validatePath(p)
		}
	}
	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	schema   Schema
	warnings []Warning
	known    map[string]string // variable -> archetype id, for known archetypes
}

func (v *validator) addWarning(code string, pos Pos, format string, args ...any) {
	v.warnings = append(v.warnings, Warning{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos})
}

func (v *validator) validateSteps(q *Query) {
	v.known = make(map[string]string)
	for _, step := range q.From {
		id, ok := LiteralArchetype(step.Filter)
		if !ok {
			continue
		}
		rmType, found := v.schema.RMType(id)
		if !found {
			v.addWarning(WarnUnknownArchetype, step.Pos, "archetype %s is not defined", id)
			continue
		}
		if rmType != step.Type {
			v.addWarning(WarnRMTypeMismatch, step.Pos, "archetype %s constrains %s, not %s", id, rmType, step.Type)
			continue
		}
		if step.Var != "" {
			v.known[step.Var] = id
		}
	}
}

// atCode matches archetype node ids such as at0001 or at0001.1.
var atCode = regexp.MustCompile(`^at\d+(\.\d+)*$`)

func (v *validator) validatePath(p Path) {
	id, ok := v.known[p.Var]
	if !ok {
		return
	}
	for _, seg := range p.Segments {
		for _, code := range []string{seg.NodeID, seg.Label} {
			if !atCode.MatchString(code) {
				continue
			}
			if !v.schema.HasNode(id, code) {
				v.addWarning(WarnUnknownNode, p.Pos, "%s: node %s is not defined in %s", p, code, id)
			}
		}
	}
}

// LiteralArchetype returns the archetype id of a literal archetype filter.
func LiteralArchetype(f StepFilter) (string, bool) {
	af, ok := f.(*ArchetypeFilter)
	if !ok {
		return "", false
	}
	lit, ok := af.ID.(*Literal)
	if !ok {
		return "", false
	}
	s, ok := lit.Value.(ir.String)
	return string(s), ok
}
