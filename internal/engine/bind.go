package engine

import (
	"regexp"
	"strings"

	"github.com/roach88/aqlengine/internal/aql"
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// Bindings is the parameter environment of one evaluation.
//
// Bindings is built once by Bind before any record is read and is never
// mutated afterwards, so per-EHR workers share it without locking.
type Bindings struct {
	values map[string]ir.Value
	sets   map[*queryir.Matches]*valueSet
}

// Bind resolves every $name referenced by q against params.
//
// It returns *UnboundParameterError for the first referenced name (in order
// of appearance) that params lacks. Supplied names the query never
// references are ignored. Value sets of MATCHES predicates are parsed and
// their patterns compiled here, once per evaluation.
func Bind(q *queryir.Query, params map[string]ir.Value) (*Bindings, error) {
	b := &Bindings{
		values: make(map[string]ir.Value, len(q.Params)),
		sets:   make(map[*queryir.Matches]*valueSet),
	}
	for _, name := range q.Params {
		v, ok := params[name]
		if !ok {
			return nil, &UnboundParameterError{Name: name}
		}
		b.values[name] = ir.OrNull(v)
	}

	queryir.WalkPredicate(q.Where, func(p queryir.Predicate) {
		if m, ok := p.(*queryir.Matches); ok {
			b.sets[m] = b.buildSet(m.Set)
		}
	})
	return b, nil
}

// Value returns the bound value of a parameter.
func (b *Bindings) Value(name string) (ir.Value, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.values[name]
	return v, ok
}

// operand evaluates a non-path operand.
func (b *Bindings) operand(o queryir.Operand) ir.Value {
	switch n := o.(type) {
	case *queryir.Literal:
		return ir.OrNull(n.Value)
	case *queryir.Param:
		v, _ := b.Value(n.Name)
		return ir.OrNull(v)
	case *queryir.SetLiteral:
		return ir.NewList(n.Values...)
	default:
		return ir.Null{}
	}
}

// set returns the value set of a MATCHES predicate, building it on demand
// for predicates Bind has not seen.
func (b *Bindings) set(m *queryir.Matches) *valueSet {
	if b != nil {
		if s, ok := b.sets[m]; ok {
			return s
		}
	}
	return b.buildSet(m.Set)
}

func (b *Bindings) buildSet(o queryir.Operand) *valueSet {
	switch n := o.(type) {
	case *queryir.SetLiteral:
		return newValueSet(n.Values)
	case *queryir.Param:
		v, _ := b.Value(n.Name)
		return newValueSet(paramSet(v))
	default:
		return newValueSet([]ir.Value{b.operand(o)})
	}
}

// paramSet expands a parameter bound to MATCHES. A string is read as set
// syntax ("{'a','b'}" or "'a','b'"); when it does not parse it is a single
// value. A list contributes its items.
func paramSet(v ir.Value) []ir.Value {
	switch x := ir.OrNull(v).(type) {
	case ir.String:
		values, err := aql.ParseValueSet(string(x))
		if err != nil || len(values) == 0 {
			return []ir.Value{x}
		}
		return values
	case ir.List:
		return x
	default:
		return []ir.Value{x}
	}
}

// valueSet is the right-hand side of MATCHES. A set holding exactly one
// pattern-shaped string matches by regular expression or by the string
// itself; any other set matches by membership.
type valueSet struct {
	values  []ir.Value
	pattern *regexp.Regexp
}

func newValueSet(values []ir.Value) *valueSet {
	s := &valueSet{values: values}
	if len(values) != 1 {
		return s
	}
	str, ok := values[0].(ir.String)
	if !ok || !isPattern(string(str)) {
		return s
	}
	re, err := regexp.Compile(`^(?:` + string(str) + `)$`)
	if err != nil {
		return s
	}
	s.pattern = re
	return s
}

// contains reports whether v is in the set, or matches its pattern.
func (s *valueSet) contains(v ir.Value) bool {
	if s.pattern != nil {
		str, ok := ir.Leaf(v).(ir.String)
		return ok && (s.pattern.MatchString(string(str)) || str == s.values[0])
	}
	for _, item := range s.values {
		if eq, ok := ir.Equal(v, item); ok && eq {
			return true
		}
	}
	return false
}

// patternSuffixes end a pattern-shaped string. "*" covers ".*" and "+" covers
// ".+".
var patternSuffixes = []string{"$", "*", "+", "?"}

// isPattern reports whether s reads as a regular expression rather than a
// literal: a leading ^, or a trailing $, .*, .+, *, + or ?.
func isPattern(s string) bool {
	if strings.HasPrefix(s, "^") {
		return true
	}
	for _, suffix := range patternSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
