package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/ir"
)

// fakeSchema maps archetype id to RM type and defined at-codes.
type fakeSchema struct {
	types map[string]string
	nodes map[string][]string
}

func (s fakeSchema) RMType(id string) (string, bool) {
	t, ok := s.types[id]
	return t, ok
}

func (s fakeSchema) HasNode(id, nodeID string) bool {
	for _, n := range s.nodes[id] {
		if n == nodeID {
			return true
		}
	}
	return false
}

const (
	minimalComposition = "openEHR-EHR-COMPOSITION.minimal.v1"
	minimalObservation = "openEHR-EHR-OBSERVATION.minimal.v1"
)

func testSchema() fakeSchema {
	return fakeSchema{
		types: map[string]string{
			minimalComposition: "COMPOSITION",
			minimalObservation: "OBSERVATION",
		},
		nodes: map[string][]string{
			minimalObservation: {"at0000", "at0001", "at0002", "at0003", "at0004"},
		},
	}
}

func archetypeStep(rmType, v, id string) Step {
	return Step{Type: rmType, Var: v, Filter: &ArchetypeFilter{ID: &Literal{Value: ir.String(id)}}}
}

func TestValidate_KnownQuery(t *testing.T) {
	q := &Query{
		Select: []SelectItem{{Path: obsValuePath()}},
		From: []Step{
			{Type: "EHR", Var: "e"},
			archetypeStep("COMPOSITION", "c", minimalComposition),
			archetypeStep("OBSERVATION", "o", minimalObservation),
		},
	}

	result := Validate(q, testSchema())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_UnknownArchetype(t *testing.T) {
	q := &Query{
		From: []Step{
			{Type: "EHR", Var: "e"},
			archetypeStep("COMPOSITION", "c", "openEHR-EHR-COMPOSITION.missing.v1"),
		},
	}

	result := Validate(q, testSchema())
	assert.False(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnUnknownArchetype, result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Message, "openEHR-EHR-COMPOSITION.missing.v1")
}

func TestValidate_RMTypeMismatch(t *testing.T) {
	q := &Query{
		From: []Step{
			archetypeStep("COMPOSITION", "c", minimalComposition),
			archetypeStep("ACTION", "a", minimalObservation),
		},
	}

	result := Validate(q, testSchema())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnRMTypeMismatch, result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Message, "constrains OBSERVATION, not ACTION")
}

func TestValidate_UnknownNode(t *testing.T) {
	bad := Path{Var: "o", Segments: []Segment{
		{Label: "data", NodeID: "at0001"},
		{Label: "events", NodeID: "at9999"},
	}}
	q := &Query{
		Select: []SelectItem{{Path: bad}},
		From:   []Step{archetypeStep("OBSERVATION", "o", minimalObservation)},
	}

	result := Validate(q, testSchema())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnUnknownNode, result.Warnings[0].Code)
	assert.Contains(t, result.Warnings[0].Message, "at9999")
}

func TestValidate_AtCodeLabel(t *testing.T) {
	p := Path{Var: "o", Segments: []Segment{{Label: "at0005"}, {Label: "value"}}}
	q := &Query{
		Where: &Comparison{Left: &PathRef{Path: p}, Op: OpEq, Right: &Literal{Value: ir.String("x")}},
		From:  []Step{archetypeStep("OBSERVATION", "o", minimalObservation)},
	}

	result := Validate(q, testSchema())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, WarnUnknownNode, result.Warnings[0].Code)
}

func TestValidate_ArchetypeIDPredicatesIgnored(t *testing.T) {
	// Only at-codes are checked; archetype ids in segment predicates are opaque.
	p := Path{Var: "c", Segments: []Segment{{Label: "content", NodeID: minimalObservation}}}
	q := &Query{
		Select: []SelectItem{{Path: p}},
		From:   []Step{archetypeStep("COMPOSITION", "c", minimalComposition)},
	}

	assert.True(t, Validate(q, testSchema()).Valid)
}

func TestValidate_ParameterizedFilterSkipped(t *testing.T) {
	q := &Query{
		Select: []SelectItem{{Path: Path{Var: "c", Segments: []Segment{{Label: "x", NodeID: "at4242"}}}}},
		From: []Step{
			{Type: "COMPOSITION", Var: "c", Filter: &ArchetypeFilter{ID: &Param{Name: "archetype"}}},
		},
	}

	assert.True(t, Validate(q, testSchema()).Valid)
}

func TestValidate_NilSchema(t *testing.T) {
	q := &Query{From: []Step{archetypeStep("COMPOSITION", "c", "anything")}}

	result := Validate(q, nil)
	assert.True(t, result.Valid)
	assert.NotNil(t, result.Warnings)
	assert.Empty(t, result.Warnings)
}

func TestLiteralArchetype(t *testing.T) {
	id, ok := LiteralArchetype(&ArchetypeFilter{ID: &Literal{Value: ir.String(minimalComposition)}})
	assert.True(t, ok)
	assert.Equal(t, minimalComposition, id)

	_, ok = LiteralArchetype(&ArchetypeFilter{ID: &Param{Name: "p"}})
	assert.False(t, ok)

	_, ok = LiteralArchetype(&NodeFilter{Condition: &Comparison{}})
	assert.False(t, ok)

	_, ok = LiteralArchetype(nil)
	assert.False(t, ok)
}

func TestWarningString(t *testing.T) {
	w := Warning{Code: WarnUnknownNode, Message: "boom", Pos: Pos{Line: 2, Column: 7}}
	assert.Equal(t, "2:7: W_UNKNOWN_NODE: boom", w.String())
}
