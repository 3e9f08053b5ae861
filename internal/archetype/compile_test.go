package archetype

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOne(t *testing.T, src string) (*Definition, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())

	iter, err := v.LookupPath(cue.ParsePath("archetype")).Fields()
	require.NoError(t, err)
	require.True(t, iter.Next())
	return CompileDefinition(iter.Value())
}

func TestCompileDefinition(t *testing.T) {
	def, err := compileOne(t, `
archetype: "openEHR-EHR-OBSERVATION.minimal.v1": {
	rm_type: "OBSERVATION"
	concept: "Minimal"
	nodes: {
		at0001: {name: "Event Series", rm_type: "HISTORY"}
		at0004: "Text"
	}
}
`)
	require.NoError(t, err)

	assert.Equal(t, "openEHR-EHR-OBSERVATION.minimal.v1", def.ID)
	assert.Equal(t, "OBSERVATION", def.RMType)
	assert.Equal(t, "Minimal", def.Concept)
	assert.Equal(t, map[string]Node{
		"at0001": {Name: "Event Series", RMType: "HISTORY"},
		"at0004": {Name: "Text"},
	}, def.Nodes)
	assert.True(t, def.HasNode("at0004"))
	assert.False(t, def.HasNode("at0002"))
}

func TestCompileDefinition_NoNodes(t *testing.T) {
	def, err := compileOne(t, `archetype: "openEHR-EHR-COMPOSITION.minimal.v1": rm_type: "COMPOSITION"`)
	require.NoError(t, err)

	assert.Empty(t, def.Nodes)
	assert.Empty(t, def.Concept)
}

func TestCompileDefinition_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing rm_type",
			src:   `archetype: "openEHR-EHR-ACTION.x.v1": concept: "X"`,
			field: "rm_type",
		},
		{
			name:  "rm_type not a string",
			src:   `archetype: "openEHR-EHR-ACTION.x.v1": rm_type: 5`,
			field: "rm_type",
		},
		{
			name:  "node without name",
			src:   `archetype: "openEHR-EHR-ACTION.x.v1": {rm_type: "ACTION", nodes: at0001: rm_type: "ELEMENT"}`,
			field: "name",
		},
		{
			name:  "concept not a string",
			src:   `archetype: "openEHR-EHR-ACTION.x.v1": {rm_type: "ACTION", concept: true}`,
			field: "concept",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, tt.src)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, err.Error(), "test.cue:", "errors carry the source position")
		})
	}
}

func TestCompileError_NoPosition(t *testing.T) {
	err := &CompileError{Field: "id", Message: "bad"}
	assert.Equal(t, "id: bad", err.Error())
}
