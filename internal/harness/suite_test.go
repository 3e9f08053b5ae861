package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/testutil"
)

func TestLoadSuite_Corpus(t *testing.T) {
	suite, err := LoadSuite(testutil.RepoPath("testdata", "suites", "minimal.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "minimal", suite.Name)
	assert.Equal(t, testutil.RepoPath("testdata", "datasets", "minimal.yaml"), suite.Dataset)
	assert.Equal(t, testutil.RepoPath("testdata", "archetypes"), suite.Archetypes)
	assert.Len(t, suite.Cases, 12)

	page := suite.Cases[3]
	assert.Equal(t, "composition_page", page.Name)
	require.NotNil(t, page.Offset)
	require.NotNil(t, page.Fetch)
	assert.Equal(t, 1, *page.Offset)
	assert.Equal(t, 2, *page.Fetch)
}

func TestLoadSuite_Errors(t *testing.T) {
	dataset := testutil.RepoPath("testdata", "datasets", "minimal.yaml")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndataset: " + dataset + "\ncase: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "dataset: " + dataset + "\ncases: [{name: a, query: q, assertions: [{type: total}]}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing dataset",
			content: "name: x\ncases: [{name: a, query: q, assertions: [{type: total}]}]\n",
			wantErr: "dataset is required",
		},
		{
			name:    "dataset not found",
			content: "name: x\ndataset: nowhere.yaml\ncases: [{name: a, query: q, assertions: [{type: total}]}]\n",
			wantErr: "dataset not found",
		},
		{
			name:    "archetypes not found",
			content: "name: x\ndataset: " + dataset + "\narchetypes: nowhere\ncases: [{name: a, query: q, assertions: [{type: total}]}]\n",
			wantErr: "archetypes directory not found",
		},
		{
			name:    "no cases",
			content: "name: x\ndataset: " + dataset + "\n",
			wantErr: "cases list is required",
		},
		{
			name:    "negative max bindings",
			content: "name: x\ndataset: " + dataset + "\nmax_bindings: -1\ncases: [{name: a, query: q, assertions: [{type: total}]}]\n",
			wantErr: "max_bindings must be non-negative",
		},
		{
			name:    "duplicate case",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, query: q, assertions: [{type: total}]}, {name: a, query: q, assertions: [{type: total}]}]\n",
			wantErr: `duplicate case name "a"`,
		},
		{
			name:    "missing query",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, assertions: [{type: total}]}]\n",
			wantErr: "cases[0]: query is required",
		},
		{
			name:    "no assertions",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, query: q}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, query: q, assertions: [{type: trace_order}]}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "error without code",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, query: q, assertions: [{type: error}]}]\n",
			wantErr: "code is required for error",
		},
		{
			name:    "columns without names",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, query: q, assertions: [{type: columns}]}]\n",
			wantErr: "names list is required",
		},
		{
			name:    "negative count",
			content: "name: x\ndataset: " + dataset + "\ncases: [{name: a, query: q, assertions: [{type: row_count, count: -2}]}]\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "suite.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadSuite(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSuite_MissingFile(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}

func TestCase_Params(t *testing.T) {
	path := writeSuite(t, t.TempDir(), `
cases:
  - name: typed
    query: "SELECT e FROM EHR e"
    params:
      text: hello
      exact: 37.50
      whole: 2
      flag: true
      nothing: null
    assertions:
      - type: total
        count: 3
`)
	suite, err := LoadSuite(path)
	require.NoError(t, err)

	params, err := suite.Cases[0].params()
	require.NoError(t, err)

	assert.Equal(t, ir.String("hello"), params["text"])
	assert.Equal(t, "37.50", params["exact"].(ir.Number).String())
	assert.Equal(t, "2", params["whole"].(ir.Number).String())
	assert.Equal(t, ir.Bool(true), params["flag"])
	assert.Equal(t, ir.Null{}, params["nothing"])
}

func TestCase_NoParams(t *testing.T) {
	c := Case{Name: "plain"}
	params, err := c.params()
	require.NoError(t, err)
	assert.Nil(t, params)
}
