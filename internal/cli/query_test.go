package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/testutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const (
	allEHRsQuery   = "SELECT e/ehr_id/value AS ehr_id FROM EHR e"
	ehrStatusQuery = "SELECT e/ehr_id/value AS ehr_id, s/is_queryable AS queryable FROM EHR e CONTAINS EHR_STATUS s"
	compositionsQ  = "SELECT c/uid/value AS uid FROM EHR e CONTAINS COMPOSITION c [openEHR-EHR-COMPOSITION.minimal.v1]"
)

func TestQuery_TextTable(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"query_all_ehrs", allEHRsQuery},
		{"query_ehr_status", ehrStatusQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, "", "query", tt.query, "--data", fixtureDataset())
			require.NoError(t, err)
			assertGolden(t, tt.name, stdout)
		})
	}
}

func TestQuery_JSON(t *testing.T) {
	stdout, _, err := run(t, "", "--format", "json", "query", ehrStatusQuery, "--data", fixtureDataset())
	require.NoError(t, err)

	resp := decodeResponse(t, stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.QueryID)

	data := resp.Data.(map[string]any)
	assert.Equal(t, ehrStatusQuery, data["q"])
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, []any{
		map[string]any{"name": "ehr_id", "path": "e/ehr_id/value"},
		map[string]any{"name": "queryable", "path": "s/is_queryable"},
	}, data["columns"])
	assert.Equal(t, []any{
		[]any{testutil.FixtureEHR1, true},
		[]any{testutil.FixtureEHR2, true},
		[]any{testutil.FixtureEHR3, false},
	}, data["rows"])
}

func TestQuery_FromFileAndStdin(t *testing.T) {
	path := writeFile(t, "q.aql", allEHRsQuery+"\n")

	fromFile, _, err := run(t, "", "query", path, "--data", fixtureDataset())
	require.NoError(t, err)

	fromStdin, _, err := run(t, allEHRsQuery, "query", "-", "--data", fixtureDataset())
	require.NoError(t, err)

	assert.Equal(t, fromFile, fromStdin)
	assert.Contains(t, fromFile, "(3 of 3 rows)")
}

func TestQuery_Params(t *testing.T) {
	query := "SELECT e/ehr_id/value AS ehr_id FROM EHR e [ehr_id/value=$ehr_id]"

	stdout, _, err := run(t, "", "query", query, "--data", fixtureDataset(), "--param", "ehr_id="+testutil.FixtureEHR2)
	require.NoError(t, err)
	assert.Contains(t, stdout, testutil.FixtureEHR2)
	assert.Contains(t, stdout, "(1 of 1 rows)")
}

func TestQuery_ParamsJSON(t *testing.T) {
	query := "SELECT a/data[at0001]/items[at0002]/value/value AS rank, " +
		"a/data[at0001]/items[at0002]/value/symbol/value AS symbol " +
		"FROM EHR e CONTAINS ADMIN_ENTRY a WHERE a/data[at0001]/items[at0002]/value >= $min"
	params := writeFile(t, "params.json", `{"min": 2}`)

	stdout, _, err := run(t, "", "--format", "json", "query", query, "--data", fixtureDataset(), "--params-json", params)
	require.NoError(t, err)

	data := decodeResponse(t, stdout).Data.(map[string]any)
	assert.Equal(t, []any{[]any{float64(2), "moderate"}}, data["rows"])
}

func TestQuery_Pagination(t *testing.T) {
	stdout, _, err := run(t, "", "--format", "json", "query", compositionsQ,
		"--data", fixtureDataset(), "--offset", "1", "--fetch", "2")
	require.NoError(t, err)

	data := decodeResponse(t, stdout).Data.(map[string]any)
	assert.Equal(t, float64(6), data["total"])
	assert.Equal(t, []any{
		[]any{"1d5e9b3f-2a4c-4d6e-9fa0-1b2c3d4e5f60::local.aqlengine::1"},
		[]any{"2e6fac40-3b5d-4e7f-a0b1-2c3d4e5f6071::local.aqlengine::1"},
	}, data["rows"])
}

func TestQuery_Warnings(t *testing.T) {
	query := "SELECT c/uid/value AS uid FROM EHR e CONTAINS COMPOSITION c [openEHR-EHR-COMPOSITION.absent.v1]"

	stdout, stderr, err := run(t, "", "query", query, "--data", fixtureDataset(), "--archetypes", fixtureArchetypes())
	require.NoError(t, err)
	assert.Contains(t, stdout, "(0 of 0 rows)")
	assert.Contains(t, stderr, "warning: 1:47: W_UNKNOWN_ARCHETYPE")
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantCode string
	}{
		{
			name:     "syntax",
			args:     []string{"query", "SELECT FROM", "--data", fixtureDataset()},
			wantExit: ExitCommandError,
			wantCode: "E_SYNTAX",
		},
		{
			name:     "unbound parameter",
			args:     []string{"query", "SELECT e FROM EHR e [ehr_id/value=$ehr_id]", "--data", fixtureDataset()},
			wantExit: ExitCommandError,
			wantCode: "E_UNBOUND_PARAM",
		},
		{
			name:     "no source",
			args:     []string{"query", allEHRsQuery},
			wantExit: ExitCommandError,
			wantCode: ErrCodeSource,
		},
		{
			name:     "missing store",
			args:     []string{"query", allEHRsQuery, "--db", filepath.Join(t.TempDir(), "absent.db")},
			wantExit: ExitCommandError,
			wantCode: ErrCodeSource,
		},
		{
			name:     "missing dataset",
			args:     []string{"query", allEHRsQuery, "--data", filepath.Join(t.TempDir(), "absent.yaml")},
			wantExit: ExitCommandError,
			wantCode: ErrCodeSource,
		},
		{
			name:     "bad param",
			args:     []string{"query", allEHRsQuery, "--data", fixtureDataset(), "--param", "novalue"},
			wantExit: ExitCommandError,
			wantCode: ErrCodeInput,
		},
		{
			name:     "bad archetypes",
			args:     []string{"query", allEHRsQuery, "--data", fixtureDataset(), "--archetypes", filepath.Join(t.TempDir(), "none")},
			wantExit: ExitCommandError,
			wantCode: ErrCodeArchetypes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, "", append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))

			resp := decodeResponse(t, stdout)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestQuery_DataAndDBExclusive(t *testing.T) {
	_, _, err := run(t, "", "query", allEHRsQuery, "--data", fixtureDataset(), "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestQuery_ConfigLimit(t *testing.T) {
	config := writeFile(t, "aql.yaml", "limit:\n  max: 1\n")

	stdout, _, err := run(t, "", "--format", "json", "--config", config,
		"query", compositionsQ+" LIMIT 5", "--data", fixtureDataset())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E_LIMIT", decodeResponse(t, stdout).Error.Code)
}

func TestQuery_MetricsFile(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "aql.prom")

	_, _, err := run(t, "", "query", allEHRsQuery, "--data", fixtureDataset(), "--metrics-file", metrics)
	require.NoError(t, err)

	_, _, err = run(t, "", "query", "SELECT FROM", "--data", fixtureDataset(), "--metrics-file", metrics)
	require.Error(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `aql_engine_queries_total{outcome="syntax_error"} 1`)
}

func TestParseParams(t *testing.T) {
	file := writeFile(t, "params.json", `{"a": "from file", "b": 1.50}`)

	params, err := parseParams(file, []string{"a=override", "$n=2", "flag=true", "empty=", "when=2024-03-01"})
	require.NoError(t, err)

	assert.Equal(t, ir.String("override"), params["a"])
	assert.Equal(t, "1.50", params["b"].(ir.Number).String())
	assert.Equal(t, "2", params["n"].(ir.Number).String())
	assert.Equal(t, ir.Bool(true), params["flag"])
	assert.Equal(t, ir.String(""), params["empty"])
	assert.Equal(t, ir.String("2024-03-01"), params["when"])

	none, err := parseParams("", nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseParams(writeFile(t, "list.json", `[1, 2]`), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a JSON object")

	_, err = parseParams("", []string{"=1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected name=value")
}

func TestReadQuery(t *testing.T) {
	path := writeFile(t, "q.aql", "  SELECT e FROM EHR e\n")

	text, err := readQuery(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT e FROM EHR e", text)

	text, err = readQuery("-", strings.NewReader("SELECT c FROM COMPOSITION c\n"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT c FROM COMPOSITION c", text)

	text, err = readQuery("SELECT o FROM OBSERVATION o", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT o FROM OBSERVATION o", text)

	_, err = readQuery("-", strings.NewReader("   \n"))
	assert.EqualError(t, err, "query is empty")
}

func TestCellText(t *testing.T) {
	tests := []struct {
		value ir.Value
		want  string
	}{
		{ir.String("plain"), "plain"},
		{ir.Null{}, "NULL"},
		{nil, "NULL"},
		{ir.MustNumber("37.50"), "37.50"},
		{ir.Bool(false), "false"},
		{ir.NewObject(ir.O("units", ir.String("Cel")), ir.O("magnitude", ir.MustNumber("37.5"))), `{"magnitude":37.5,"units":"Cel"}`},
	}

	for _, tt := range tests {
		got, err := cellText(tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
