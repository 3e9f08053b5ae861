package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/testutil"
)

// writeSuite writes a suite file whose dataset is the shared fixture.
func writeSuite(t *testing.T, dir, body string) string {
	t.Helper()
	content := "name: temp\n" +
		"description: temporary suite\n" +
		"dataset: " + testutil.RepoPath("testdata", "datasets", "minimal.yaml") + "\n" +
		body
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadAndRun(t *testing.T, h *Harness, path string) *Result {
	t.Helper()
	suite, err := LoadSuite(path)
	require.NoError(t, err)
	result, err := h.Run(context.Background(), suite)
	require.NoError(t, err)
	return result
}

// TestCorpusSuites runs every suite under testdata/suites and compares each
// case against its golden snapshot.
func TestCorpusSuites(t *testing.T) {
	paths, err := Discover(testutil.RepoPath("testdata", "suites"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	h := New()
	for _, path := range paths {
		result := loadAndRun(t, h, path)
		for _, c := range result.Cases {
			t.Run(result.Suite+"/"+c.Name, func(t *testing.T) {
				assert.True(t, c.Pass, "case should pass: errors=%v", c.Errors)
				AssertGolden(t, result.Suite, c)
			})
		}
		assert.True(t, result.Pass)
		assert.Zero(t, result.Failed)
	}
}

func TestRun_Deterministic(t *testing.T) {
	path := testutil.RepoPath("testdata", "suites", "minimal.yaml")

	first := loadAndRun(t, New(), path)
	second := loadAndRun(t, New(), path)

	require.Equal(t, len(first.Cases), len(second.Cases))
	for i := range first.Cases {
		a, err := Snapshot(first.Cases[i].Name, first.Cases[i].Outcome)
		require.NoError(t, err)
		b, err := Snapshot(second.Cases[i].Name, second.Cases[i].Outcome)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), "case %s", first.Cases[i].Name)
	}
}

func TestRun_FailingAssertions(t *testing.T) {
	path := writeSuite(t, t.TempDir(), `
cases:
  - name: wrong_total
    query: "SELECT e/ehr_id/value AS ehr_id FROM EHR e"
    assertions:
      - type: total
        count: 7
      - type: columns
        names: [ehr_id]
`)

	result := loadAndRun(t, New(), path)

	require.Len(t, result.Cases, 1)
	c := result.Cases[0]
	assert.False(t, c.Pass)
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors[0], "Assertion failed: total")
	assert.Contains(t, c.Errors[0], "Expected: 7")
	assert.Contains(t, c.Errors[0], "Actual: 3")
	assert.False(t, result.Pass)
	assert.Equal(t, 1, result.Failed)
}

func TestRun_UnexpectedErrorFailsCase(t *testing.T) {
	path := writeSuite(t, t.TempDir(), `
cases:
  - name: broken
    query: "SELECT FROM"
    assertions:
      - type: row_count
        count: 0
`)

	result := loadAndRun(t, New(), path)

	c := result.Cases[0]
	assert.False(t, c.Pass)
	require.NotNil(t, c.Outcome)
	assert.Equal(t, "E_SYNTAX", c.Outcome.ErrorCode)
	assert.Contains(t, c.Errors[0], "successful execution")
}

func TestRun_Filter(t *testing.T) {
	path := testutil.RepoPath("testdata", "suites", "minimal.yaml")

	result := loadAndRun(t, New(WithFilter("ehr_*")), path)

	names := []string{}
	for _, c := range result.Cases {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"ehr_status", "ehr_by_id"}, names)
	assert.True(t, result.Pass)
}

func TestRun_InvalidFilter(t *testing.T) {
	suite, err := LoadSuite(testutil.RepoPath("testdata", "suites", "minimal.yaml"))
	require.NoError(t, err)

	_, err = New(WithFilter("[")).Run(context.Background(), suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid case filter")
}

func TestRun_MaxBindings(t *testing.T) {
	path := writeSuite(t, t.TempDir(), `
max_bindings: 4
cases:
  - name: too_many
    query: "SELECT c/uid/value FROM EHR e CONTAINS COMPOSITION c"
    assertions:
      - type: error
        code: E_QUOTA
  - name: within_quota
    query: "SELECT e/ehr_id/value FROM EHR e"
    assertions:
      - type: row_count
        count: 3
`)

	result := loadAndRun(t, New(), path)

	assert.True(t, result.Pass, "%+v", result.Cases)
	assert.Equal(t, 2, result.Passed)
}

func TestRun_LimitPolicy(t *testing.T) {
	path := writeSuite(t, t.TempDir(), `
cases:
  - name: default_limit
    query: "SELECT c/uid/value FROM EHR e CONTAINS COMPOSITION c"
    assertions:
      - type: row_count
        count: 2
      - type: total
        count: 6
  - name: over_max
    query: "SELECT c/uid/value FROM EHR e CONTAINS COMPOSITION c LIMIT 4"
    assertions:
      - type: error
        code: E_LIMIT
`)

	h := New(WithLimitPolicy(engine.LimitPolicy{MaxLimit: 3, DefaultLimit: 2}))
	result := loadAndRun(t, h, path)

	assert.True(t, result.Pass, "%+v", result.Cases)
}

func TestRun_Golden(t *testing.T) {
	dir := t.TempDir()
	goldenDir := filepath.Join(dir, "golden")
	path := writeSuite(t, dir, `
cases:
  - name: ehrs
    query: "SELECT e/ehr_id/value AS ehr_id FROM EHR e"
    assertions:
      - type: total
        count: 3
  - name: skipped
    query: "SELECT e/ehr_id/value AS ehr_id FROM EHR e"
    skip_golden: true
    assertions:
      - type: total
        count: 3
`)

	// Missing golden file fails the case.
	result := loadAndRun(t, New(WithGolden(Golden{Dir: goldenDir})), path)
	assert.False(t, result.Cases[0].Pass)
	assert.Contains(t, result.Cases[0].Errors[0], "does not exist")
	assert.True(t, result.Cases[1].Pass)

	// Update writes it.
	result = loadAndRun(t, New(WithGolden(Golden{Dir: goldenDir, Update: true})), path)
	assert.True(t, result.Pass)
	assert.FileExists(t, filepath.Join(goldenDir, "temp.ehrs.golden"))
	assert.NoFileExists(t, filepath.Join(goldenDir, "temp.skipped.golden"))

	// Now it matches.
	result = loadAndRun(t, New(WithGolden(Golden{Dir: goldenDir})), path)
	assert.True(t, result.Pass)

	// A changed golden file is a mismatch.
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "temp.ehrs.golden"), []byte("{}\n"), 0o644))
	result = loadAndRun(t, New(WithGolden(Golden{Dir: goldenDir})), path)
	assert.False(t, result.Cases[0].Pass)
	assert.Contains(t, result.Cases[0].Errors[0], "golden mismatch")
}

func TestRun_CancelledContext(t *testing.T) {
	suite, err := LoadSuite(testutil.RepoPath("testdata", "suites", "minimal.yaml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New().Run(ctx, suite)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_BadArchetypes(t *testing.T) {
	dir := t.TempDir()
	archetypes := filepath.Join(dir, "archetypes")
	require.NoError(t, os.Mkdir(archetypes, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(archetypes, "bad.cue"), []byte("archetype: {"), 0o644))

	path := writeSuite(t, dir, `
archetypes: archetypes
cases:
  - name: any
    query: "SELECT e FROM EHR e"
    assertions:
      - type: total
        count: 3
`)
	suite, err := LoadSuite(path)
	require.NoError(t, err)

	_, err = New().Run(context.Background(), suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load archetypes")
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	failing := writeSuite(t, dir, `
cases:
  - name: wrong
    query: "SELECT e/ehr_id/value FROM EHR e"
    assertions:
      - type: row_count
        count: 1
`)
	passing := testutil.RepoPath("testdata", "suites", "minimal.yaml")

	summary, err := New().RunAll(context.Background(), []string{passing, failing})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalSuites)
	assert.Equal(t, 13, summary.TotalCases)
	assert.Equal(t, 12, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Pass())
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, Failure{
		Suite:  "temp",
		Path:   failing,
		Case:   "wrong",
		Errors: summary.Failures[0].Errors,
	}, summary.Failures[0])
}

func TestRunAll_LoadError(t *testing.T) {
	_, err := New().RunAll(context.Background(), []string{filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}
