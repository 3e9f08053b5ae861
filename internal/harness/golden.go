package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/aqlengine/internal/ir"
)

// GoldenSuffix is the golden file extension.
const GoldenSuffix = ".golden"

// Snapshot renders a case outcome for golden comparison.
//
// The snapshot is indented JSON with sorted keys. Numbers keep the text they
// were stored with, so 37.50 stays 37.50. Error outcomes record the code
// only; messages carry positions that are not part of the contract.
func Snapshot(name string, o *Outcome) ([]byte, error) {
	columns := make(ir.List, len(o.Columns))
	for i, c := range o.Columns {
		columns[i] = ir.String(c)
	}
	rows := make(ir.List, len(o.Rows))
	for i, row := range o.Rows {
		rows[i] = ir.List(row)
	}

	snap := ir.Object{
		"case":    ir.String(name),
		"columns": columns,
		"rows":    rows,
		"total":   ir.Int(int64(o.Total)),
	}
	if len(o.Warnings) > 0 {
		warnings := make(ir.List, len(o.Warnings))
		for i, w := range o.Warnings {
			warnings[i] = ir.String(w)
		}
		snap["warnings"] = warnings
	}
	if o.ErrorCode != "" {
		snap["error"] = ir.String(o.ErrorCode)
	}

	data, err := ir.MarshalValue(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// GoldenName is the golden file name of a case, without suffix.
func GoldenName(suite, caseName string) string {
	return suite + "." + caseName
}

// GoldenMismatchError reports a snapshot that differs from its golden file.
type GoldenMismatchError struct {
	Path     string
	Expected []byte
	Actual   []byte
}

// Error implements the error interface.
func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("golden mismatch %s\n--- expected\n%s--- actual\n%s", e.Path, e.Expected, e.Actual)
}

// Golden compares snapshots against files in Dir, or rewrites them when
// Update is set. Used by `aql test`; tests use AssertGolden.
type Golden struct {
	Dir    string
	Update bool
}

// Path returns the golden file path for name.
func (g Golden) Path(name string) string {
	return filepath.Join(g.Dir, name+GoldenSuffix)
}

// Check compares actual with the golden file for name.
func (g Golden) Check(name string, actual []byte) error {
	path := g.Path(name)
	if g.Update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, actual, 0o644); err != nil {
			return fmt.Errorf("write golden: %w", err)
		}
		return nil
	}

	expected, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("golden file %s does not exist (run with --update to create it)", path)
	}
	if err != nil {
		return fmt.Errorf("read golden: %w", err)
	}
	if !bytes.Equal(expected, actual) {
		return &GoldenMismatchError{Path: path, Expected: expected, Actual: actual}
	}
	return nil
}

// AssertGolden compares a case snapshot against
// testdata/golden/{suite}.{case}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, suite string, c *CaseResult) {
	t.Helper()

	if c.Outcome == nil {
		t.Fatalf("case %s has no outcome: %v", c.Name, c.Errors)
	}
	snap, err := Snapshot(c.Name, c.Outcome)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, GoldenName(suite, c.Name), snap)
}
