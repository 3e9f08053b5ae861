package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// Suite is a set of query cases evaluated against one dataset.
type Suite struct {
	// Name uniquely identifies this suite. Golden files are named
	// {suite}.{case}.golden.
	Name string `yaml:"name"`

	// Description explains what this suite covers.
	Description string `yaml:"description"`

	// Dataset is the record fixture the cases run against.
	// Relative paths resolve against the suite file's directory.
	Dataset string `yaml:"dataset"`

	// Archetypes is an optional directory of .cue archetype definitions.
	// When set, cases also report archetype validation warnings.
	Archetypes string `yaml:"archetypes,omitempty"`

	// MaxBindings caps candidate bindings per query (0 = unbounded).
	MaxBindings int `yaml:"max_bindings,omitempty"`

	// Cases run in file order.
	Cases []Case `yaml:"cases"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-"`
}

// Case is one query evaluation with assertions on its outcome.
type Case struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Query is the AQL text.
	Query string `yaml:"query"`

	// Params holds $name values. Numbers keep their exact decimal text.
	Params map[string]yaml.Node `yaml:"params,omitempty"`

	// Offset and Fetch override the query's OFFSET and LIMIT.
	Offset *int `yaml:"offset,omitempty"`
	Fetch  *int `yaml:"fetch,omitempty"`

	// SkipGolden excludes the case from golden comparison.
	SkipGolden bool `yaml:"skip_golden,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a case outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "total": Total row count before pagination equals Count
	// - "row_count": Returned row count equals Count
	// - "columns": Column names equal Names
	// - "contains_row": Some row matches Row (subset match by column)
	// - "column_values": Column holds exactly Values, in order
	// - "error": Execution failed with Code
	// - "warning": Some warning carries Code
	Type string `yaml:"type"`

	Count  int                  `yaml:"count,omitempty"`
	Names  []string             `yaml:"names,omitempty"`
	Row    map[string]yaml.Node `yaml:"row,omitempty"`
	Column string               `yaml:"column,omitempty"`
	Values []yaml.Node          `yaml:"values,omitempty"`
	Code   string               `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertTotal        = "total"
	AssertRowCount     = "row_count"
	AssertColumns      = "columns"
	AssertContainsRow  = "contains_row"
	AssertColumnValues = "column_values"
	AssertError        = "error"
	AssertWarning      = "warning"
)

// LoadSuite reads and parses a suite YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// Dataset and archetype paths are resolved against the suite's directory.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	suite.Path = path
	suite.Dataset = resolve(base, suite.Dataset)
	suite.Archetypes = resolve(base, suite.Archetypes)

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return &suite, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateSuite checks that required fields are present and valid.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if _, err := os.Stat(s.Dataset); os.IsNotExist(err) {
		return fmt.Errorf("dataset not found: %s", s.Dataset)
	}
	if s.Archetypes != "" {
		if _, err := os.Stat(s.Archetypes); os.IsNotExist(err) {
			return fmt.Errorf("archetypes directory not found: %s", s.Archetypes)
		}
	}
	if s.MaxBindings < 0 {
		return fmt.Errorf("max_bindings must be non-negative")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Query == "" {
			return fmt.Errorf("cases[%d]: query is required", i)
		}
		if len(c.Assertions) == 0 {
			return fmt.Errorf("cases[%d]: assertions list is required and must be non-empty", i)
		}
		for j := range c.Assertions {
			if err := validateAssertion(i, j, &c.Assertions[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(caseIdx, index int, a *Assertion) error {
	prefix := fmt.Sprintf("cases[%d].assertions[%d]", caseIdx, index)
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", prefix)
	}

	switch a.Type {
	case AssertTotal, AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for %s", prefix, a.Type)
		}
	case AssertColumns:
		if len(a.Names) == 0 {
			return fmt.Errorf("%s: names list is required for columns", prefix)
		}
	case AssertContainsRow:
		if len(a.Row) == 0 {
			return fmt.Errorf("%s: row is required for contains_row", prefix)
		}
	case AssertColumnValues:
		if a.Column == "" {
			return fmt.Errorf("%s: column is required for column_values", prefix)
		}
	case AssertError, AssertWarning:
		if a.Code == "" {
			return fmt.Errorf("%s: code is required for %s", prefix, a.Type)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", prefix, a.Type)
	}
	return nil
}

// params converts the case's YAML parameters to values.
func (c *Case) params() (map[string]ir.Value, error) {
	if len(c.Params) == 0 {
		return nil, nil
	}
	out := make(map[string]ir.Value, len(c.Params))
	for name, node := range c.Params {
		v, err := record.ValueFromNode(&node)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
