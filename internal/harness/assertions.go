package harness

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the outcome and returns
// the failure messages. An outcome that failed with an error code only
// satisfies error assertions; every other assertion then fails.
func EvaluateAssertions(o *Outcome, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(o, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(o *Outcome, a Assertion) error {
	if a.Type == AssertError {
		return assertError(o, a)
	}
	if o.ErrorCode != "" || o.Error != "" {
		return &AssertionError{
			Type:     a.Type,
			Expected: "successful execution",
			Actual:   o.Error,
		}
	}

	switch a.Type {
	case AssertTotal:
		return assertCount(a.Type, o.Total, a.Count)
	case AssertRowCount:
		return assertCount(a.Type, len(o.Rows), a.Count)
	case AssertColumns:
		return assertColumns(o, a)
	case AssertContainsRow:
		return assertContainsRow(o, a)
	case AssertColumnValues:
		return assertColumnValues(o, a)
	case AssertWarning:
		return assertWarning(o, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCount(typ string, actual, expected int) error {
	if actual != expected {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%d", expected),
			Actual:   fmt.Sprintf("%d", actual),
		}
	}
	return nil
}

func assertColumns(o *Outcome, a Assertion) error {
	if !slices.Equal(o.Columns, a.Names) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", a.Names),
			Actual:   fmt.Sprintf("%v", o.Columns),
		}
	}
	return nil
}

// assertContainsRow checks that some row matches every listed column.
// Columns not listed are ignored. Values compare with ir.Equal, so a data
// value object matches its leaf.
func assertContainsRow(o *Outcome, a Assertion) error {
	want := make(map[string]ir.Value, len(a.Row))
	for col, node := range a.Row {
		v, err := record.ValueFromNode(&node)
		if err != nil {
			return fmt.Errorf("row.%s: %w", col, err)
		}
		want[col] = v
	}

	index := make(map[string]int, len(o.Columns))
	for i, c := range o.Columns {
		index[c] = i
	}

	for _, row := range o.Rows {
		if rowMatches(row, index, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("a row matching %s", render(ir.Object(want))),
		Actual:   fmt.Sprintf("no match in %d rows", len(o.Rows)),
	}
}

func rowMatches(row []ir.Value, index map[string]int, want map[string]ir.Value) bool {
	for col, expected := range want {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return false
		}
		if eq, _ := ir.Equal(row[i], expected); !eq {
			return false
		}
	}
	return true
}

func assertColumnValues(o *Outcome, a Assertion) error {
	actual := o.Column(a.Column)
	if actual == nil && !slices.Contains(o.Columns, a.Column) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("column %s", a.Column),
			Actual:   fmt.Sprintf("columns %v", o.Columns),
		}
	}

	want, err := nodeValues(a.Values)
	if err != nil {
		return fmt.Errorf("values: %w", err)
	}

	mismatch := len(actual) != len(want)
	for i := 0; !mismatch && i < len(want); i++ {
		eq, _ := ir.Equal(actual[i], want[i])
		mismatch = !eq
	}
	if mismatch {
		return &AssertionError{
			Type:     a.Type,
			Expected: render(ir.List(want)),
			Actual:   render(ir.List(actual)),
		}
	}
	return nil
}

func assertError(o *Outcome, a Assertion) error {
	if o.ErrorCode == a.Code {
		return nil
	}
	actual := "success"
	if o.Error != "" {
		actual = o.Error
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: a.Code,
		Actual:   actual,
	}
}

func assertWarning(o *Outcome, a Assertion) error {
	for _, w := range o.Warnings {
		if strings.Contains(w, a.Code) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("a %s warning", a.Code),
		Actual:   fmt.Sprintf("%v", o.Warnings),
	}
}

func nodeValues(nodes []yaml.Node) ([]ir.Value, error) {
	out := make([]ir.Value, len(nodes))
	for i := range nodes {
		v, err := record.ValueFromNode(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// render formats a value as JSON for failure messages.
func render(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
