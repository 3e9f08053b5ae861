package harness

import (
	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/ir"
)

// Outcome is what one case produced: either a result or an error code.
type Outcome struct {
	Columns   []string     `json:"columns"`
	Rows      [][]ir.Value `json:"rows"`
	Total     int          `json:"total"`
	Warnings  []string     `json:"warnings,omitempty"`
	ErrorCode string       `json:"error_code,omitempty"` // Set when execution failed
	Error     string       `json:"error,omitempty"`
}

// newOutcome converts an engine result.
func newOutcome(res *engine.Result) *Outcome {
	out := &Outcome{
		Columns:  make([]string, len(res.Columns)),
		Rows:     make([][]ir.Value, len(res.Rows)),
		Total:    res.Total,
		Warnings: res.Warnings,
	}
	for i, c := range res.Columns {
		out.Columns[i] = c.Name
	}
	for i, row := range res.Rows {
		out.Rows[i] = row
	}
	return out
}

// Column returns the values of the named column, or nil when the column
// does not exist.
func (o *Outcome) Column(name string) []ir.Value {
	idx := -1
	for i, c := range o.Columns {
		if c == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	vals := make([]ir.Value, len(o.Rows))
	for i, row := range o.Rows {
		if idx < len(row) {
			vals[i] = row[idx]
		} else {
			vals[i] = ir.Null{}
		}
	}
	return vals
}

// CaseResult is the outcome of one case and its assertion failures.
type CaseResult struct {
	// Name is the case name.
	Name string `json:"name"`

	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Outcome is nil only when the case could not be prepared, for example
	// a parameter that does not convert.
	Outcome *Outcome `json:"outcome,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// AddError adds a failure message and marks the case as failed.
func (r *CaseResult) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Result is the outcome of a suite.
type Result struct {
	Suite  string        `json:"suite"`
	Pass   bool          `json:"pass"`
	Cases  []*CaseResult `json:"cases"`
	Passed int           `json:"passed"`
	Failed int           `json:"failed"`
}

// NewResult creates a new passing suite result.
func NewResult(suite string) *Result {
	return &Result{
		Suite: suite,
		Pass:  true,
		Cases: []*CaseResult{},
	}
}

// add records a finished case.
func (r *Result) add(c *CaseResult) {
	r.Cases = append(r.Cases, c)
	if c.Pass {
		r.Passed++
		return
	}
	r.Failed++
	r.Pass = false
}
