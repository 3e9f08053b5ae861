package engine

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// Column describes one result column.
type Column struct {
	Name string `json:"name"` // Alias, or derived from the path
	Path string `json:"path"` // Canonical rendering of the select expression
}

// Row is one result row, aligned with Result.Columns. Missing values are
// ir.Null.
type Row []ir.Value

// MarshalJSON renders the row as a JSON array.
func (r Row) MarshalJSON() ([]byte, error) {
	return ir.List(r).MarshalJSON()
}

// Result is the paginated outcome of one evaluation.
type Result struct {
	ID       string   `json:"-"`                  // Execution id (also logged as query_id)
	Query    string   `json:"q"`                  // Query text as submitted
	Columns  []Column `json:"columns"`            // Output columns in SELECT order
	Rows     []Row    `json:"rows"`               // Rows after ordering and pagination
	Total    int      `json:"total"`              // Row count before pagination
	Warnings []string `json:"warnings,omitempty"` // Archetype validation warnings
}

// Records returns the rows as column-name to value maps.
func (r *Result) Records() []map[string]ir.Value {
	out := make([]map[string]ir.Value, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(map[string]ir.Value, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(row) {
				rec[col.Name] = row[j]
			} else {
				rec[col.Name] = ir.Null{}
			}
		}
		out[i] = rec
	}
	return out
}

// Columns derives the result columns of a query.
//
// The name is the alias, else the label of the final segment, else the
// variable. Repeated names get _2, _3, ... suffixes in SELECT order.
func Columns(q *queryir.Query) []Column {
	cols := make([]Column, len(q.Select))
	used := make(map[string]bool, len(q.Select))
	for i, item := range q.Select {
		name := item.Alias
		if name == "" {
			name = item.Path.Var
			if n := len(item.Path.Segments); n > 0 {
				name = item.Path.Segments[n-1].Label
			}
		}
		if used[name] {
			base := name
			for k := 2; used[name]; k++ {
				name = fmt.Sprintf("%s_%d", base, k)
			}
		}
		used[name] = true
		cols[i] = Column{Name: name, Path: item.Path.String()}
	}
	return cols
}

// projected is a row together with its ORDER BY keys.
type projected struct {
	row  Row
	keys []ir.Value
}

// project builds the cells and sort keys of one row.
func project(plan *Plan, s scope) projected {
	q := plan.Query
	p := projected{row: make(Row, len(q.Select))}
	for i, item := range q.Select {
		p.row[i] = ir.OrNull(s.path(plan, item.Path))
	}
	if len(q.OrderBy) > 0 {
		p.keys = make([]ir.Value, len(q.OrderBy))
		for i, o := range q.OrderBy {
			p.keys[i] = ir.OrNull(s.path(plan, o.Path))
		}
	}
	return p
}

// sortRows orders rows by the query's ORDER BY keys. The sort is stable, so
// rows with equal keys keep planner order.
func sortRows(rows []projected, order []queryir.OrderItem) {
	if len(order) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b projected) int {
		for i, o := range order {
			c := compareKeys(a.keys[i], b.keys[i], o.Descending)
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// compareKeys orders two sort keys. Nulls sort last in both directions.
// Values without a natural order (booleans, mixed kinds, objects) fall back
// to kind order, then to their canonical JSON, so the order is total.
func compareKeys(a, b ir.Value, desc bool) int {
	aNull, bNull := ir.IsNull(ir.Leaf(a)), ir.IsNull(ir.Leaf(b))
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return 1
	case bNull:
		return -1
	}

	c, ok := ir.Compare(a, b)
	if !ok {
		c = fallbackCompare(ir.Leaf(a), ir.Leaf(b))
	}
	if desc {
		return -c
	}
	return c
}

func fallbackCompare(a, b ir.Value) int {
	if ka, kb := ir.KindOf(a), ir.KindOf(b); ka != kb {
		return int(ka) - int(kb)
	}
	ca, errA := ir.MarshalCanonical(a)
	cb, errB := ir.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return 0
	}
	return bytes.Compare(ca, cb)
}
