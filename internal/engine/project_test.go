package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aqlengine/internal/aql"
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

func TestColumns(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "alias", query: "SELECT c/uid/value AS uid FROM EHR e CONTAINS COMPOSITION c", want: []string{"uid"}},
		{name: "last segment", query: "SELECT c/name/value FROM EHR e CONTAINS COMPOSITION c", want: []string{"value"}},
		{name: "node id segment", query: "SELECT o/data[at0001] FROM EHR e CONTAINS OBSERVATION o", want: []string{"data"}},
		{name: "variable", query: "SELECT c FROM EHR e CONTAINS COMPOSITION c", want: []string{"c"}},
		{
			name:  "duplicates suffixed in order",
			query: "SELECT e/ehr_id/value, c/uid/value, c/name/value FROM EHR e CONTAINS COMPOSITION c",
			want:  []string{"value", "value_2", "value_3"},
		},
		{
			name:  "suffix skips taken names",
			query: "SELECT c/uid/value AS value_2, c/name/value, e/ehr_id/value FROM EHR e CONTAINS COMPOSITION c",
			want:  []string{"value_2", "value", "value_3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := aql.Parse(tt.query)
			require.NoError(t, err)

			var names []string
			for _, c := range Columns(q) {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestColumns_Path(t *testing.T) {
	q, err := aql.Parse("SELECT o/data[at0001]/events[at0002]/time/value AS t FROM EHR e CONTAINS OBSERVATION o")
	require.NoError(t, err)

	assert.Equal(t, []Column{{Name: "t", Path: "o/data[at0001]/events[at0002]/time/value"}}, Columns(q))
}

func TestCompareKeys(t *testing.T) {
	tests := []struct {
		name string
		a, b ir.Value
		desc bool
		want int
	}{
		{name: "numbers asc", a: ir.Int(1), b: ir.Int(2), want: -1},
		{name: "numbers desc", a: ir.Int(1), b: ir.Int(2), desc: true, want: 1},
		{name: "null last asc", a: ir.Null{}, b: ir.Int(2), want: 1},
		{name: "null last desc", a: ir.Null{}, b: ir.Int(2), desc: true, want: 1},
		{name: "both null", a: ir.Null{}, b: nil, want: 0},
		{name: "mixed kinds by kind order", a: ir.Int(9), b: ir.String("a"), want: 1},
		{name: "bools by canonical form", a: ir.Bool(false), b: ir.Bool(true), want: -1},
		{name: "data value leaf", a: ir.NewObject(ir.O("_type", ir.String("DV_COUNT")), ir.O("magnitude", ir.Int(5))), b: ir.Int(4), want: 1},
		{name: "data value with null leaf sorts last", a: ir.NewObject(ir.O("_type", ir.String("DV_TEXT"))), b: ir.String("z"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compareKeys(tt.a, tt.b, tt.desc)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestSortRows_Stable(t *testing.T) {
	rows := []projected{
		{row: Row{ir.String("a")}, keys: []ir.Value{ir.Int(2)}},
		{row: Row{ir.String("b")}, keys: []ir.Value{ir.Int(1)}},
		{row: Row{ir.String("c")}, keys: []ir.Value{ir.Int(2)}},
		{row: Row{ir.String("d")}, keys: []ir.Value{ir.Null{}}},
		{row: Row{ir.String("e")}, keys: []ir.Value{ir.Int(1)}},
	}

	sortRows(rows, []queryir.OrderItem{{Descending: true}})

	var got []ir.Value
	for _, r := range rows {
		got = append(got, r.row[0])
	}
	assert.Equal(t, []ir.Value{ir.String("a"), ir.String("c"), ir.String("b"), ir.String("e"), ir.String("d")}, got)
}

func TestResult_JSON(t *testing.T) {
	res := &Result{
		ID:      "q-1",
		Query:   "SELECT c/uid/value AS uid FROM COMPOSITION c",
		Columns: []Column{{Name: "uid", Path: "c/uid/value"}, {Name: "n", Path: "c/n"}},
		Rows:    []Row{{ir.String("x"), ir.MustNumber("1.50")}, {ir.Null{}, nil}},
		Total:   7,
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"q": "SELECT c/uid/value AS uid FROM COMPOSITION c",
		"columns": [{"name": "uid", "path": "c/uid/value"}, {"name": "n", "path": "c/n"}],
		"rows": [["x", 1.50], [null, null]],
		"total": 7
	}`, string(data))
	assert.Contains(t, string(data), "1.50", "numbers keep their scale")
	assert.NotContains(t, string(data), "q-1", "the execution id is not serialized")
}

func TestResult_Records(t *testing.T) {
	res := &Result{
		Columns: []Column{{Name: "a"}, {Name: "b"}},
		Rows:    []Row{{ir.String("x")}},
	}

	recs := res.Records()

	require.Len(t, recs, 1)
	assert.Equal(t, ir.String("x"), recs[0]["a"])
	assert.Equal(t, ir.Null{}, recs[0]["b"], "short rows pad with null")
}
