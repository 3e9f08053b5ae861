package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/aqlengine/internal/ir"
)

// Select is a single-table read against the record store.
type Select struct {
	From    string
	Columns []string // empty selects *
	Filter  Predicate
	OrderBy []string // at least one column; ties break on the last one
}

// Predicate is a WHERE clause fragment. Sealed.
type Predicate interface {
	predicate()
}

// Equals matches rows whose column equals a bound value.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicate() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicate() {}

// SQLCompiler compiles Select reads to parameterized SQL for SQLite.
//
// CRITICAL: every statement carries an ORDER BY with COLLATE BINARY so result
// order never depends on the query plan SQLite picks.
// CRITICAL: values are always bound as ? parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a Select to parameterized SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(q Select) (string, []any, error) {
	if !isIdent(q.From) {
		return "", nil, fmt.Errorf("invalid table name %q", q.From)
	}
	if len(q.OrderBy) == 0 {
		return "", nil, fmt.Errorf("select from %s: ORDER BY is mandatory", q.From)
	}

	columns, err := c.compileColumns(q.Columns)
	if err != nil {
		return "", nil, err
	}

	var where string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = " WHERE " + filterSQL
		params = filterParams
	}

	order, err := c.stableOrderKey(q.OrderBy)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", columns, q.From, where, order)
	return sql, params, nil
}

// compileColumns renders the select list in the order given.
func (c *SQLCompiler) compileColumns(columns []string) (string, error) {
	if len(columns) == 0 {
		return "*", nil
	}
	for _, col := range columns {
		if !isIdent(col) {
			return "", fmt.Errorf("invalid column name %q", col)
		}
	}
	return strings.Join(columns, ", "), nil
}

// stableOrderKey returns the ORDER BY clause body.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func (c *SQLCompiler) stableOrderKey(columns []string) (string, error) {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		if !isIdent(col) {
			return "", fmt.Errorf("invalid order column %q", col)
		}
		parts = append(parts, col+" COLLATE BINARY ASC")
	}
	return strings.Join(parts, ", "), nil
}

// compilePredicate compiles a Predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return c.compileEquals(pred)
	case *Equals:
		return c.compileEquals(*pred)
	case And:
		return c.compileAnd(pred)
	case *And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq Equals) (string, []any, error) {
	if !isIdent(eq.Field) {
		return "", nil, fmt.Errorf("invalid column name %q", eq.Field)
	}
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", eq.Field, err)
	}
	if param == nil {
		return eq.Field + " IS NULL", nil, nil
	}
	return eq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// valueToParam converts a Value to the Go type the sqlite3 driver binds.
// Integral numbers bind as int64; other numbers bind as their exact decimal
// text. Lists and objects have no column form.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Number:
		if n, ok := val.Int64(); ok {
			return n, nil
		}
		return val.String(), nil
	case ir.Bool:
		return bool(val), nil
	case ir.List, ir.Object:
		return nil, fmt.Errorf("%s cannot be used as SQL parameter", ir.KindOf(v))
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

// isIdent reports whether s is a bare SQL identifier.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
