package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/querysql"
	"github.com/roach88/aqlengine/internal/record"
)

var _ record.Source = (*Store)(nil)

var (
	ehrColumns         = []string{"ehr_id", "system_id", "time_created", "body"}
	compositionColumns = []string{"uid", "ehr_id", "archetype_node_id", "template_id", "body"}
	bySeq              = []string{"seq"}
)

// EHRs implements record.Source. Results are in import order.
func (s *Store) EHRs(ctx context.Context) ([]record.EHR, error) {
	rows, err := s.query(ctx, querysql.Select{From: "ehrs", Columns: ehrColumns, OrderBy: bySeq})
	if err != nil {
		return nil, fmt.Errorf("query ehrs: %w", err)
	}
	defer rows.Close()

	ehrs := []record.EHR{}
	for rows.Next() {
		e, err := scanEHR(rows)
		if err != nil {
			return nil, err
		}
		ehrs = append(ehrs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ehrs: %w", err)
	}
	return ehrs, nil
}

// Compositions implements record.Source. The archetype filter is pushed into
// the WHERE clause. An unknown EHR returns record.ErrNotFound.
func (s *Store) Compositions(ctx context.Context, ehrID, archetypeID string) ([]record.Composition, error) {
	filter := querysql.And{Predicates: []querysql.Predicate{
		querysql.Equals{Field: "ehr_id", Value: ir.String(ehrID)},
	}}
	if archetypeID != "" {
		filter.Predicates = append(filter.Predicates,
			querysql.Equals{Field: "archetype_node_id", Value: ir.String(archetypeID)})
	}

	comps, err := s.readCompositions(ctx, querysql.Select{
		From:    "compositions",
		Columns: compositionColumns,
		Filter:  filter,
		OrderBy: bySeq,
	})
	if err != nil {
		return nil, err
	}

	if len(comps) == 0 {
		ok, err := s.hasEHR(ctx, ehrID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("ehr %s: %w", ehrID, record.ErrNotFound)
		}
	}
	return comps, nil
}

// Entries implements record.Source. Composition bodies are stored whole, so
// the walk runs in memory over the already decoded parent.
func (s *Store) Entries(ctx context.Context, parent ir.Object, rmType, archetypeID string) ([]ir.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return record.Descendants(parent, rmType, archetypeID), nil
}

func (s *Store) readCompositions(ctx context.Context, q querysql.Select) ([]record.Composition, error) {
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query compositions: %w", err)
	}
	defer rows.Close()

	comps := []record.Composition{}
	for rows.Next() {
		c, err := scanComposition(rows)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compositions: %w", err)
	}
	return comps, nil
}

func (s *Store) hasEHR(ctx context.Context, ehrID string) (bool, error) {
	rows, err := s.query(ctx, querysql.Select{
		From:    "ehrs",
		Columns: []string{"ehr_id"},
		Filter:  querysql.Equals{Field: "ehr_id", Value: ir.String(ehrID)},
		OrderBy: bySeq,
	})
	if err != nil {
		return false, fmt.Errorf("lookup ehr %s: %w", ehrID, err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("lookup ehr %s: %w", ehrID, err)
	}
	return found, nil
}

func (s *Store) query(ctx context.Context, q querysql.Select) (*sql.Rows, error) {
	stmt, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, stmt, params...)
}

// scanEHR scans a row into an EHR.
func scanEHR(rows *sql.Rows) (record.EHR, error) {
	var e record.EHR
	var bodyJSON string

	if err := rows.Scan(&e.ID, &e.SystemID, &e.TimeCreated, &bodyJSON); err != nil {
		return record.EHR{}, fmt.Errorf("scan ehr: %w", err)
	}

	body, err := unmarshalBody(bodyJSON)
	if err != nil {
		return record.EHR{}, fmt.Errorf("ehr %s: %w", e.ID, err)
	}
	e.Body = body
	return e, nil
}

// scanComposition scans a row into a Composition.
func scanComposition(rows *sql.Rows) (record.Composition, error) {
	var c record.Composition
	var bodyJSON string

	if err := rows.Scan(&c.UID, &c.EHRID, &c.ArchetypeNodeID, &c.TemplateID, &bodyJSON); err != nil {
		return record.Composition{}, fmt.Errorf("scan composition: %w", err)
	}

	body, err := unmarshalBody(bodyJSON)
	if err != nil {
		return record.Composition{}, fmt.Errorf("composition %s: %w", c.UID, err)
	}
	c.Body = body
	return c, nil
}
