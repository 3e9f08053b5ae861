package engine

import (
	"context"
	"fmt"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// runner executes one plan. Its fields are read-only during evaluation, so
// one runner serves every EHR task of an Execute call.
type runner struct {
	source record.Source
	plan   *Plan
	bind   *Bindings
	eval   *evaluator
	quota  *bindingQuota
	id     string
}

// ehr evaluates the plan beneath one EHR and returns its rows in planner
// order.
func (r *runner) ehr(ctx context.Context, ehr record.EHR) ([]projected, error) {
	if !matchFilter(r.plan.Scans[0].Filter, ehr.Body, r.bind) {
		return nil, nil
	}
	if err := r.quota.check(r.id, 1); err != nil {
		return nil, err
	}
	var out []projected
	if err := r.descend(ctx, ehr, scope{ehr.Body}, 1, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// descend binds plan level `level` beneath s. At the last level the WHERE
// predicate decides whether s becomes a row.
func (r *runner) descend(ctx context.Context, ehr record.EHR, s scope, level int, out *[]projected) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if level == len(r.plan.Scans) {
		if r.eval.eval(r.plan.Query.Where, s) {
			*out = append(*out, project(r.plan, s))
		}
		return nil
	}

	candidates, err := r.candidates(ctx, ehr, s, level)
	if err != nil {
		return err
	}
	if err := r.quota.check(r.id, len(candidates)); err != nil {
		return err
	}
	for _, node := range candidates {
		if err := r.descend(ctx, ehr, s.extend(node), level+1, out); err != nil {
			return err
		}
	}
	return nil
}

// candidates lists the nodes plan level `level` binds beneath s, with the
// step filter applied. The archetype id is pushed down to the source; the
// filter is re-checked here so node filters and sources that ignore the
// pushdown behave the same.
func (r *runner) candidates(ctx context.Context, ehr record.EHR, s scope, level int) ([]ir.Object, error) {
	scan := r.plan.Scans[level]
	archID, ok := archetypeID(scan.Filter, r.bind)
	if !ok {
		return nil, nil
	}

	var nodes []ir.Object
	switch scan.Kind {
	case ScanStatus:
		if status := ehr.Status(); status != nil {
			nodes = []ir.Object{status}
		}
	case ScanCompositions:
		comps, err := r.source.Compositions(ctx, ehr.ID, archID)
		if err != nil {
			return nil, fmt.Errorf("compositions of EHR %s: %w", ehr.ID, err)
		}
		nodes = make([]ir.Object, len(comps))
		for i, c := range comps {
			nodes[i] = c.Body
		}
	case ScanDescendants:
		entries, err := r.source.Entries(ctx, s[len(s)-1], scan.Type, archID)
		if err != nil {
			return nil, fmt.Errorf("%s entries of EHR %s: %w", scan.Type, ehr.ID, err)
		}
		nodes = entries
	default:
		return nil, fmt.Errorf("unexpected %s scan at level %d", scan.Kind, level)
	}

	if scan.Filter == nil {
		return nodes, nil
	}
	kept := nodes[:0:0]
	for _, n := range nodes {
		if matchFilter(scan.Filter, n, r.bind) {
			kept = append(kept, n)
		}
	}
	return kept, nil
}
