package record

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/aqlengine/internal/ir"
)

// Snapshot is an in-memory Source over a decoded Dataset.
//
// A Snapshot is immutable after construction and safe for concurrent use.
type Snapshot struct {
	ehrs         []EHR
	compositions map[string][]Composition // by EHR id, declared order
}

// NewSnapshot indexes a dataset. The dataset must not be modified afterwards.
func NewSnapshot(ds *Dataset) *Snapshot {
	s := &Snapshot{compositions: make(map[string][]Composition)}
	if ds == nil {
		return s
	}
	for _, rec := range ds.Records {
		s.ehrs = append(s.ehrs, rec.EHR)
		s.compositions[rec.EHR.ID] = rec.Compositions
	}
	return s
}

// Len returns the number of EHRs.
func (s *Snapshot) Len() int {
	return len(s.ehrs)
}

// EHRs implements Source.
func (s *Snapshot) EHRs(ctx context.Context) ([]EHR, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(s.ehrs), nil
}

// Compositions implements Source.
func (s *Snapshot) Compositions(ctx context.Context, ehrID, archetypeID string) ([]Composition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, ok := s.compositions[ehrID]
	if !ok {
		return nil, fmt.Errorf("ehr %s: %w", ehrID, ErrNotFound)
	}
	var out []Composition
	for _, c := range all {
		if archetypeID == "" || c.ArchetypeNodeID == archetypeID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Entries implements Source with a pre-order walk of parent.
func (s *Snapshot) Entries(ctx context.Context, parent ir.Object, rmType, archetypeID string) ([]ir.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Descendants(parent, rmType, archetypeID), nil
}
