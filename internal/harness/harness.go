package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/roach88/aqlengine/internal/archetype"
	"github.com/roach88/aqlengine/internal/engine"
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/record"
)

// Harness runs query suites.
//
// Each suite gets its own engine over a fresh in-memory snapshot of its
// dataset, so suites never observe each other. Execution ids are fixed, and
// cases run one after another in file order, so identical suites produce
// identical outcomes.
type Harness struct {
	log    zerolog.Logger
	filter string  // doublestar pattern over case names ("" = all)
	golden *Golden // nil = no golden comparison
	limits engine.LimitPolicy
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(log zerolog.Logger) Option {
	return func(h *Harness) {
		h.log = log
	}
}

// WithFilter runs only cases whose name matches the doublestar pattern,
// for example "observation_*".
func WithFilter(pattern string) Option {
	return func(h *Harness) {
		h.filter = pattern
	}
}

// WithGolden compares every case snapshot against g, unless the case sets
// skip_golden.
func WithGolden(g Golden) Option {
	return func(h *Harness) {
		h.golden = &g
	}
}

// WithLimitPolicy applies a pagination policy to every case.
func WithLimitPolicy(p engine.LimitPolicy) Option {
	return func(h *Harness) {
		h.limits = p
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes every selected case of a suite.
//
// Execution flow:
// 1. Load the dataset into an in-memory snapshot
// 2. Load the archetype repository, if the suite names one
// 3. Execute each case and convert its result or error code to an Outcome
// 4. Evaluate assertions and, when configured, compare the golden snapshot
//
// Returns an error only when the suite cannot be prepared. Case failures are
// reported in the Result.
func (h *Harness) Run(ctx context.Context, s *Suite) (*Result, error) {
	if h.filter != "" && !doublestar.ValidatePattern(h.filter) {
		return nil, fmt.Errorf("invalid case filter %q", h.filter)
	}

	eng, err := h.engineFor(s)
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", s.Name, err)
	}

	result := NewResult(s.Name)
	for i := range s.Cases {
		c := &s.Cases[i]
		if !h.selected(c.Name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cr := h.runCase(ctx, eng, s.Name, c)
		result.add(cr)

		h.log.Debug().
			Str("suite", s.Name).
			Str("case", c.Name).
			Bool("pass", cr.Pass).
			Int("errors", len(cr.Errors)).
			Msg("case completed")
	}
	return result, nil
}

func (h *Harness) engineFor(s *Suite) (*engine.Engine, error) {
	ds, err := record.LoadDataset(s.Dataset, nil)
	if err != nil {
		return nil, err
	}

	opts := []engine.EngineOption{
		engine.WithLogger(h.log),
		engine.WithIDGenerator(engine.NewFixedGenerator(s.Name)),
		engine.WithLimitPolicy(h.limits),
		engine.WithMaxBindings(s.MaxBindings),
	}
	if s.Archetypes != "" {
		repo, errs := archetype.Load(s.Archetypes, archetype.LoadModeCollectAll)
		if len(errs) > 0 {
			return nil, fmt.Errorf("load archetypes: %w", errors.Join(errs...))
		}
		opts = append(opts, engine.WithArchetypes(repo))
	}
	return engine.New(record.NewSnapshot(ds), opts...), nil
}

func (h *Harness) selected(name string) bool {
	if h.filter == "" {
		return true
	}
	ok, err := doublestar.Match(h.filter, name)
	return err == nil && ok
}

func (h *Harness) runCase(ctx context.Context, eng *engine.Engine, suite string, c *Case) *CaseResult {
	cr := &CaseResult{Name: c.Name, Pass: true}

	params, err := c.params()
	if err != nil {
		cr.AddError(err.Error())
		return cr
	}

	res, err := eng.Execute(ctx, engine.Request{
		Query:  c.Query,
		Params: params,
		Offset: c.Offset,
		Fetch:  c.Fetch,
	})
	if err != nil {
		code := engine.CodeOf(err)
		if code == "" {
			cr.AddError(fmt.Sprintf("execution failed: %v", err))
			return cr
		}
		cr.Outcome = &Outcome{Columns: []string{}, Rows: [][]ir.Value{}, ErrorCode: code, Error: err.Error()}
	} else {
		cr.Outcome = newOutcome(res)
	}

	for _, msg := range EvaluateAssertions(cr.Outcome, c.Assertions) {
		cr.AddError(msg)
	}

	if h.golden != nil && !c.SkipGolden {
		snap, err := Snapshot(c.Name, cr.Outcome)
		if err == nil {
			err = h.golden.Check(GoldenName(suite, c.Name), snap)
		}
		if err != nil {
			cr.AddError(err.Error())
		}
	}
	return cr
}
