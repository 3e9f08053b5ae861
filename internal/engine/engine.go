package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/aqlengine/internal/aql"
	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
	"github.com/roach88/aqlengine/internal/record"
)

// DefaultWorkers is the default number of EHRs evaluated concurrently.
const DefaultWorkers = 4

// Request is one query evaluation.
type Request struct {
	Query  string              // AQL text
	Params map[string]ir.Value // Values for $name placeholders
	Offset *int                // Rows to skip (nil = query OFFSET or 0)
	Fetch  *int                // Rows to return (nil = query LIMIT or all)
}

// Engine evaluates AQL queries against a record source.
//
// Thread-safety model:
//   - Execute and Explain are safe from any goroutine
//   - each Execute runs its EHRs on up to Workers goroutines and reassembles
//     their rows in EHR order, so results never depend on scheduling
//
// INVARIANTS:
//   - the engine never writes to the source
//   - parsing, binding and limit checks finish before any record is read
//   - a cancelled or failed evaluation returns no rows
type Engine struct {
	source      record.Source
	log         zerolog.Logger
	metrics     *Metrics
	schema      queryir.Schema
	limits      LimitPolicy
	ids         IDGenerator
	workers     int
	maxBindings int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithMetrics reports query metrics to m. Default: none.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithWorkers sets how many EHRs are evaluated concurrently.
//
// Default: 4 (DefaultWorkers). Values below 1 select 1.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		e.workers = max(n, 1)
	}
}

// WithArchetypes enables archetype validation: unknown archetypes, RM type
// mismatches and unknown at-codes become Result.Warnings.
func WithArchetypes(schema queryir.Schema) EngineOption {
	return func(e *Engine) {
		e.schema = schema
	}
}

// WithLimitPolicy sets the pagination policy. Default: the zero policy,
// which imposes nothing.
func WithLimitPolicy(p LimitPolicy) EngineOption {
	return func(e *Engine) {
		e.limits = p
	}
}

// WithIDGenerator sets the execution id generator.
//
// Default: UUIDv7Generator. Use NewFixedGenerator in tests.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithMaxBindings caps the candidate nodes one query may bind across all
// FROM scans. Exceeding it fails the query with QuotaExceededError.
//
// Default: 0 (unbounded).
func WithMaxBindings(n int) EngineOption {
	return func(e *Engine) {
		e.maxBindings = n
	}
}

// New creates an Engine reading from source.
func New(source record.Source, opts ...EngineOption) *Engine {
	e := &Engine{
		source:  source,
		log:     zerolog.Nop(),
		ids:     UUIDv7Generator{},
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute parses, binds and evaluates one query and returns the paginated
// result.
//
// Errors:
//   - *aql.SyntaxError for malformed query text
//   - *UnboundParameterError for a referenced $name missing from Params
//   - *LimitError for pagination the limit policy rejects
//   - *QuotaExceededError when WithMaxBindings is exceeded
//   - ctx.Err() when ctx is cancelled
//   - wrapped record source errors
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	id := e.ids.Generate()
	log := e.log.With().
		Str("query_id", id).
		Str("query_fingerprint", ir.QueryFingerprint(req.Query)).
		Logger()
	start := time.Now()

	res, err := e.execute(ctx, id, req)
	elapsed := time.Since(start)

	outcome := outcomeOf(ctx, err)
	rows := 0
	if res != nil {
		rows = len(res.Rows)
	}
	e.metrics.observe(outcome, elapsed.Seconds(), rows)

	if err != nil {
		log.Debug().Err(err).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("query failed")
		return nil, err
	}
	log.Debug().
		Int("rows", rows).
		Int("total", res.Total).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", elapsed).
		Msg("query executed")
	return res, nil
}

func (e *Engine) execute(ctx context.Context, id string, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := aql.Parse(req.Query)
	if err != nil {
		return nil, err
	}
	bind, err := Bind(q, req.Params)
	if err != nil {
		return nil, err
	}
	window, err := e.limits.Window(q, req.Offset, req.Fetch)
	if err != nil {
		return nil, err
	}
	plan, err := NewPlan(q)
	if err != nil {
		return nil, err
	}

	rows, err := e.run(ctx, id, plan, bind)
	if err != nil {
		return nil, err
	}
	sortRows(rows, q.OrderBy)

	startRow, endRow := window.Apply(len(rows))
	page := make([]Row, 0, endRow-startRow)
	for _, p := range rows[startRow:endRow] {
		page = append(page, p.row)
	}

	return &Result{
		ID:       id,
		Query:    req.Query,
		Columns:  Columns(q),
		Rows:     page,
		Total:    len(rows),
		Warnings: e.warnings(q, bind),
	}, nil
}

// run evaluates the plan over every EHR.
//
// Each EHR is one errgroup task writing into its own slot; slots are
// concatenated in EHR order afterwards. The first failing task cancels the
// rest, and a cancelled parent context wins over task errors.
func (e *Engine) run(ctx context.Context, id string, plan *Plan, bind *Bindings) ([]projected, error) {
	ehrs, err := e.source.EHRs(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("list EHRs: %w", err)
	}

	r := &runner{
		source: e.source,
		plan:   plan,
		bind:   bind,
		eval:   &evaluator{plan: plan, bind: bind},
		quota:  newBindingQuota(e.maxBindings),
		id:     id,
	}
	defer func() { e.metrics.addBindings(int(r.quota.Current())) }()

	slots := make([][]projected, len(ehrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, ehr := range ehrs {
		g.Go(func() error {
			rows, err := r.ehr(gctx, ehr)
			slots[i] = rows
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	var rows []projected
	for _, slot := range slots {
		rows = append(rows, slot...)
	}
	return rows, nil
}

// warnings validates the query against the archetype schema, with
// parameterized archetype filters replaced by their bound values.
func (e *Engine) warnings(q *queryir.Query, bind *Bindings) []string {
	if e.schema == nil {
		return nil
	}
	result := queryir.Validate(bindFilters(q, bind), e.schema)
	if result.Valid {
		return nil
	}
	out := make([]string, len(result.Warnings))
	for i, w := range result.Warnings {
		out[i] = w.String()
	}
	return out
}

// bindFilters returns a shallow copy of q whose parameterized archetype
// filters are replaced by string literals of their bound values.
func bindFilters(q *queryir.Query, bind *Bindings) *queryir.Query {
	bound := *q
	bound.From = make([]queryir.Step, len(q.From))
	for i, step := range q.From {
		if af, ok := step.Filter.(*queryir.ArchetypeFilter); ok {
			if _, isParam := af.ID.(*queryir.Param); isParam {
				if id, ok := archetypeID(af, bind); ok {
					step.Filter = &queryir.ArchetypeFilter{ID: &queryir.Literal{Value: ir.String(id)}}
				}
			}
		}
		bound.From[i] = step
	}
	return &bound
}

// Explain parses a query and returns its scan plan without reading records.
func (e *Engine) Explain(text string) (*Plan, error) {
	q, err := aql.Parse(text)
	if err != nil {
		return nil, err
	}
	return NewPlan(q)
}

// Validate parses a query and checks it against the archetype schema.
// Parameterized filters are not checked.
func (e *Engine) Validate(text string) (queryir.ValidationResult, error) {
	q, err := aql.Parse(text)
	if err != nil {
		return queryir.ValidationResult{}, err
	}
	return queryir.Validate(q, e.schema), nil
}

func outcomeOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case aql.IsSyntaxError(err):
		return outcomeSyntax
	case IsUnboundParameterError(err):
		return outcomeUnbound
	case IsLimitError(err), IsQuotaExceededError(err):
		return outcomeLimit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return outcomeCancelled
	default:
		return outcomeError
	}
}
